// internal/game/engine.go
//
// Core game engine for a single Tetris session.
// Responsibilities:
//   - Spawn pieces uniformly at random, centered at the top of a 20x10 board.
//   - Detect collisions (sides and bottom are hard bounds, the top is open).
//   - Move and rotate the active piece; lock it when a down move is blocked.
//   - Clear full lines and score 100 per line.
//   - Track the terminal game-over state.
//
// Notes:
//   - A Game is not safe for concurrent use. Callers serialize access
//     (see the session package).
//   - Once GameOver is set no operation mutates the game; a reset is a new Game.
//   - Rotation has no wall kicks: a rotation that collides in place is dropped.
package game

const pointsPerLine = 100

// Game is the authoritative state of one session.
type Game struct {
	board    Board
	current  Piece
	next     Piece
	score    int
	lines    int
	locked   int
	gameOver bool
	src      Source
}

// New starts a fresh game: empty board, score 0, next piece spawned first and
// then the active piece. A nil src selects the process-wide random source.
func New(src Source) *Game {
	if src == nil {
		src = globalSource{}
	}
	g := &Game{src: src}
	g.next = g.spawn()
	g.current = g.spawn()
	return g
}

// spawn builds a random piece centered at the top of the board.
// If it does not fit against the current board the game is over; the piece
// is returned either way.
func (g *Game) spawn() Piece {
	k := Kinds[g.src.IntN(len(Kinds))]
	shape := Archetype(k)
	p := Piece{Kind: k, Shape: shape, X: Width/2 - shape.Width()/2, Y: 0}
	if g.Collides(p.Shape, p.X, p.Y) {
		g.gameOver = true
	}
	return p
}

// Collides reports whether shape placed with its origin at (x, y) overlaps
// settled cells or leaves the board through a side or the bottom.
// Cells above the top edge (row < 0) never collide.
func (g *Game) Collides(shape Shape, x, y int) bool {
	for r, row := range shape {
		for c, v := range row {
			if v == 0 {
				continue
			}
			bx, by := x+c, y+r
			if bx < 0 || bx >= Width || by >= Height {
				return true
			}
			if by >= 0 && g.board[by][bx].Occupied() {
				return true
			}
		}
	}
	return false
}

// merge writes the active piece into the board. The caller guarantees the
// piece is in a collision-free position; cells above the top are dropped.
func (g *Game) merge() {
	p := g.current
	for r, row := range p.Shape {
		for c, v := range row {
			if v == 0 || p.Y+r < 0 {
				continue
			}
			g.board[p.Y+r][p.X+c] = CellOf(p.Kind)
		}
	}
}

// clearLines removes every full row, scanning bottom to top. After a removal
// the same index is examined again since it now holds the row from above.
// It returns the number of rows removed and adds 100 per row to the score.
func (g *Game) clearLines() int {
	cleared := 0
	for y := Height - 1; y >= 0; {
		if !rowFull(g.board[y]) {
			y--
			continue
		}
		for r := y; r > 0; r-- {
			g.board[r] = g.board[r-1]
		}
		g.board[0] = [Width]Cell{}
		cleared++
	}
	g.score += cleared * pointsPerLine
	g.lines += cleared
	return cleared
}

func rowFull(row [Width]Cell) bool {
	for _, c := range row {
		if !c.Occupied() {
			return false
		}
	}
	return true
}

// Move shifts the active piece one cell in dir.
//
// State transitions:
//   - Free target: the origin moves.
//   - Blocked left/right: nothing happens.
//   - Blocked down: lock event. The piece merges, full lines clear, the next
//     piece becomes active and a new next piece spawns (possibly ending the game).
//
// Unknown directions and moves on a finished game are no-ops.
func (g *Game) Move(dir Direction) {
	if g.gameOver {
		return
	}
	x, y := g.current.X, g.current.Y
	switch dir {
	case Left:
		x--
	case Right:
		x++
	case Down:
		y++
	default:
		return
	}
	if !g.Collides(g.current.Shape, x, y) {
		g.current.X, g.current.Y = x, y
		return
	}
	if dir == Down {
		g.lock()
	}
}

// lock settles the active piece and promotes the next one.
// The promoted piece was tested when it spawned, against an older board; it is
// tested again here so that an active piece never overlaps settled cells
// without the game being over.
func (g *Game) lock() {
	g.merge()
	g.clearLines()
	g.locked++
	g.current = g.next
	if g.Collides(g.current.Shape, g.current.X, g.current.Y) {
		g.gameOver = true
	}
	g.next = g.spawn()
}

// Rotate turns the active piece clockwise in place. If the rotated shape
// collides at the current origin the rotation is discarded.
func (g *Game) Rotate() {
	if g.gameOver {
		return
	}
	rotated := g.current.Shape.Rotate()
	if g.Collides(rotated, g.current.X, g.current.Y) {
		return
	}
	g.current.Shape = rotated
}

// GameOver reports whether the game has ended.
func (g *Game) GameOver() bool { return g.gameOver }

// Score returns the cumulative score.
func (g *Game) Score() int { return g.score }

// Snapshot returns a deep copy of the observable state. Later mutations of g
// do not affect it.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		Board:    g.board,
		Current:  g.current.Clone(),
		Next:     g.next.Clone(),
		Score:    g.score,
		GameOver: g.gameOver,
		Lines:    g.lines,
		Pieces:   g.locked,
	}
}
