// internal/game/types.go
//
// Core type definitions for the Tetris game engine.
// Defines:
//   - Kind: one of the seven tetromino archetypes (I, J, L, O, S, T, Z).
//   - Cell: a board cell, either Empty or holding the Kind that settled there.
//   - Shape: a 0/1 occupancy matrix.
//   - Board, Piece, Direction and Snapshot.
//
// Wire shape (kept compatible with the polling client):
//   - empty cells encode as 0, occupied cells as the kind letter ("T").
//   - pieces encode as {type, shape, color, x, y}.

package game

import (
	"encoding/json"
	"fmt"
)

const (
	Width  = 10
	Height = 20
)

// Kind identifies a tetromino archetype. The zero value is not a valid kind.
type Kind uint8

const (
	KindI Kind = iota + 1
	KindJ
	KindL
	KindO
	KindS
	KindT
	KindZ
)

// Kinds lists every archetype in selection order.
var Kinds = [...]Kind{KindI, KindJ, KindL, KindO, KindS, KindT, KindZ}

var kindLetters = [...]string{"", "I", "J", "L", "O", "S", "T", "Z"}

// Valid reports whether k names one of the seven archetypes.
func (k Kind) Valid() bool { return k >= KindI && k <= KindZ }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindLetters[k]
}

// Color returns the display color of the kind ("" for an invalid kind).
func (k Kind) Color() string {
	if !k.Valid() {
		return ""
	}
	return archetypes[k].color
}

// ParseKind maps a letter back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if kindLetters[k] == s {
			return k, true
		}
	}
	return 0, false
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("game: cannot encode %v", k)
	}
	return json.Marshal(kindLetters[k])
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := ParseKind(s)
	if !ok {
		return fmt.Errorf("game: unknown piece type %q", s)
	}
	*k = v
	return nil
}

// Cell is a tagged board cell: Empty, or the Kind of the piece that locked there.
type Cell uint8

// Empty is the unoccupied cell.
const Empty Cell = 0

// CellOf returns the occupied cell for kind k.
func CellOf(k Kind) Cell { return Cell(k) }

// Occupied reports whether the cell holds settled material.
func (c Cell) Occupied() bool { return c != Empty }

// Kind returns the kind stored in the cell, or false for an empty cell.
func (c Cell) Kind() (Kind, bool) {
	if c == Empty {
		return 0, false
	}
	return Kind(c), true
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c == Empty {
		return []byte("0"), nil
	}
	return Kind(c).MarshalJSON()
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	if string(b) == "0" || string(b) == "null" {
		*c = Empty
		return nil
	}
	var k Kind
	if err := k.UnmarshalJSON(b); err != nil {
		return err
	}
	*c = CellOf(k)
	return nil
}

// Board is the settled grid, indexed [row][col] with row 0 at the top.
// Being an array, assigning a Board copies it.
type Board [Height][Width]Cell

// Shape is a rectangular occupancy matrix; non-zero cells are occupied.
type Shape [][]int

// Width is the number of columns of the shape.
func (s Shape) Width() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Height is the number of rows of the shape.
func (s Shape) Height() int { return len(s) }

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	for i, row := range s {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Rotate returns s turned 90° clockwise: row c of the result is column c of
// s read bottom to top. s itself is not modified.
func (s Shape) Rotate() Shape {
	h, w := s.Height(), s.Width()
	out := make(Shape, w)
	for c := 0; c < w; c++ {
		out[c] = make([]int, h)
		for r := 0; r < h; r++ {
			out[c][r] = s[h-1-r][c]
		}
	}
	return out
}

// Piece is a placed tetromino instance: the kind, its current (possibly
// rotated) shape and its board-relative origin.
type Piece struct {
	Kind  Kind
	Shape Shape
	X, Y  int
}

// Color is looked up from the kind; pieces do not carry their own.
func (p Piece) Color() string { return p.Kind.Color() }

// Clone returns a copy of p that shares no memory with it.
func (p Piece) Clone() Piece {
	p.Shape = p.Shape.Clone()
	return p
}

type pieceJSON struct {
	Type  Kind   `json:"type"`
	Shape Shape  `json:"shape"`
	Color string `json:"color"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

func (p Piece) MarshalJSON() ([]byte, error) {
	return json.Marshal(pieceJSON{Type: p.Kind, Shape: p.Shape, Color: p.Color(), X: p.X, Y: p.Y})
}

func (p *Piece) UnmarshalJSON(b []byte) error {
	var v pieceJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Piece{Kind: v.Type, Shape: v.Shape, X: v.X, Y: v.Y}
	return nil
}

// Direction is a move intent. Unknown values are accepted and ignored.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	Down  Direction = "down"
)

// Snapshot is an immutable copy of a game's observable state.
// Lines and Pieces are counters kept for results; they are not part of the
// polled payload.
type Snapshot struct {
	Board    Board `json:"board"`
	Current  Piece `json:"current_piece"`
	Next     Piece `json:"next_piece"`
	Score    int   `json:"score"`
	GameOver bool  `json:"game_over"`
	Lines    int   `json:"-"`
	Pieces   int   `json:"-"`
}
