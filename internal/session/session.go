// internal/session/session.go
//
// A Session is the serialization boundary around one game engine.
// The engine assumes exclusive access for each call, so every operation on a
// Session runs under its mutex. Reset swaps in a brand-new engine; snapshots
// taken earlier are deep copies and stay valid.
//
// A session reports its game-over transition exactly once through the
// manager's OnGameOver hook, outside the lock.

package session

import (
	"sync"
	"time"

	"github.com/tshreegupta/react-tetris/internal/game"
)

// Mode distinguishes free play from the seeded daily game.
type Mode string

const (
	ModeClassic Mode = "classic"
	ModeDaily   Mode = "daily"
)

// Finished describes a game that just ended.
type Finished struct {
	SessionID  string
	Mode       Mode
	Date       string // daily only
	Score      int
	Lines      int
	Pieces     int
	FinishedAt time.Time
}

// Info is a point-in-time description of a session for listings.
type Info struct {
	ID       string    `json:"id"`
	Mode     Mode      `json:"mode"`
	Date     string    `json:"date,omitempty"`
	Created  time.Time `json:"createdAt"`
	LastSeen time.Time `json:"lastSeen"`
	Score    int       `json:"score"`
	GameOver bool      `json:"gameOver"`
}

// Session owns one game and the lock around it.
type Session struct {
	id        string
	mode      Mode
	date      string
	newSource func() game.Source
	onOver    func(Finished)
	now       func() time.Time
	created   time.Time

	mu       sync.Mutex // guards everything below
	g        *game.Game
	lastSeen time.Time
	reported bool
}

func newSession(id string, mode Mode, date string, src func() game.Source, onOver func(Finished), now func() time.Time) *Session {
	t := now()
	s := &Session{
		id:        id,
		mode:      mode,
		date:      date,
		newSource: src,
		onOver:    onOver,
		now:       now,
		created:   t,
		lastSeen:  t,
	}
	s.g = game.New(s.source())
	return s
}

func (s *Session) source() game.Source {
	if s.newSource == nil {
		return nil
	}
	return s.newSource()
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.mode }

// Date returns the daily date key ("" for classic sessions).
func (s *Session) Date() string { return s.date }

// Snapshot returns a copy of the current game state.
func (s *Session) Snapshot() game.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
	return s.g.Snapshot()
}

// Move applies a move intent to the game.
func (s *Session) Move(dir game.Direction) {
	s.mutate(func(g *game.Game) { g.Move(dir) })
}

// Rotate rotates the active piece.
func (s *Session) Rotate() {
	s.mutate(func(g *game.Game) { g.Rotate() })
}

// Reset discards the current game and starts a new one under the same ID.
// Daily sessions replay the same piece sequence.
func (s *Session) Reset() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.g = game.New(s.source())
	s.reported = false
	s.mu.Unlock()
}

func (s *Session) mutate(op func(*game.Game)) {
	s.mu.Lock()
	s.lastSeen = s.now()
	op(s.g)
	var fin *Finished
	if s.g.GameOver() && !s.reported {
		s.reported = true
		snap := s.g.Snapshot()
		fin = &Finished{
			SessionID:  s.id,
			Mode:       s.mode,
			Date:       s.date,
			Score:      snap.Score,
			Lines:      snap.Lines,
			Pieces:     snap.Pieces,
			FinishedAt: s.lastSeen,
		}
	}
	s.mu.Unlock()

	if fin != nil && s.onOver != nil {
		s.onOver(*fin)
	}
}

// LastSeen returns when the session was last touched.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Info describes the session without touching it.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:       s.id,
		Mode:     s.mode,
		Date:     s.date,
		Created:  s.created,
		LastSeen: s.lastSeen,
		Score:    s.g.Score(),
		GameOver: s.g.GameOver(),
	}
}
