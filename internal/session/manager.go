package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tshreegupta/react-tetris/internal/game"
	"github.com/tshreegupta/react-tetris/internal/store"
)

// DefaultID names the process-wide session used by clients that carry no
// session token.
const DefaultID = "default"

// Options configures a Manager. Zero values pick sensible defaults.
type Options struct {
	// IdleTimeout is how long a keyed session may go untouched before Prune
	// drops it. Zero disables pruning.
	IdleTimeout time.Duration

	// OnGameOver is called once per finished game, outside the session lock.
	OnGameOver func(Finished)

	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	// Source overrides piece selection for classic sessions (tests).
	Source func() game.Source
}

// Manager owns the default session and the keyed sessions.
type Manager struct {
	store store.Store[*Session]
	def   *Session
	opts  Options
}

// NewManager builds a manager on top of st and creates the default session.
func NewManager(st store.Store[*Session], opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{store: st, opts: opts}
	m.def = newSession(DefaultID, ModeClassic, "", opts.Source, opts.OnGameOver, opts.Now)
	return m
}

// Default returns the process-wide session.
func (m *Manager) Default() *Session { return m.def }

// NewClassic creates and registers a keyed free-play session.
func (m *Manager) NewClassic(ctx context.Context) (*Session, error) {
	s := newSession(uuid.NewString(), ModeClassic, "", m.opts.Source, m.opts.OnGameOver, m.opts.Now)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	log.Info().Str("session", s.id).Str("mode", string(s.mode)).Msg("session created")
	return s, nil
}

// NewDaily creates and registers a keyed session whose pieces come from seed.
func (m *Manager) NewDaily(ctx context.Context, date string, seed uint64) (*Session, error) {
	src := func() game.Source { return game.SeededSource(seed) }
	s := newSession(uuid.NewString(), ModeDaily, date, src, m.opts.OnGameOver, m.opts.Now)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	log.Info().Str("session", s.id).Str("mode", string(s.mode)).Str("date", date).Msg("session created")
	return s, nil
}

// Get returns the session for id. DefaultID always resolves.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == DefaultID {
		return m.def, nil
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return s, nil
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

// List returns the default session followed by the keyed sessions.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	keyed, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(keyed)+1)
	out = append(out, m.def.Info())
	for _, s := range keyed {
		out = append(out, s.Info())
	}
	return out, nil
}

// Prune removes keyed sessions idle for longer than IdleTimeout and returns
// how many were dropped. The default session is never pruned.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.opts.IdleTimeout <= 0 {
		return 0, nil
	}
	keyed, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := m.opts.Now().Add(-m.opts.IdleTimeout)
	n := 0
	for _, s := range keyed {
		if s.LastSeen().After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, s.id); err != nil {
			return n, fmt.Errorf("delete session %s: %w", s.id, err)
		}
		log.Debug().Str("session", s.id).Msg("session pruned")
		n++
	}
	return n, nil
}

// RunPruner calls Prune every interval until ctx is done.
func (m *Manager) RunPruner(ctx context.Context, every time.Duration) {
	if every <= 0 || m.opts.IdleTimeout <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.Prune(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("prune sessions")
				continue
			}
			if n > 0 {
				log.Info().Int("pruned", n).Msg("idle sessions pruned")
			}
		}
	}
}
