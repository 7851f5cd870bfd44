// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Holds live game sessions keyed by ID for the lifetime of the process.
//
// Characteristics:
//   - Generic over the stored entry type so the session package can own its
//     own type without an import cycle.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//     This guards the map only; entries serialize their own state.
//   - State is lost when the process restarts.
//   - Get on a missing ID returns ErrNotFound.

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when no entry exists for an ID.
var ErrNotFound = errors.New("store: not found")

// Entry is anything keyed by a stable ID.
type Entry interface {
	ID() string
}

// Store defines the lookup interface for live sessions.
// Implementations may be backed by memory (this package) or anything else
// that can hand back the same live value for an ID.
type Store[T Entry] interface {
	// Save adds or replaces the entry under e.ID().
	Save(ctx context.Context, e T) error

	// Get retrieves an entry by ID or returns ErrNotFound.
	Get(ctx context.Context, id string) (T, error)

	// Delete removes an entry; deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error

	// List returns all entries ordered by ID.
	List(ctx context.Context) ([]T, error)
}

// memory is an in-memory map-based Store implementation.
type memory[T Entry] struct {
	mu      sync.RWMutex // guards entries
	entries map[string]T // keyed by Entry.ID()
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore[T Entry]() Store[T] {
	return &memory[T]{entries: make(map[string]T)}
}

func (m *memory[T]) Save(ctx context.Context, e T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID()] = e
	return nil
}

func (m *memory[T]) Get(ctx context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	var zero T
	return zero, ErrNotFound
}

func (m *memory[T]) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *memory[T]) List(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	out := make([]T, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}
