// internal/scores/scores.go
//
// Finished-game results and leaderboards.
// A row is written when a session's game ends; live games are never stored.
//
// Ranking: score DESC, lines DESC, then earliest finish first.

package scores

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tshreegupta/react-tetris/internal/session"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// timeLayout is fixed width so that finished_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Result is one finished game.
type Result struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Mode       string    `json:"mode"`
	Date       string    `json:"date,omitempty"`
	Score      int       `json:"score"`
	Lines      int       `json:"lines"`
	Pieces     int       `json:"pieces"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Query filters a leaderboard. Empty fields match everything.
type Query struct {
	Mode  string
	Date  string
	Limit int
}

// Store reads and writes results.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Record inserts r, assigning an ID when it has none.
func (s *Store) Record(ctx context.Context, r Result) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO games (id, session_id, mode, date, score, line_count, piece_count, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.Mode, r.Date, r.Score, r.Lines, r.Pieces,
		r.FinishedAt.UTC().Format(timeLayout),
	)
	return err
}

// Top returns the best results matching q.
// Limit defaults to DefaultLimit and is capped at MaxLimit.
func (s *Store) Top(ctx context.Context, q Query) ([]Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_id, mode, date, score, line_count, piece_count, finished_at
        FROM games
        WHERE (? = '' OR mode = ?) AND (? = '' OR date = ?)
        ORDER BY score DESC, line_count DESC, finished_at ASC
        LIMIT ?`,
		q.Mode, q.Mode, q.Date, q.Date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var r Result
		var finished string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Mode, &r.Date, &r.Score, &r.Lines, &r.Pieces, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Recorder adapts the store to the session game-over hook. Failures are
// logged and otherwise ignored.
func Recorder(st *Store) func(session.Finished) {
	return func(f session.Finished) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := st.Record(ctx, Result{
			SessionID:  f.SessionID,
			Mode:       string(f.Mode),
			Date:       f.Date,
			Score:      f.Score,
			Lines:      f.Lines,
			Pieces:     f.Pieces,
			FinishedAt: f.FinishedAt,
		})
		if err != nil {
			log.Warn().Err(err).Str("session", f.SessionID).Msg("record finished game")
			return
		}
		log.Info().Str("session", f.SessionID).Int("score", f.Score).Int("lines", f.Lines).Msg("game over")
	}
}
