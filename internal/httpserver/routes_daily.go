// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily" mode.
// Exposes two endpoints under /daily:
//   - POST /daily/new         → start a keyed session on today's piece sequence
//   - GET  /daily/leaderboard → top 20 daily results for today (or ?date=)
//
// Everyone playing on the same UTC date gets the same pieces: the session's
// piece source is seeded from HMAC(DAILY_SALT, date). Play itself goes
// through the regular game endpoints with the returned token.

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/tshreegupta/react-tetris/internal/daily"
	"github.com/tshreegupta/react-tetris/internal/scores"
	"github.com/tshreegupta/react-tetris/internal/session"
)

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", s.handleDailyNew)
		r.Get("/leaderboard", s.handleDailyLeaderboard)
	})
}

// handleDailyNew creates a daily session for the current UTC date.
func (s *Server) handleDailyNew(w http.ResponseWriter, r *http.Request) {
	date := daily.DateKey(s.now())
	sess, err := s.sessions.NewDaily(r.Context(), date, daily.SeedForKey(date, s.cfg.DailySalt))
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("create daily session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	s.issueSession(w, r, sess)
}

// handleDailyLeaderboard returns the daily leaderboard for ?date= (default today).
func (s *Server) handleDailyLeaderboard(w http.ResponseWriter, r *http.Request) {
	q, ok := parseScoresQuery(w, r)
	if !ok {
		return
	}
	q.Mode = string(session.ModeDaily)
	if q.Date == "" {
		q.Date = daily.DateKey(s.now())
	}
	if q.Limit == 0 {
		q.Limit = scores.DefaultLimit
	}
	s.writeTop(w, r, q)
}
