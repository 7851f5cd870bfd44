// internal/httpserver/server.go
//
// HTTP server wiring for the Tetris backend.
// Responsibilities:
//   - Router + middleware (access log, request IDs, panic recovery, timeouts, JSON, CORS).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional session token): GET /game, POST /move, POST /rotate, POST /reset.
//   - Keyed sessions: POST /sessions (see sessions.go).
//   - Results: GET /scores; Daily mode under /daily (see routes_daily.go).
//   - Admin endpoints behind basic auth (see admin.go).
//
// Notes:
//   - Requests without a valid session token play the process-wide default
//     session, so a client that only polls /game keeps working.
//   - Every engine call goes through session.Session, which serializes access.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/tshreegupta/react-tetris/internal/config"
	"github.com/tshreegupta/react-tetris/internal/daily"
	"github.com/tshreegupta/react-tetris/internal/game"
	"github.com/tshreegupta/react-tetris/internal/scores"
	"github.com/tshreegupta/react-tetris/internal/session"
)

// Server bundles router, session manager and results store.
type Server struct {
	r        *chi.Mux
	sessions *session.Manager
	scores   *scores.Store
	cfg      config.Config
	now      func() time.Time
}

// New constructs a Server, installs middleware, and registers routes.
func New(mgr *session.Manager, sc *scores.Store, cfg config.Config) *Server {
	s := &Server{r: chi.NewRouter(), sessions: mgr, scores: sc, cfg: cfg, now: time.Now}

	// --- middleware ---
	s.r.Use(chimw.RealIP)                // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger)) // request-scoped logger
	s.r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // allow-listed, credentialed CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"tetris-go","endpoints":["/health","GET /game","POST /move","POST /rotate","POST /reset","POST /sessions","GET /scores","/daily/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints: optional session, no token plays the default session
	s.r.Group(func(r chi.Router) {
		r.Use(s.withSession)
		r.Get("/game", s.handleState)
		r.Post("/move", s.handleMove)
		r.Post("/rotate", s.handleRotate)
		r.Post("/reset", s.handleReset)
	})

	s.r.Post("/sessions", s.handleNewSession)
	s.r.Get("/scores", s.handleScores)
	s.mountDaily(s.r)
	s.mountAdmin(s.r)

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Handler exposes the router (useful for tests).
func (s *Server) Handler() http.Handler { return s.r }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// accessLog writes one line per request at debug level.
func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured origins only.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.cfg.ClientOrigins))
	for _, o := range s.cfg.ClientOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

type statusRes struct {
	Status string `json:"status"`
}

var ack = statusRes{Status: "success"}

// handleState returns the polled game state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

// moveReq is the payload for POST /move.
type moveReq struct {
	Direction string `json:"direction"` // "left" | "right" | "down"; anything else is ignored
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sessionFrom(r).Move(game.Direction(req.Direction))
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Rotate()
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Reset()
	hlog.FromRequest(r).Debug().Str("session", sess.ID()).Msg("session reset")
	writeJSON(w, http.StatusOK, ack)
}

// ------------------------------ SCORES -------------------------------------

type scoresRes struct {
	Top []scores.Result `json:"top"`
}

// handleScores lists the best finished games.
// Query: limit (default 20, max 100), mode (classic|daily), date (YYYY-MM-DD).
func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	q, ok := parseScoresQuery(w, r)
	if !ok {
		return
	}
	s.writeTop(w, r, q)
}

func parseScoresQuery(w http.ResponseWriter, r *http.Request) (scores.Query, bool) {
	var q scores.Query
	v := r.URL.Query()
	if l := v.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit")
			return q, false
		}
		q.Limit = n
	}
	switch m := session.Mode(v.Get("mode")); m {
	case "", session.ModeClassic, session.ModeDaily:
		q.Mode = string(m)
	default:
		writeError(w, http.StatusBadRequest, "bad_mode")
		return q, false
	}
	if d := v.Get("date"); d != "" {
		if !daily.ValidKey(d) {
			writeError(w, http.StatusBadRequest, "bad_date")
			return q, false
		}
		q.Date = d
	}
	return q, true
}

func (s *Server) writeTop(w http.ResponseWriter, r *http.Request, q scores.Query) {
	top, err := s.scores.Top(r.Context(), q)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("query scores")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, scoresRes{Top: top})
}

// ------------------------------- util --------------------------------------

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError writes {"error": code}.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
