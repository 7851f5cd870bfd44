package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
)

const adminUser = "admin"

// mountAdmin registers /admin routes. Without ADMIN_PASSWORD_HASH nothing is
// mounted and the paths 404.
func (s *Server) mountAdmin(r chi.Router) {
	if s.cfg.AdminPasswordHash == "" {
		return
	}
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/sessions", s.handleAdminSessions)
		r.Post("/prune", s.handleAdminPrune)
	})
}

// requireAdmin enforces HTTP basic auth against the bcrypt admin hash.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pw, ok := r.BasicAuth()
		if !ok || user != adminUser || !checkPassword(s.cfg.AdminPasswordHash, pw) {
			hlog.FromRequest(r).Warn().Str("remote", r.RemoteAddr).Msg("admin auth failed")
			w.Header().Set("WWW-Authenticate", `Basic realm="tetris-admin"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleAdminPrune(w http.ResponseWriter, r *http.Request) {
	n, err := s.sessions.Prune(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("prune sessions")
		writeError(w, http.StatusInternalServerError, "prune_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pruned": n})
}
