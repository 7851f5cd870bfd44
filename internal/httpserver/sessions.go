package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/tshreegupta/react-tetris/internal/session"
)

const sessionCookieName = "tetris_session"

// ctxSessionKey is the context key type for the resolved *session.Session.
type ctxSessionKey struct{}

// sessionFrom returns the session attached by withSession.
func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxSessionKey{}).(*session.Session)
	return s
}

// withSession attaches the caller's session to the request context.
// A missing, invalid or expired token, or a token for a pruned session,
// resolves to the default session. It never rejects a request.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessions.Default()
		if tok := bearerOrCookie(r); tok != "" {
			if id, err := s.parseSessionToken(tok); err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("ignoring session token")
			} else if found, err := s.sessions.Get(r.Context(), id); err == nil {
				sess = found
			} else {
				hlog.FromRequest(r).Debug().Err(err).Msg("session token for unknown session")
			}
		}
		ctx := context.WithValue(r.Context(), ctxSessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newSessionRes is returned by POST /sessions and POST /daily/new.
type newSessionRes struct {
	SessionID string    `json:"sessionId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Mode      string    `json:"mode"`
	Date      string    `json:"date,omitempty"`
}

// handleNewSession creates a keyed classic session and hands out its token.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.NewClassic(r.Context())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	s.issueSession(w, r, sess)
}

// issueSession signs a token for sess, sets the cookie and writes the response.
func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	tok, exp, err := s.signSessionToken(sess.ID())
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("sign session token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	setSessionCookie(w, r, tok, exp)
	writeJSON(w, http.StatusOK, newSessionRes{
		SessionID: sess.ID(),
		Token:     tok,
		ExpiresAt: exp,
		Mode:      string(sess.Mode()),
		Date:      sess.Date(),
	})
}

// ------------------------------ JWT & cookies ------------------------------

// signSessionToken creates an HS256 JWT whose subject is the session ID.
func (s *Server) signSessionToken(id string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.cfg.SessionTokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	ss, err := t.SignedString([]byte(s.cfg.JWTSecret))
	return ss, exp, err
}

// parseSessionToken validates tok and returns the session ID it names.
func (s *Server) parseSessionToken(tok string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// setSessionCookie writes the session token cookie.
func setSessionCookie(w http.ResponseWriter, r *http.Request, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or session cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}
