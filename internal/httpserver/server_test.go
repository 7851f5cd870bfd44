package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tshreegupta/react-tetris/internal/config"
	"github.com/tshreegupta/react-tetris/internal/db"
	"github.com/tshreegupta/react-tetris/internal/game"
	"github.com/tshreegupta/react-tetris/internal/scores"
	"github.com/tshreegupta/react-tetris/internal/session"
	"github.com/tshreegupta/react-tetris/internal/store"
)

type alwaysO struct{}

func (alwaysO) IntN(int) int { return int(game.KindO) - 1 }

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		ClientOrigins:      []string{"http://localhost:3000"},
		JWTSecret:          "test_secret",
		SessionTokenTTL:    time.Hour,
		SessionIdleTimeout: time.Minute,
		DailySalt:          "salt",
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "tetris.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.Migrate(conn))

	sc := scores.NewStore(conn)
	mgr := session.NewManager(store.NewMemoryStore[*session.Session](), session.Options{
		IdleTimeout: cfg.SessionIdleTimeout,
		OnGameOver:  scores.Recorder(sc),
		Now:         func() time.Time { return testNow },
		Source:      func() game.Source { return alwaysO{} },
	})
	s := New(mgr, sc, cfg)
	s.now = func() time.Time { return testNow }
	return s
}

func do(t *testing.T, s *Server, method, path, body string, mods ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, m := range mods {
		m(req)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type gameState struct {
	Board        [][]json.RawMessage `json:"board"`
	CurrentPiece *struct {
		Type  string  `json:"type"`
		Shape [][]int `json:"shape"`
		Color string  `json:"color"`
		X     int     `json:"x"`
		Y     int     `json:"y"`
	} `json:"current_piece"`
	NextPiece map[string]any `json:"next_piece"`
	Score     int            `json:"score"`
	GameOver  bool           `json:"game_over"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestGameStateShape(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/game", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	st := decode[gameState](t, rec)
	require.Len(t, st.Board, game.Height)
	for _, row := range st.Board {
		require.Len(t, row, game.Width)
		for _, c := range row {
			assert.Equal(t, "0", string(c))
		}
	}
	require.NotNil(t, st.CurrentPiece)
	assert.Equal(t, "O", st.CurrentPiece.Type)
	assert.Equal(t, [][]int{{1, 1}, {1, 1}}, st.CurrentPiece.Shape)
	assert.Equal(t, 4, st.CurrentPiece.X)
	assert.Equal(t, 0, st.CurrentPiece.Y)
	assert.Equal(t, "O", st.NextPiece["type"])
	assert.Zero(t, st.Score)
	assert.False(t, st.GameOver)
}

func TestMoveRotateReset(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/move", `{"direction":"left"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	do(t, s, http.MethodPost, "/move", `{"direction":"down"}`)
	st := decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 3, st.CurrentPiece.X)
	assert.Equal(t, 1, st.CurrentPiece.Y)

	rec = do(t, s, http.MethodPost, "/rotate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 4, st.CurrentPiece.X)
	assert.Equal(t, 0, st.CurrentPiece.Y)
}

func TestMoveUnknownDirectionIsIgnored(t *testing.T) {
	s := newTestServer(t, testConfig())
	before := do(t, s, http.MethodGet, "/game", "").Body.String()

	rec := do(t, s, http.MethodPost, "/move", `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	assert.JSONEq(t, before, do(t, s, http.MethodGet, "/game", "").Body.String())
}

func TestMoveBadJSON(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodPost, "/move", `{"direction":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad_json"}`, rec.Body.String())
}

func TestGameOverIsRecorded(t *testing.T) {
	s := newTestServer(t, testConfig())

	over := false
	for i := 0; i < 1000 && !over; i++ {
		do(t, s, http.MethodPost, "/move", `{"direction":"down"}`)
		over = decode[gameState](t, do(t, s, http.MethodGet, "/game", "")).GameOver
	}
	require.True(t, over)

	// Further input is accepted but changes nothing.
	before := do(t, s, http.MethodGet, "/game", "").Body.String()
	do(t, s, http.MethodPost, "/move", `{"direction":"left"}`)
	do(t, s, http.MethodPost, "/rotate", "")
	assert.JSONEq(t, before, do(t, s, http.MethodGet, "/game", "").Body.String())

	rec := do(t, s, http.MethodGet, "/scores", "")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[scoresRes](t, rec)
	require.Len(t, res.Top, 1)
	assert.Equal(t, session.DefaultID, res.Top[0].SessionID)
	assert.Equal(t, "classic", res.Top[0].Mode)
	assert.Equal(t, 10, res.Top[0].Pieces)

	// A reset starts a fresh game on the same session.
	do(t, s, http.MethodPost, "/reset", "")
	assert.False(t, decode[gameState](t, do(t, s, http.MethodGet, "/game", "")).GameOver)
}

func TestKeyedSessionIsIsolated(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ns := decode[newSessionRes](t, rec)
	require.NotEmpty(t, ns.Token)
	assert.Equal(t, "classic", ns.Mode)
	assert.True(t, testNow.Add(time.Hour).Equal(ns.ExpiresAt))

	do(t, s, http.MethodPost, "/move", `{"direction":"right"}`, bearer(ns.Token))

	keyed := decode[gameState](t, do(t, s, http.MethodGet, "/game", "", bearer(ns.Token)))
	assert.Equal(t, 5, keyed.CurrentPiece.X)
	def := decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 4, def.CurrentPiece.X)
}

func TestSessionCookie(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	withCookie := func(r *http.Request) { r.AddCookie(cookie) }
	do(t, s, http.MethodPost, "/move", `{"direction":"left"}`, withCookie)

	st := decode[gameState](t, do(t, s, http.MethodGet, "/game", "", withCookie))
	assert.Equal(t, 3, st.CurrentPiece.X)
	def := decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 4, def.CurrentPiece.X)
}

func TestInvalidTokenFallsBackToDefault(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/move", `{"direction":"left"}`, bearer("not-a-jwt"))
	require.Equal(t, http.StatusOK, rec.Code)

	st := decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 3, st.CurrentPiece.X)
}

func TestExpiredTokenFallsBackToDefault(t *testing.T) {
	s := newTestServer(t, testConfig())
	ns := decode[newSessionRes](t, do(t, s, http.MethodPost, "/sessions", ""))

	s.now = func() time.Time { return testNow.Add(2 * time.Hour) }
	do(t, s, http.MethodPost, "/move", `{"direction":"right"}`, bearer(ns.Token))

	st := decode[gameState](t, do(t, s, http.MethodGet, "/game", ""))
	assert.Equal(t, 5, st.CurrentPiece.X)
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestServer(t, testConfig())
	tok, exp, err := s.signSessionToken("abc")
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour), exp)

	id, err := s.parseSessionToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	other := newTestServer(t, func() config.Config { c := testConfig(); c.JWTSecret = "other"; return c }())
	_, err = other.parseSessionToken(tok)
	assert.Error(t, err)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodGet, "/game", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
	})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(t, s, http.MethodGet, "/game", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://evil.example")
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodOptions, "/move", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://localhost:3000")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestDailySession(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := do(t, s, http.MethodPost, "/daily/new", "")
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[newSessionRes](t, rec)
	assert.Equal(t, "daily", a.Mode)
	assert.Equal(t, "2025-03-01", a.Date)

	b := decode[newSessionRes](t, do(t, s, http.MethodPost, "/daily/new", ""))
	assert.NotEqual(t, a.SessionID, b.SessionID)

	// Both players see the same pieces.
	for i := 0; i < 60; i++ {
		do(t, s, http.MethodPost, "/move", `{"direction":"down"}`, bearer(a.Token))
		do(t, s, http.MethodPost, "/move", `{"direction":"down"}`, bearer(b.Token))
	}
	sa := do(t, s, http.MethodGet, "/game", "", bearer(a.Token)).Body.String()
	sb := do(t, s, http.MethodGet, "/game", "", bearer(b.Token)).Body.String()
	assert.JSONEq(t, sa, sb)
}

func TestDailyLeaderboard(t *testing.T) {
	s := newTestServer(t, testConfig())
	ctx := context.Background()
	require.NoError(t, s.scores.Record(ctx, scores.Result{SessionID: "a", Mode: "daily", Date: "2025-03-01", Score: 300, FinishedAt: testNow}))
	require.NoError(t, s.scores.Record(ctx, scores.Result{SessionID: "b", Mode: "daily", Date: "2025-02-28", Score: 900, FinishedAt: testNow}))
	require.NoError(t, s.scores.Record(ctx, scores.Result{SessionID: "c", Mode: "classic", Score: 1200, FinishedAt: testNow}))

	res := decode[scoresRes](t, do(t, s, http.MethodGet, "/daily/leaderboard", ""))
	require.Len(t, res.Top, 1)
	assert.Equal(t, "a", res.Top[0].SessionID)

	res = decode[scoresRes](t, do(t, s, http.MethodGet, "/daily/leaderboard?date=2025-02-28", ""))
	require.Len(t, res.Top, 1)
	assert.Equal(t, "b", res.Top[0].SessionID)

	res = decode[scoresRes](t, do(t, s, http.MethodGet, "/scores?mode=classic", ""))
	require.Len(t, res.Top, 1)
	assert.Equal(t, "c", res.Top[0].SessionID)

	res = decode[scoresRes](t, do(t, s, http.MethodGet, "/scores?limit=2", ""))
	require.Len(t, res.Top, 2)
	assert.Equal(t, "c", res.Top[0].SessionID)
}

func TestScoresBadQuery(t *testing.T) {
	s := newTestServer(t, testConfig())
	for path, code := range map[string]string{
		"/scores?limit=0":                 "bad_limit",
		"/scores?limit=x":                 "bad_limit",
		"/scores?mode=marathon":           "bad_mode",
		"/scores?date=yesterday":          "bad_date",
		"/daily/leaderboard?date=2025-13": "bad_date",
	} {
		rec := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.JSONEq(t, `{"error":"`+code+`"}`, rec.Body.String(), path)
	}
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/admin/sessions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := testConfig()
	cfg.AdminPasswordHash = string(hash)
	s := newTestServer(t, cfg)

	rec := do(t, s, http.MethodGet, "/admin/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = do(t, s, http.MethodGet, "/admin/sessions", "", func(r *http.Request) { r.SetBasicAuth("admin", "wrong") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	do(t, s, http.MethodPost, "/sessions", "")
	auth := func(r *http.Request) { r.SetBasicAuth("admin", "hunter22") }

	rec = do(t, s, http.MethodGet, "/admin/sessions", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Sessions []session.Info `json:"sessions"`
	}](t, rec)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, session.DefaultID, list.Sessions[0].ID)

	// The clock is frozen, so nothing has been idle for a minute yet.
	rec = do(t, s, http.MethodPost, "/admin/prune", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pruned":0}`, rec.Body.String())
}

func TestNotFoundIsJSON(t *testing.T) {
	s := newTestServer(t, testConfig())
	rec := do(t, s, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
}
