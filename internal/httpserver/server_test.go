package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/sentences"
	"github.com/robalobadob/guess-sentence/internal/store"
)

type viewRes struct {
	MatchID        string   `json:"matchId"`
	Grid           []string `json:"grid"`
	Status         string   `json:"status"`
	RemainingCoins *int     `json:"remainingCoins"`
	Sentence       string   `json:"sentence"`
}

type errRes struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Match   *viewRes `json:"match"`
}

type testEnv struct {
	h   http.Handler
	now time.Time
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemory()
	if _, err := st.SeedSentences(context.Background(), []sentences.Entry{
		{Mode: game.ModeLogged, Text: "DOG RAN"},
		{Mode: game.ModeAnon, Text: "CAT SAT"},
	}); err != nil {
		t.Fatal(err)
	}
	env := &testEnv{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	eng := game.NewEngine(game.Dependencies{
		Matches:   st,
		Sentences: st,
		Wallets:   st,
		Now:       func() time.Time { return env.now },
	})
	env.h = New(eng, st, Options{JWTSecret: "test-secret"}).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) signup(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/signup", map[string]string{"username": username, "password": "password123"}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", rec.Code, rec.Body.String())
	}
	p := decode[profile](t, rec)
	if p.Token == "" || p.Coins != store.DefaultCoins {
		t.Fatalf("signup response: %+v", p)
	}
	return p.Token
}

func TestHealth(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("CORS headers missing")
	}
	if rec := env.do(t, http.MethodGet, "/nope", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", rec.Code)
	}
}

func TestAnonymousMatchFlow(t *testing.T) {
	env := newTestServer(t)

	rec := env.do(t, http.MethodPost, "/api/anon/matches", nil, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	v := decode[viewRes](t, rec)
	if strings.Join(v.Grid, "") != "___ ___" || v.Sentence != "" || v.RemainingCoins == nil || *v.RemainingCoins != 100 {
		t.Fatalf("start view: %+v", v)
	}
	base := "/api/anon/matches/" + v.MatchID

	for _, l := range []string{"t", "C", "S"} {
		rec = env.do(t, http.MethodPost, base+"/guess-letter", map[string]string{"letter": l}, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("reveal %s: %d %s", l, rec.Code, rec.Body.String())
		}
	}
	v = decode[viewRes](t, rec)
	if strings.Join(v.Grid, "") != "C_T S_T" || v.Status != "running" || *v.RemainingCoins != 86 {
		t.Fatalf("after consonants: %+v", v)
	}

	rec = env.do(t, http.MethodPost, base+"/guess-letter", map[string]string{"letter": "A"}, "")
	v = decode[viewRes](t, rec)
	if rec.Code != http.StatusOK || v.Status != "won" || v.Sentence != "CAT SAT" {
		t.Fatalf("winning reveal: %d %+v", rec.Code, v)
	}

	rec = env.do(t, http.MethodPost, base+"/abandon", nil, "")
	e := decode[errRes](t, rec)
	if rec.Code != http.StatusConflict || e.Error != "invalid_action" || e.Match == nil || e.Match.Status != "won" {
		t.Fatalf("abandon after win: %d %+v", rec.Code, e)
	}
}

func TestMatchErrorMapping(t *testing.T) {
	env := newTestServer(t)
	v := decode[viewRes](t, env.do(t, http.MethodPost, "/api/anon/matches", nil, ""))
	base := "/api/anon/matches/" + v.MatchID

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"malformed letter", base + "/guess-letter", map[string]string{"letter": "AB"}, http.StatusBadRequest, "malformed_letter"},
		{"malformed sentence", base + "/guess-sentence", map[string]string{"sentence": "CAT 5AT"}, http.StatusBadRequest, "malformed_sentence"},
		{"bad json", base + "/guess-letter", "{", http.StatusBadRequest, "invalid_json"},
		{"unknown match", "/api/anon/matches/nope/abandon", nil, http.StatusNotFound, "not_found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tc.path, tc.body, "")
			e := decode[errRes](t, rec)
			if rec.Code != tc.status || e.Error != tc.code {
				t.Fatalf("got %d %+v, want %d %s", rec.Code, e, tc.status, tc.code)
			}
		})
	}

	rec := env.do(t, http.MethodPost, base+"/guess-sentence", map[string]string{"sentence": "dog sat"}, "")
	if v := decode[viewRes](t, rec); rec.Code != http.StatusOK || v.Status != "running" {
		t.Fatalf("wrong guess should be a plain miss: %d %s", rec.Code, rec.Body.String())
	}

	env.now = env.now.Add(game.MatchDuration)
	rec = env.do(t, http.MethodGet, base, nil, "")
	if v := decode[viewRes](t, rec); rec.Code != http.StatusOK || v.Status != "timeout" || v.Sentence != "CAT SAT" {
		t.Fatalf("expired read: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoggedMatchesRequireAuthAndDebitWallet(t *testing.T) {
	env := newTestServer(t)

	if rec := env.do(t, http.MethodPost, "/api/matches", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated start: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/matches", nil, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", rec.Code)
	}

	token := env.signup(t, "alice")
	rec := env.do(t, http.MethodPost, "/api/matches", nil, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	v := decode[viewRes](t, rec)

	rec = env.do(t, http.MethodPost, "/api/matches/"+v.MatchID+"/guess-letter", map[string]string{"letter": "T"}, token)
	v = decode[viewRes](t, rec)
	if rec.Code != http.StatusOK || *v.RemainingCoins != 95 || strings.Join(v.Grid, "") != "___ ___" {
		t.Fatalf("miss should still cost: %d %+v", rec.Code, v)
	}

	p := decode[profile](t, env.do(t, http.MethodGet, "/api/profile", nil, token))
	if p.Coins != 95 || p.Username != "alice" {
		t.Fatalf("profile: %+v", p)
	}

	t.Run("other players are forbidden", func(t *testing.T) {
		bob := env.signup(t, "bob_2")
		rec := env.do(t, http.MethodGet, "/api/matches/"+v.MatchID, nil, bob)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("bob reading alice's match: %d", rec.Code)
		}
		rec = env.do(t, http.MethodPost, "/api/anon/matches/"+v.MatchID+"/abandon", nil, "")
		if rec.Code != http.StatusForbidden {
			t.Fatalf("anonymous abandon of an owned match: %d", rec.Code)
		}
	})
}

func TestAuthRoutes(t *testing.T) {
	env := newTestServer(t)
	env.signup(t, "carol")

	if rec := env.do(t, http.MethodPost, "/api/signup", map[string]string{"username": "CAROL", "password": "password123"}, ""); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/signup", map[string]string{"username": "x", "password": "short"}, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid signup: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "carol", "password": "wrong-password"}, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/login", map[string]string{"username": "carol", "password": "password123"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "guess_token" {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("auth cookie missing: %v", rec.Result().Cookies())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(cookie)
	srec := httptest.NewRecorder()
	env.h.ServeHTTP(srec, req)
	if p := decode[profile](t, srec); p.Username != "carol" || p.Token != "" {
		t.Fatalf("session with cookie: %s", srec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/api/session", nil, ""); strings.TrimSpace(rec.Body.String()) != "null" {
		t.Fatalf("anonymous session: %s", rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/logout", nil, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{game.ErrNotFound, http.StatusNotFound},
		{game.ErrForbidden, http.StatusForbidden},
		{game.ErrInvalidAction, http.StatusConflict},
		{fmt.Errorf("%w: T", game.ErrAlreadyRevealed), http.StatusConflict},
		{game.ErrVowelAlreadyUsed, http.StatusConflict},
		{game.ErrInsufficientFunds, http.StatusConflict},
		{game.ErrMalformedLetter, http.StatusBadRequest},
		{game.ErrMalformedSentence, http.StatusBadRequest},
		{game.ErrConflict, http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got, _ := statusFor(tc.err); got != tc.status {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.status)
		}
	}
}
