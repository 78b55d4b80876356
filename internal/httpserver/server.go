// internal/httpserver/server.go
//
// HTTP server wiring for the sentence-guessing backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health".
//   - Auth + profile endpoints: /api/signup, /api/login, /api/session, /api/logout, /api/profile.
//   - Match endpoints: /api/matches (auth required) and /api/anon/matches (guests).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Handlers only decode payloads; every game rule lives in internal/game.

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess-sentence/internal/game"
	"github.com/robalobadob/guess-sentence/internal/store"
)

// Matches is the slice of the game engine the handlers drive.
type Matches interface {
	Start(ctx context.Context, playerID string, mode game.Mode) (game.View, error)
	Get(ctx context.Context, matchID, callerID string) (game.View, error)
	RevealLetter(ctx context.Context, matchID, callerID, letter string) (game.View, error)
	GuessSentence(ctx context.Context, matchID, callerID, text string) (game.View, error)
	Abandon(ctx context.Context, matchID, callerID string) (game.View, error)
}

// Options carries the auth and CORS settings.
type Options struct {
	JWTSecret    string
	JWTTTL       time.Duration
	CookieName   string
	ClientOrigin string
	Production   bool // Secure + SameSite=None cookies
}

// Server bundles the router, the match engine and the account store.
type Server struct {
	r       *chi.Mux
	matches Matches
	users   store.Users
	opts    Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(matches Matches, users store.Users, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "guess_token"
	}
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 14 * 24 * time.Hour
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), matches: matches, users: users, opts: opts}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)                       // zerolog line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(opts.ClientOrigin))         // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"guess-sentence","endpoints":["/health","/api/matches","/api/anon/matches","/api/login"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	s.r.Route("/api", func(r chi.Router) {
		s.mountAuthRoutes(r)
		r.With(s.requireAuth()).Route("/matches", s.matchRoutes(game.ModeLogged))
		r.Route("/anon/matches", s.matchRoutes(game.ModeAnon))
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessLog writes one structured line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("dur", time.Since(start)).
				Str("reqId", chimw.GetReqID(r.Context())).
				Msg("http")
		}()
		next.ServeHTTP(ww, r)
	})
}
