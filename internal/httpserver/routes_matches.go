// internal/httpserver/routes_matches.go
//
// Match endpoints. The same five routes are mounted twice:
//   - /api/matches       logged mode; the caller is the authenticated player.
//   - /api/anon/matches  anonymous mode; no caller identity.
//
//   POST /                       start a match
//   GET  /{id}                   current view (applies a pending timeout)
//   POST /{id}/guess-letter      {"letter": "T"}
//   POST /{id}/guess-sentence    {"sentence": "CAT SAT"}
//   POST /{id}/abandon
//
// Rejections answer with {"error", "message", "match"}, where match is the
// current view whenever the match could be loaded.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guess-sentence/internal/game"
)

type guessLetterReq struct {
	Letter string `json:"letter"`
}

type guessSentenceReq struct {
	Sentence string `json:"sentence"`
}

type errorRes struct {
	Error   string     `json:"error"`
	Message string     `json:"message"`
	Match   *game.View `json:"match,omitempty"`
}

// matchRoutes registers the match family for mode.
func (s *Server) matchRoutes(mode game.Mode) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			v, err := s.matches.Start(r.Context(), callerID(r, mode), mode)
			s.respond(w, r, http.StatusCreated, v, err)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			v, err := s.matches.Get(r.Context(), chi.URLParam(r, "id"), callerID(r, mode))
			s.respond(w, r, http.StatusOK, v, err)
		})
		r.Post("/{id}/guess-letter", func(w http.ResponseWriter, r *http.Request) {
			var body guessLetterReq
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", "request body must be JSON")
				return
			}
			v, err := s.matches.RevealLetter(r.Context(), chi.URLParam(r, "id"), callerID(r, mode), body.Letter)
			s.respond(w, r, http.StatusOK, v, err)
		})
		r.Post("/{id}/guess-sentence", func(w http.ResponseWriter, r *http.Request) {
			var body guessSentenceReq
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json", "request body must be JSON")
				return
			}
			v, err := s.matches.GuessSentence(r.Context(), chi.URLParam(r, "id"), callerID(r, mode), body.Sentence)
			s.respond(w, r, http.StatusOK, v, err)
		})
		r.Post("/{id}/abandon", func(w http.ResponseWriter, r *http.Request) {
			v, err := s.matches.Abandon(r.Context(), chi.URLParam(r, "id"), callerID(r, mode))
			s.respond(w, r, http.StatusOK, v, err)
		})
	}
}

// callerID is the authenticated player on logged routes and nobody on
// anonymous ones.
func callerID(r *http.Request, mode game.Mode) string {
	if mode != game.ModeLogged {
		return ""
	}
	if me := currentUser(r.Context()); me != nil {
		return me.ID
	}
	return ""
}

// respond writes the view, or maps an engine error onto a status code.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, okStatus int, v game.View, err error) {
	if err == nil {
		writeJSON(w, okStatus, v)
		return
	}
	status, code := statusFor(err)
	res := errorRes{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("reqId", chimw.GetReqID(r.Context())).Msg("match request failed")
		res.Message = "internal error"
	}
	if v.MatchID != "" {
		res.Match = &v
	}
	writeJSON(w, status, res)
}

// statusFor maps engine rejections to HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, game.ErrInvalidAction):
		return http.StatusConflict, "invalid_action"
	case errors.Is(err, game.ErrAlreadyRevealed):
		return http.StatusConflict, "already_revealed"
	case errors.Is(err, game.ErrVowelAlreadyUsed):
		return http.StatusConflict, "vowel_already_used"
	case errors.Is(err, game.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, game.ErrMalformedLetter):
		return http.StatusBadRequest, "malformed_letter"
	case errors.Is(err, game.ErrMalformedSentence):
		return http.StatusBadRequest, "malformed_sentence"
	case errors.Is(err, game.ErrConflict):
		return http.StatusServiceUnavailable, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// ------------------------------- small util --------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorRes{Error: code, Message: msg})
}
