// Package handlers exposes the game engine over HTTP and WebSocket. The
// presentation layer consumes these payloads verbatim; no formatting happens
// here beyond JSON encoding.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mixdown-games/encore/internal/auth"
	"github.com/mixdown-games/encore/internal/party"
)

// Server holds the engine and the realtime hub behind every handler.
type Server struct {
	Engine *party.Engine
	Log    *logrus.Logger
	Hub    *Hub
}

// NewServer wires a Server around an engine.
func NewServer(engine *party.Engine, log *logrus.Logger) *Server {
	return &Server{
		Engine: engine,
		Log:    log,
		Hub:    NewHub(log),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed engine errors onto HTTP statuses. Unknown errors
// become opaque 500s so internals never leak.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var gameErr *party.GameError
	if !errors.As(err, &gameErr) {
		s.Log.WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch gameErr {
	case party.ErrPartyNotFound, party.ErrPlayerNotFound, party.ErrSongNotFound,
		party.ErrVoteNotFound, party.ErrIdentityNotFound:
		status = http.StatusNotFound
	case party.ErrInvalidState, party.ErrSubmissionsIncomplete, party.ErrSongLimitReached,
		party.ErrDuplicateVote, party.ErrPartyFull, party.ErrPoolExhausted:
		status = http.StatusConflict
	case party.ErrInvalidConfidence, party.ErrInvalidRating, party.ErrInvalidSettings,
		party.ErrSelfVote, party.ErrInsufficientPoints:
		status = http.StatusBadRequest
	case party.ErrNotHost, party.ErrNotSubmitter, party.ErrPlayerNotInParty:
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{
		"error": gameErr.Message,
		"code":  gameErr.Code,
	})
}

// bearerToken pulls the session token from the Authorization header or the
// player_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("player_token"); err == nil {
		return c.Value
	}
	return ""
}

// requirePlayer verifies the session token and checks it was issued for the
// party in the request path.
func (s *Server) requirePlayer(w http.ResponseWriter, r *http.Request, partyID uuid.UUID) (uuid.UUID, bool) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing player token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	playerID, tokenPartyID, err := auth.VerifyPlayerToken(token)
	if err != nil {
		http.Error(w, "invalid player token", http.StatusForbidden)
		return uuid.Nil, false
	}
	if tokenPartyID != partyID {
		http.Error(w, "token was issued for a different party", http.StatusForbidden)
		return uuid.Nil, false
	}
	return playerID, true
}

// partyIDFromPath parses the {id} path value.
func partyIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid party id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
