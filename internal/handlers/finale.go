package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// LeaderboardHandler returns the anonymized leaderboard. Once the party is
// in or past the finale, movement is computed against the frozen baseline.
func (s *Server) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}

	previous, err := s.Engine.FrozenScores(r.Context(), partyID)
	if err != nil {
		s.Log.WithError(err).Warn("failed to load frozen scores, serving without baseline")
		previous = nil
	}
	entries, err := s.Engine.AnonymousLeaderboard(r.Context(), partyID, previous)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// StandingsHandler returns the final, named standings with dense ranks.
func (s *Server) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	standings, err := s.Engine.FinalStandings(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

// BonusWinnersHandler returns the bonus-category awards.
func (s *Server) BonusWinnersHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	awards, err := s.Engine.BonusWinners(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awards)
}

// RevealOrderHandler returns the worst-to-best reveal sequence.
func (s *Server) RevealOrderHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	slots, err := s.Engine.RevealOrder(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

type revealRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
	Order    int       `json:"order"`
}

// RevealHandler discloses one player's identity and broadcasts it.
func (s *Server) RevealHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}

	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	identity, err := s.Engine.RevealIdentity(r.Context(), partyID, req.PlayerID, req.Order)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.Hub.Broadcast(partyID, map[string]interface{}{
		"type":  "identity_revealed",
		"alias": identity.Alias,
		"order": identity.RevealOrder,
	})
	writeJSON(w, http.StatusOK, identity)
}
