package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mixdown-games/encore/internal/auth"
	"github.com/mixdown-games/encore/internal/models"
)

type createPartyRequest struct {
	HostName string               `json:"host_name"`
	Settings models.PartySettings `json:"settings"`
}

type joinedResponse struct {
	Party  *models.Party  `json:"party"`
	Player *models.Player `json:"player"`
	Token  string         `json:"token"`
}

// CreatePartyHandler creates a party plus its host seat and returns the
// host's session token alongside the join code.
func (s *Server) CreatePartyHandler(w http.ResponseWriter, r *http.Request) {
	var req createPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	if req.HostName == "" {
		http.Error(w, "host_name is required", http.StatusBadRequest)
		return
	}
	if req.Settings.SongsPerPlayer == 0 {
		req.Settings.SongsPerPlayer = 2
	}

	p, host, err := s.Engine.CreateParty(r.Context(), req.HostName, req.Settings)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := auth.CreatePlayerToken(host.ID, p.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinedResponse{Party: p, Player: host, Token: token})
}

type joinPartyRequest struct {
	JoinCode    string `json:"join_code"`
	DisplayName string `json:"display_name"`
}

// JoinPartyHandler adds a player to a lobby by join code and issues their
// session token.
func (s *Server) JoinPartyHandler(w http.ResponseWriter, r *http.Request) {
	var req joinPartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}
	if req.JoinCode == "" || req.DisplayName == "" {
		http.Error(w, "join_code and display_name are required", http.StatusBadRequest)
		return
	}

	p, pl, err := s.Engine.JoinParty(r.Context(), req.JoinCode, req.DisplayName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	token, err := auth.CreatePlayerToken(pl.ID, p.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.Hub.Broadcast(p.ID, map[string]interface{}{
		"type":         "player_joined",
		"display_name": pl.DisplayName,
	})
	writeJSON(w, http.StatusCreated, joinedResponse{Party: p, Player: pl, Token: token})
}

type powerPointsRequest struct {
	Delta int `json:"delta"`
}

// GrantPowerPointsHandler adjusts a player's power-up currency on behalf of
// the power-up system.
func (s *Server) GrantPowerPointsHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	playerID, ok := s.requirePlayer(w, r, partyID)
	if !ok {
		return
	}

	var req powerPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	pl, err := s.Engine.GrantPowerPoints(r.Context(), partyID, playerID, req.Delta)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

// GetPartyHandler returns the party's current state.
func (s *Server) GetPartyHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	p, err := s.Engine.Party(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListPlayersHandler returns the party's players in join order.
func (s *Server) ListPlayersHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	players, err := s.Engine.Players(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

// StartPartyHandler moves the lobby into the submission phase. Host only.
func (s *Server) StartPartyHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	playerID, ok := s.requirePlayer(w, r, partyID)
	if !ok {
		return
	}
	p, err := s.Engine.StartParty(r.Context(), partyID, playerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Hub.Broadcast(partyID, map[string]interface{}{"type": "party_status", "status": p.Status})
	writeJSON(w, http.StatusOK, p)
}

// AdvanceToPlayingHandler freezes the queue and starts the listening phase.
func (s *Server) AdvanceToPlayingHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	p, err := s.Engine.AdvanceToPlaying(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Hub.Broadcast(partyID, map[string]interface{}{"type": "party_status", "status": p.Status})
	writeJSON(w, http.StatusOK, p)
}

// AdvanceToFinaleHandler freezes the leaderboard and enters the finale.
func (s *Server) AdvanceToFinaleHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	p, err := s.Engine.AdvanceToFinale(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Hub.Broadcast(partyID, map[string]interface{}{"type": "party_status", "status": p.Status})
	writeJSON(w, http.StatusOK, p)
}

// AdvanceToCompleteHandler ends the party.
func (s *Server) AdvanceToCompleteHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	p, err := s.Engine.AdvanceToComplete(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.Hub.Broadcast(partyID, map[string]interface{}{"type": "party_status", "status": p.Status})
	writeJSON(w, http.StatusOK, p)
}
