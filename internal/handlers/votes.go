package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/mixdown-games/encore/internal/party"
)

type castVoteRequest struct {
	Rating      int    `json:"rating"`
	ThemeRating *int   `json:"theme_rating,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Lock        bool   `json:"lock,omitempty"`
}

// CastVoteHandler records the caller's blind rating of a song.
func (s *Server) CastVoteHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	playerID, ok := s.requirePlayer(w, r, partyID)
	if !ok {
		return
	}
	songID, err := uuid.Parse(r.PathValue("songID"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	vote, err := s.Engine.CastVote(r.Context(), partyID, songID, playerID, req.Rating, party.VoteOptions{
		ThemeRating: req.ThemeRating,
		Comment:     req.Comment,
		Lock:        req.Lock,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

// LockVoteHandler locks a single ballot at the voter's request.
func (s *Server) LockVoteHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	voteID, err := uuid.Parse(r.PathValue("voteID"))
	if err != nil {
		http.Error(w, "invalid vote id", http.StatusBadRequest)
		return
	}

	vote, err := s.Engine.LockVote(r.Context(), partyID, voteID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}

// LockVotesHandler locks every open vote on a song. Fired by the host's
// client when a song finishes playing.
func (s *Server) LockVotesHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	songID, err := uuid.Parse(r.PathValue("songID"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}

	locked, err := s.Engine.LockVotes(r.Context(), partyID, songID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"locked": locked})
}

// ScoreSongHandler computes a song's score from its locked votes and pushes
// the refreshed anonymous leaderboard to the party.
func (s *Server) ScoreSongHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	songID, err := uuid.Parse(r.PathValue("songID"))
	if err != nil {
		http.Error(w, "invalid song id", http.StatusBadRequest)
		return
	}

	song, err := s.Engine.ScoreSong(r.Context(), partyID, songID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if entries, err := s.Engine.AnonymousLeaderboard(r.Context(), partyID, nil); err == nil {
		s.Hub.Broadcast(partyID, map[string]interface{}{
			"type":        "leaderboard_update",
			"leaderboard": entries,
		})
	}
	writeJSON(w, http.StatusOK, song)
}

// BoostVoteHandler marks a vote as boosted on behalf of the power-up system.
func (s *Server) BoostVoteHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	if _, ok := s.requirePlayer(w, r, partyID); !ok {
		return
	}
	voteID, err := uuid.Parse(r.PathValue("voteID"))
	if err != nil {
		http.Error(w, "invalid vote id", http.StatusBadRequest)
		return
	}

	vote, err := s.Engine.BoostVote(r.Context(), partyID, voteID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}
