package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/mixdown-games/encore/internal/party"
)

// SubmitSongHandler records one anonymous submission for the calling player.
func (s *Server) SubmitSongHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	playerID, ok := s.requirePlayer(w, r, partyID)
	if !ok {
		return
	}

	var sub party.SongSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return
	}

	song, err := s.Engine.SubmitSong(r.Context(), partyID, playerID, sub)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// Submission progress is public; the song itself stays hidden.
	s.Hub.Broadcast(partyID, map[string]interface{}{
		"type":  "song_submitted",
		"round": song.RoundNumber,
	})
	writeJSON(w, http.StatusCreated, song)
}

// NextSongHandler returns the playback cursor, or 204 when the queue is done.
func (s *Server) NextSongHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	song, err := s.Engine.NextSong(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if song == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, song)
}

// ListRoundsHandler returns the organized round structure.
func (s *Server) ListRoundsHandler(w http.ResponseWriter, r *http.Request) {
	partyID, ok := partyIDFromPath(w, r)
	if !ok {
		return
	}
	rounds, err := s.Engine.Rounds(r.Context(), partyID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// InsureSongHandler marks the caller's song as insured; its single lowest
// vote will be excluded from the raw average at scoring time.
func (s *Server) InsureSongHandler(w http.ResponseWriter, r *http.Request) {
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

	song, err := s.Engine.InsureSong(r.Context(), partyID, playerID, songID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, song)
}
