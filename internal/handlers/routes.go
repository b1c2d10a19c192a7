package handlers

import "net/http"

// Routes builds the full HTTP surface.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// party lifecycle
	mux.HandleFunc("POST /party/create", s.CreatePartyHandler)
	mux.HandleFunc("POST /party/join", s.JoinPartyHandler)
	mux.HandleFunc("GET /party/{id}", s.GetPartyHandler)
	mux.HandleFunc("GET /party/{id}/players", s.ListPlayersHandler)
	mux.HandleFunc("POST /party/{id}/start", s.StartPartyHandler)
	mux.HandleFunc("POST /party/{id}/playing", s.AdvanceToPlayingHandler)
	mux.HandleFunc("POST /party/{id}/finale", s.AdvanceToFinaleHandler)
	mux.HandleFunc("POST /party/{id}/complete", s.AdvanceToCompleteHandler)

	// submissions and playback
	mux.HandleFunc("POST /party/{id}/songs", s.SubmitSongHandler)
	mux.HandleFunc("GET /party/{id}/songs/next", s.NextSongHandler)
	mux.HandleFunc("GET /party/{id}/rounds", s.ListRoundsHandler)
	mux.HandleFunc("POST /party/{id}/songs/{songID}/insure", s.InsureSongHandler)

	// voting and scoring
	mux.HandleFunc("POST /party/{id}/songs/{songID}/votes", s.CastVoteHandler)
	mux.HandleFunc("POST /party/{id}/songs/{songID}/votes/lock", s.LockVotesHandler)
	mux.HandleFunc("POST /party/{id}/songs/{songID}/score", s.ScoreSongHandler)
	mux.HandleFunc("POST /party/{id}/votes/{voteID}/lock", s.LockVoteHandler)
	mux.HandleFunc("POST /party/{id}/votes/{voteID}/boost", s.BoostVoteHandler)
	mux.HandleFunc("POST /party/{id}/power-points", s.GrantPowerPointsHandler)

	// finale
	mux.HandleFunc("GET /party/{id}/leaderboard", s.LeaderboardHandler)
	mux.HandleFunc("GET /party/{id}/standings", s.StandingsHandler)
	mux.HandleFunc("GET /party/{id}/bonus-winners", s.BonusWinnersHandler)
	mux.HandleFunc("GET /party/{id}/reveal-order", s.RevealOrderHandler)
	mux.HandleFunc("POST /party/{id}/reveal", s.RevealHandler)

	// realtime
	mux.HandleFunc("GET /party/ws/{id}", s.PartyWSHandler)

	return mux
}
