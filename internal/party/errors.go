package party

// GameError is a typed engine failure. Every failure mode the engine can
// produce is one of these sentinel values, so callers can branch with
// errors.Is and transports can map Code to a wire status.
type GameError struct {
	Code    string
	Message string
}

func (e *GameError) Error() string { return e.Message }

var (
	ErrPartyNotFound    = &GameError{Code: "party_not_found", Message: "party not found"}
	ErrPlayerNotFound   = &GameError{Code: "player_not_found", Message: "player not found"}
	ErrPlayerNotInParty = &GameError{Code: "player_not_in_party", Message: "player does not belong to this party"}

	// ErrInvalidState covers every wrong-lifecycle-phase request, including
	// re-invoking a transition the party has already passed.
	ErrInvalidState = &GameError{Code: "invalid_state", Message: "party is in the wrong phase for this operation"}

	ErrSubmissionsIncomplete = &GameError{Code: "submissions_incomplete", Message: "not all players have submitted their songs"}
	ErrSongLimitReached      = &GameError{Code: "song_limit_reached", Message: "player has already submitted the maximum number of songs"}
	ErrInvalidConfidence     = &GameError{Code: "invalid_confidence", Message: "confidence must be an integer between 1 and 5"}
	ErrInvalidRating         = &GameError{Code: "invalid_rating", Message: "rating must be an integer between 1 and 10"}
	ErrInvalidSettings       = &GameError{Code: "invalid_settings", Message: "party settings are out of range"}
	ErrSongNotFound          = &GameError{Code: "song_not_found", Message: "song not found"}
	ErrVoteNotFound          = &GameError{Code: "vote_not_found", Message: "vote not found"}
	ErrNotSubmitter          = &GameError{Code: "not_submitter", Message: "only the submitter may modify this song"}
	ErrNotHost               = &GameError{Code: "not_host", Message: "only the host may perform this operation"}
	ErrSelfVote              = &GameError{Code: "self_vote", Message: "players cannot vote on their own songs"}
	ErrDuplicateVote         = &GameError{Code: "duplicate_vote", Message: "player has already voted on this song"}
	ErrPartyFull             = &GameError{Code: "party_full", Message: "party has reached the maximum player count"}
	ErrInsufficientPoints    = &GameError{Code: "insufficient_points", Message: "player does not have enough power points"}
	ErrIdentityNotFound      = &GameError{Code: "identity_not_found", Message: "player has no identity in this party"}

	// ErrPoolExhausted means more players than identity pool entries. This is
	// a configuration error and fatal for the party's game.
	ErrPoolExhausted = &GameError{Code: "pool_exhausted", Message: "identity pool is smaller than the player count"}
)
