package models

import (
	"time"

	"github.com/google/uuid"
)

// Vote is one player's 1-10 rating of a song. A (song, voter) pair is unique.
// Votes are mutable until locked; locking makes them eligible for scoring.
type Vote struct {
	ID      uuid.UUID `json:"id"`
	SongID  uuid.UUID `json:"song_id"`
	VoterID uuid.UUID `json:"voter_id"`
	Rating  int       `json:"rating"`
	Locked  bool      `json:"locked"`

	// ThemeRating is an optional 1-10 theme-adherence rating.
	ThemeRating *int `json:"theme_rating,omitempty"`

	// Boosted marks a vote that counts double in the raw average. Set by the
	// external power-up system.
	Boosted bool `json:"boosted,omitempty"`

	Comment string `json:"comment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
