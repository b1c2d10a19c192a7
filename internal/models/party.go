// internal/models/party.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// PartyStatus is the lifecycle phase of a party. Transitions are strictly
// linear: lobby -> submitting -> playing -> finale -> complete.
type PartyStatus string

const (
	StatusLobby      PartyStatus = "lobby"
	StatusSubmitting PartyStatus = "submitting"
	StatusPlaying    PartyStatus = "playing"
	StatusFinale     PartyStatus = "finale"
	StatusComplete   PartyStatus = "complete"
)

// PartySettings is the immutable per-game configuration, fixed at creation.
type PartySettings struct {
	// SongsPerPlayer is how many songs each player must submit (1-3).
	SongsPerPlayer int `json:"songs_per_player"`

	// PlayDurationSec is how long each song plays during the listening phase.
	PlayDurationSec int `json:"play_duration_sec"`

	// BonusCategoryCount is how many bonus categories are awarded at the
	// finale (0-3).
	BonusCategoryCount int `json:"bonus_category_count"`

	// ThemeRatings enables the optional theme-adherence rating on votes.
	ThemeRatings bool `json:"theme_ratings"`

	// VoteComments enables free-text comments on votes.
	VoteComments bool `json:"vote_comments"`

	// PowerUps enables boosted votes and song insurance.
	PowerUps bool `json:"power_ups"`
}

// Party represents one instance of the game, identified by a short join code.
type Party struct {
	ID          uuid.UUID     `json:"id"`
	JoinCode    string        `json:"join_code"`
	Status      PartyStatus   `json:"status"`
	HostID      uuid.UUID     `json:"host_id"`
	Settings    PartySettings `json:"settings"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}
