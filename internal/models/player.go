package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is a participant in a single party. Players are created on join and
// live as long as the party does.
type Player struct {
	ID          uuid.UUID `json:"id"`
	PartyID     uuid.UUID `json:"party_id"`
	DisplayName string    `json:"display_name"`
	IsHost      bool      `json:"is_host"`
	Connected   bool      `json:"connected"`

	// PowerPoints is the player's spendable power-up currency, incremented
	// transactionally by the external power-up system.
	PowerPoints int `json:"power_points"`

	CreatedAt time.Time `json:"created_at"`
}
