package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the anonymous persona standing in for a player until the
// finale reveal. Alias, silhouette, and color are each unique within a party.
type Identity struct {
	PartyID    uuid.UUID `json:"party_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	Alias      string    `json:"alias"`
	Silhouette string    `json:"silhouette"`
	Color      string    `json:"color"`

	Revealed   bool       `json:"revealed"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`

	// RevealOrder is 1-based, stamped at reveal time, ascending with position
	// in the reveal sequence.
	RevealOrder int `json:"reveal_order,omitempty"`
}
