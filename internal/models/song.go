package models

import (
	"time"

	"github.com/google/uuid"
)

// Track holds the external streaming-service metadata for a submission.
// Lookup/search against the provider is out of scope; these fields arrive
// already resolved.
type Track struct {
	TrackID    string `json:"track_id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artwork_url,omitempty"`
	Permalink  string `json:"permalink,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

// SongScore holds the derived scoring fields for a song. A song carries a nil
// *SongScore until it has been scored.
type SongScore struct {
	// RawAverage is the arithmetic mean of locked ratings (0 with no votes).
	RawAverage float64 `json:"raw_average"`

	// WeightedScore is RawAverage multiplied by the round weight multiplier.
	WeightedScore float64 `json:"weighted_score"`

	// ConfidenceModifier is the bounded reward/penalty for the submitter's
	// confidence bet against the realized raw average.
	ConfidenceModifier float64 `json:"confidence_modifier"`

	// FinalScore is WeightedScore + ConfidenceModifier.
	FinalScore float64 `json:"final_score"`

	// Histogram counts locked votes per rating value; bucket i holds the
	// number of ratings equal to i+1.
	Histogram [10]int `json:"histogram"`
}

// Song is one anonymous submission. RoundNumber is the submitter's Nth song;
// QueuePosition is the global playback order, zero until rounds are organized.
type Song struct {
	ID       uuid.UUID `json:"id"`
	PartyID  uuid.UUID `json:"party_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Track    Track     `json:"track"`

	// Confidence is the submitter's 1-5 bet on how well the song will score.
	Confidence int `json:"confidence"`

	RoundNumber   int `json:"round_number"`
	QueuePosition int `json:"queue_position,omitempty"`

	// Insured marks a song whose single lowest vote is excluded from the raw
	// average. Set by the external power-up system before scoring.
	Insured bool `json:"insured,omitempty"`

	Score *SongScore `json:"score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
