package models

// Round is a derived grouping of the songs occupying the same per-player
// submission slot. Rounds are computed from songs, never stored.
type Round struct {
	Number           int     `json:"number"`
	Songs            []*Song `json:"songs"`
	WeightMultiplier float64 `json:"weight_multiplier"`
	Complete         bool    `json:"complete"`
}
