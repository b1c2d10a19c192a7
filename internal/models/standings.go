package models

import "github.com/google/uuid"

// BonusAward records one bonus-category win at the finale.
type BonusAward struct {
	Category string    `json:"category"`
	SongID   uuid.UUID `json:"song_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Points   int       `json:"points"`
}

// PlayerStanding is one row of the final ranking. Ranks are dense: players
// with equal totals share a rank, and the next distinct total takes
// 1 + (count of players strictly above).
type PlayerStanding struct {
	Rank        int       `json:"rank"`
	PlayerID    uuid.UUID `json:"player_id"`
	DisplayName string    `json:"display_name"`
	Total       float64   `json:"total"`
	BonusPoints int       `json:"bonus_points"`
	SongCount   int       `json:"song_count"`

	// TopSong is the player's highest-scoring song, for end-of-game playback.
	TopSong *Song `json:"top_song,omitempty"`
}

// Movement describes how a leaderboard entry moved against a prior snapshot.
type Movement string

const (
	MovementUp   Movement = "up"
	MovementDown Movement = "down"
	MovementSame Movement = "same"
	MovementNew  Movement = "new"
)

// LeaderboardEntry is one anonymized leaderboard row. RealName is populated
// only once the identity has been revealed; before that the field is absent
// from the payload entirely.
type LeaderboardEntry struct {
	Rank       int      `json:"rank"`
	Alias      string   `json:"alias"`
	Silhouette string   `json:"silhouette"`
	Color      string   `json:"color"`
	Score      float64  `json:"score"`
	SongCount  int      `json:"song_count"`
	Movement   Movement `json:"movement"`
	Revealed   bool     `json:"revealed"`
	RealName   string   `json:"real_name,omitempty"`
}

// RevealSlot is one position in the finale reveal sequence, ordered from the
// lowest total to the highest.
type RevealSlot struct {
	Position int       `json:"position"`
	PlayerID uuid.UUID `json:"player_id"`
	Alias    string    `json:"alias"`
	Total    float64   `json:"total"`
	Revealed bool      `json:"revealed"`
}
