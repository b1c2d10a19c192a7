// Package store defines the durable entity store the game engine reads and
// writes through, with a PostgreSQL implementation for production and an
// in-memory implementation for tests and single-box play.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mixdown-games/encore/internal/models"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a uniqueness constraint would be violated
	// (join code, one vote per song per voter).
	ErrDuplicate = errors.New("store: duplicate")

	// ErrLimitExceeded is returned by capped inserts when the count check
	// fails inside the atomic check-then-insert.
	ErrLimitExceeded = errors.New("store: limit exceeded")
)

// Store is the full entity store surface. Compound check-then-write
// operations (capped song insert, unique vote insert, point increments) are
// atomic within the store regardless of implementation.
type Store interface {
	// Parties.
	CreateParty(ctx context.Context, p *models.Party) error
	GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error)
	GetPartyByCode(ctx context.Context, code string) (*models.Party, error)
	SetPartyStatus(ctx context.Context, id uuid.UUID, status models.PartyStatus, startedAt, completedAt *time.Time) error

	// Players. ListPlayers returns players in creation order.
	CreatePlayer(ctx context.Context, pl *models.Player) error
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	ListPlayers(ctx context.Context, partyID uuid.UUID) ([]*models.Player, error)
	SetPlayerConnected(ctx context.Context, id uuid.UUID, connected bool) error
	AddPowerPoints(ctx context.Context, id uuid.UUID, delta int) error

	// Songs. ListSongs returns songs in creation order. InsertSongCapped
	// fails with ErrLimitExceeded when the submitter already has limit songs
	// in the party; the count and insert are a single atomic unit.
	InsertSongCapped(ctx context.Context, s *models.Song, limit int) error
	GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error)
	ListSongs(ctx context.Context, partyID uuid.UUID) ([]*models.Song, error)
	CountSongs(ctx context.Context, partyID, playerID uuid.UUID) (int, error)
	CountSongsByPlayer(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]int, error)
	SetQueuePositions(ctx context.Context, partyID uuid.UUID, positions map[uuid.UUID]int) error
	SetSongInsured(ctx context.Context, songID uuid.UUID, insured bool) error
	SetSongScore(ctx context.Context, songID uuid.UUID, score *models.SongScore) error

	// Votes. InsertVoteUnique fails with ErrDuplicate when the voter has
	// already voted on the song.
	InsertVoteUnique(ctx context.Context, v *models.Vote) error
	GetVote(ctx context.Context, id uuid.UUID) (*models.Vote, error)
	ListVotesBySong(ctx context.Context, songID uuid.UUID) ([]*models.Vote, error)
	SetVoteBoosted(ctx context.Context, voteID uuid.UUID, boosted bool) error
	LockVote(ctx context.Context, id uuid.UUID) error
	LockVotesBySong(ctx context.Context, songID uuid.UUID) (int, error)

	// Identities.
	InsertIdentities(ctx context.Context, ids []*models.Identity) error
	GetIdentity(ctx context.Context, partyID, playerID uuid.UUID) (*models.Identity, error)
	ListIdentities(ctx context.Context, partyID uuid.UUID) ([]*models.Identity, error)
	MarkRevealed(ctx context.Context, partyID, playerID uuid.UUID, order int, at time.Time) error
}
