package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixdown-games/encore/internal/models"
)

func seedParty(t *testing.T, m *Memory) *models.Party {
	t.Helper()
	p := &models.Party{
		ID:        uuid.New(),
		JoinCode:  "ABCD",
		Status:    models.StatusLobby,
		Settings:  models.PartySettings{SongsPerPlayer: 2},
		CreatedAt: time.Now(),
	}
	require.NoError(t, m.CreateParty(context.Background(), p))
	return p
}

func seedPlayer(t *testing.T, m *Memory, partyID uuid.UUID) *models.Player {
	t.Helper()
	pl := &models.Player{ID: uuid.New(), PartyID: partyID, DisplayName: "p"}
	require.NoError(t, m.CreatePlayer(context.Background(), pl))
	return pl
}

func TestCreatePartyDuplicateJoinCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	seedParty(t, m)

	dup := &models.Party{ID: uuid.New(), JoinCode: "ABCD"}
	assert.ErrorIs(t, m.CreateParty(ctx, dup), ErrDuplicate)
}

func TestGetPartyByCode(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)

	got, err := m.GetPartyByCode(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = m.GetPartyByCode(ctx, "WXYZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadsReturnCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)
	pl := seedPlayer(t, m, p.ID)

	song := &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: pl.ID, Confidence: 3}
	require.NoError(t, m.InsertSongCapped(ctx, song, 2))

	got, err := m.GetSong(ctx, song.ID)
	require.NoError(t, err)
	got.Confidence = 5
	got.Score = &models.SongScore{FinalScore: 99}

	again, err := m.GetSong(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Confidence)
	assert.Nil(t, again.Score)
}

func TestInsertSongCappedConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)
	pl := seedPlayer(t, m, p.ID)

	const attempts = 16
	const limit = 2
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			song := &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: pl.ID}
			results <- m.InsertSongCapped(ctx, song, limit)
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, ErrLimitExceeded)
		}
	}
	assert.Equal(t, limit, accepted)

	count, err := m.CountSongs(ctx, p.ID, pl.ID)
	require.NoError(t, err)
	assert.Equal(t, limit, count)
}

func TestInsertSongCappedPerPlayer(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)
	a := seedPlayer(t, m, p.ID)
	b := seedPlayer(t, m, p.ID)

	// The cap is per player, not per party.
	require.NoError(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: a.ID}, 1))
	assert.ErrorIs(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: a.ID}, 1), ErrLimitExceeded)
	require.NoError(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: b.ID}, 1))
}

func TestInsertVoteUnique(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	songID := uuid.New()
	voterID := uuid.New()

	v := &models.Vote{ID: uuid.New(), SongID: songID, VoterID: voterID, Rating: 8}
	require.NoError(t, m.InsertVoteUnique(ctx, v))

	dup := &models.Vote{ID: uuid.New(), SongID: songID, VoterID: voterID, Rating: 9}
	assert.ErrorIs(t, m.InsertVoteUnique(ctx, dup), ErrDuplicate)

	// Same voter on another song is fine.
	other := &models.Vote{ID: uuid.New(), SongID: uuid.New(), VoterID: voterID, Rating: 9}
	assert.NoError(t, m.InsertVoteUnique(ctx, other))
}

func TestLockVotesBySong(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	songID := uuid.New()

	require.NoError(t, m.InsertVoteUnique(ctx, &models.Vote{ID: uuid.New(), SongID: songID, VoterID: uuid.New(), Rating: 7}))
	require.NoError(t, m.InsertVoteUnique(ctx, &models.Vote{ID: uuid.New(), SongID: songID, VoterID: uuid.New(), Rating: 8, Locked: true}))

	locked, err := m.LockVotesBySong(ctx, songID)
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	// Everything is locked now; a second sweep finds nothing open.
	locked, err = m.LockVotesBySong(ctx, songID)
	require.NoError(t, err)
	assert.Zero(t, locked)
}

func TestSetQueuePositionsUnknownSong(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)

	err := m.SetQueuePositions(ctx, p.ID, map[uuid.UUID]int{uuid.New(): 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIdentityLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)
	a := seedPlayer(t, m, p.ID)
	b := seedPlayer(t, m, p.ID)

	require.NoError(t, m.InsertIdentities(ctx, []*models.Identity{
		{PartyID: p.ID, PlayerID: a.ID, Alias: "Neon Falcon"},
		{PartyID: p.ID, PlayerID: b.ID, Alias: "Velvet Thunder"},
	}))

	ids, err := m.ListIdentities(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	// Listing follows player join order.
	assert.Equal(t, a.ID, ids[0].PlayerID)
	assert.Equal(t, b.ID, ids[1].PlayerID)

	at := time.Now()
	require.NoError(t, m.MarkRevealed(ctx, p.ID, a.ID, 1, at))
	id, err := m.GetIdentity(ctx, p.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, id.Revealed)
	assert.Equal(t, 1, id.RevealOrder)
	require.NotNil(t, id.RevealedAt)

	assert.ErrorIs(t, m.MarkRevealed(ctx, p.ID, uuid.New(), 1, at), ErrNotFound)
	_, err = m.GetIdentity(ctx, p.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerListingOrderAndCounts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := seedParty(t, m)
	a := seedPlayer(t, m, p.ID)
	b := seedPlayer(t, m, p.ID)

	players, err := m.ListPlayers(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, players, 2)
	assert.Equal(t, a.ID, players[0].ID)
	assert.Equal(t, b.ID, players[1].ID)

	require.NoError(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: a.ID}, 2))
	require.NoError(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: a.ID}, 2))
	require.NoError(t, m.InsertSongCapped(ctx, &models.Song{ID: uuid.New(), PartyID: p.ID, PlayerID: b.ID}, 2))

	counts, err := m.CountSongsByPlayer(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[a.ID])
	assert.Equal(t, 1, counts[b.ID])
}
