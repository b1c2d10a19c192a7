package party

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixdown-games/encore/internal/models"
	"github.com/mixdown-games/encore/internal/store"
)

func TestPoolSizesCoverMaxPlayers(t *testing.T) {
	aliases, silhouettes, colors := PoolSizes()
	assert.GreaterOrEqual(t, aliases, MaxPlayers)
	assert.GreaterOrEqual(t, silhouettes, MaxPlayers)
	assert.GreaterOrEqual(t, colors, MaxPlayers)
}

func TestIdentitiesAssignedAtPlayingTransition(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players, _ := setupPlayingParty(t, e, 4, settings)

	entries, err := e.AnonymousLeaderboard(ctx, p.ID, nil)
	require.NoError(t, err)
	require.Len(t, entries, len(players))

	aliases := make(map[string]bool)
	silhouettes := make(map[string]bool)
	colors := make(map[string]bool)
	for _, entry := range entries {
		assert.NotEmpty(t, entry.Alias)
		assert.False(t, aliases[entry.Alias], "alias %q assigned twice", entry.Alias)
		assert.False(t, silhouettes[entry.Silhouette], "silhouette %q assigned twice", entry.Silhouette)
		assert.False(t, colors[entry.Color], "color %q assigned twice", entry.Color)
		aliases[entry.Alias] = true
		silhouettes[entry.Silhouette] = true
		colors[entry.Color] = true
	}
}

func TestAssignIdentitiesPoolExhausted(t *testing.T) {
	st := store.NewMemory()
	e := NewEngine(st)
	ctx := context.Background()

	aliases, _, _ := PoolSizes()
	p := &models.Party{
		ID:        uuid.New(),
		JoinCode:  "TEST",
		Status:    models.StatusSubmitting,
		Settings:  models.PartySettings{SongsPerPlayer: 1},
		CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateParty(ctx, p))
	for i := 0; i <= aliases; i++ {
		require.NoError(t, st.CreatePlayer(ctx, &models.Player{
			ID:          uuid.New(),
			PartyID:     p.ID,
			DisplayName: fmt.Sprintf("player-%d", i),
		}))
	}

	_, err := e.AssignIdentities(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestAnonymousLeaderboardWithholdsNamesUntilReveal(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players, _ := setupPlayingParty(t, e, 2, settings)

	entries, err := e.AnonymousLeaderboard(ctx, p.ID, nil)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, entry.Revealed)
		assert.Empty(t, entry.RealName)
	}

	revealed, err := e.RevealIdentity(ctx, p.ID, players[1], 1)
	require.NoError(t, err)

	entries, err = e.AnonymousLeaderboard(ctx, p.ID, nil)
	require.NoError(t, err)
	var found bool
	for _, entry := range entries {
		if entry.Alias == revealed.Alias {
			found = true
			assert.True(t, entry.Revealed)
			assert.Equal(t, "player-1", entry.RealName)
		} else {
			assert.Empty(t, entry.RealName)
		}
	}
	assert.True(t, found)
}

func TestAnonymousLeaderboardMovement(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players, songs := setupPlayingParty(t, e, 2, settings)

	// Without a baseline every entry is new.
	entries, err := e.AnonymousLeaderboard(ctx, p.ID, nil)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, models.MovementNew, entry.Movement)
	}

	// Score one song, then compare against a baseline of all zeros: the
	// scored submitter moves up, the others hold.
	song := songs[0]
	for _, voter := range players {
		if voter == song.PlayerID {
			continue
		}
		_, err := e.CastVote(ctx, p.ID, song.ID, voter, 9, VoteOptions{Lock: true})
		require.NoError(t, err)
	}
	_, err = e.ScoreSong(ctx, p.ID, song.ID)
	require.NoError(t, err)

	baseline := make(map[uuid.UUID]float64, len(players))
	for _, id := range players {
		baseline[id] = 0
	}
	entries, err = e.AnonymousLeaderboard(ctx, p.ID, baseline)
	require.NoError(t, err)
	ups, sames := 0, 0
	for _, entry := range entries {
		switch entry.Movement {
		case models.MovementUp:
			ups++
		case models.MovementSame:
			sames++
		}
	}
	assert.Equal(t, 1, ups)
	assert.Equal(t, len(players)-1, sames)
}

func TestMovementTag(t *testing.T) {
	playerID := uuid.New()
	assert.Equal(t, models.MovementNew, movementTag(5, playerID, nil))
	assert.Equal(t, models.MovementNew, movementTag(5, playerID, map[uuid.UUID]float64{}))
	prev := map[uuid.UUID]float64{playerID: 5}
	assert.Equal(t, models.MovementSame, movementTag(5, playerID, prev))
	assert.Equal(t, models.MovementUp, movementTag(6, playerID, prev))
	assert.Equal(t, models.MovementDown, movementTag(4, playerID, prev))
}

func TestRevealOrderWorstFirst(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	settings.BonusCategoryCount = 0
	p, players, songs := setupPlayingParty(t, e, 2, settings)

	ratings := map[uuid.UUID]int{
		players[0]: 10,
		players[1]: 6,
		players[2]: 2,
	}
	for _, song := range songs {
		for _, voter := range players {
			if voter == song.PlayerID {
				continue
			}
			_, err := e.CastVote(ctx, p.ID, song.ID, voter, ratings[song.PlayerID], VoteOptions{Lock: true})
			require.NoError(t, err)
		}
		_, err := e.ScoreSong(ctx, p.ID, song.ID)
		require.NoError(t, err)
	}

	slots, err := e.RevealOrder(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	// Worst total is disclosed first, champion last.
	assert.Equal(t, players[2], slots[0].PlayerID)
	assert.Equal(t, players[1], slots[1].PlayerID)
	assert.Equal(t, players[0], slots[2].PlayerID)
	for i, slot := range slots {
		assert.Equal(t, i+1, slot.Position)
		assert.NotEmpty(t, slot.Alias)
		assert.False(t, slot.Revealed)
		if i > 0 {
			assert.GreaterOrEqual(t, slot.Total, slots[i-1].Total)
		}
	}

	_, err = e.RevealIdentity(ctx, p.ID, players[2], 1)
	require.NoError(t, err)
	slots, err = e.RevealOrder(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, slots[0].Revealed)
}

func TestRevealIdentity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players, _ := setupPlayingParty(t, e, 1, settings)

	id, err := e.RevealIdentity(ctx, p.ID, players[0], 1)
	require.NoError(t, err)
	assert.True(t, id.Revealed)
	assert.Equal(t, 1, id.RevealOrder)
	require.NotNil(t, id.RevealedAt)

	// Revealing again is legal and re-stamps the order.
	id, err = e.RevealIdentity(ctx, p.ID, players[0], 2)
	require.NoError(t, err)
	assert.Equal(t, 2, id.RevealOrder)

	_, err = e.RevealIdentity(ctx, p.ID, uuid.New(), 1)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func TestRevealBeforeIdentitiesAssigned(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 0, defaultSettings())

	_, err := e.RevealIdentity(ctx, p.ID, players[0], 1)
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}
