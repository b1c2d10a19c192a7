package party

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundWeightMultiplier(t *testing.T) {
	tests := []struct {
		round, total int
		want         float64
	}{
		{1, 1, 1.5},
		{1, 2, 1.0},
		{2, 2, 2.0},
		{1, 3, 1.0},
		{2, 3, 1.5},
		{3, 3, 2.0},
		// Anything outside the standard schedules falls back to flat weights.
		{1, 4, 1.0},
		{4, 4, 1.0},
		{1, 0, 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundWeightMultiplier(tt.round, tt.total),
			"round %d of %d", tt.round, tt.total)
	}
}

func TestSubmitSongConfidenceBounds(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 0, defaultSettings())
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)

	_, err = e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("low"), Confidence: 0})
	assert.ErrorIs(t, err, ErrInvalidConfidence)
	_, err = e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("high"), Confidence: 6})
	assert.ErrorIs(t, err, ErrInvalidConfidence)

	_, err = e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("ok"), Confidence: 1})
	assert.NoError(t, err)
}

func TestSubmitSongPhaseAndMembership(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 0, defaultSettings())

	// Lobby phase: no submissions yet.
	_, err := e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("early"), Confidence: 3})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)

	_, err = e.SubmitSong(ctx, p.ID, uuid.New(), SongSubmission{Track: testTrack("ghost"), Confidence: 3})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestSubmitSongLimitAndRoundNumbering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 0, defaultSettings()) // 2 songs per player
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)

	first, err := e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("one"), Confidence: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, first.RoundNumber)

	second, err := e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("two"), Confidence: 4})
	require.NoError(t, err)
	assert.Equal(t, 2, second.RoundNumber)

	_, err = e.SubmitSong(ctx, p.ID, players[0], SongSubmission{Track: testTrack("three"), Confidence: 5})
	assert.ErrorIs(t, err, ErrSongLimitReached)
}

func TestRoundsHiddenBeforePlaying(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 1, defaultSettings())

	_, err := e.Rounds(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)
	_, err = e.Rounds(ctx, p.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOrganizeRoundsQueue(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 2, defaultSettings()) // 3 players x 2 songs
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)
	submitAll(t, e, p.ID, players, 2)
	_, err = e.AdvanceToPlaying(ctx, p.ID)
	require.NoError(t, err)

	rounds, err := e.Rounds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, 1.0, rounds[0].WeightMultiplier)
	assert.Equal(t, 2.0, rounds[1].WeightMultiplier)

	// Queue positions form one contiguous global sequence across rounds, and
	// each round holds exactly one song from each player.
	pos := 1
	for _, round := range rounds {
		require.Len(t, round.Songs, len(players))
		seen := make(map[uuid.UUID]bool)
		for _, s := range round.Songs {
			assert.Equal(t, pos, s.QueuePosition)
			assert.False(t, seen[s.PlayerID], "player has two songs in round %d", round.Number)
			seen[s.PlayerID] = true
			pos++
		}
	}
}

func TestNextSongWalksQueueInOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p, players := newTestParty(t, e, 1, defaultSettings())
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)
	submitAll(t, e, p.ID, players, 2)
	_, err = e.AdvanceToPlaying(ctx, p.ID)
	require.NoError(t, err)

	var played []int
	for {
		next, err := e.NextSong(ctx, p.ID)
		require.NoError(t, err)
		if next == nil {
			break
		}
		played = append(played, next.QueuePosition)
		_, err = e.ScoreSong(ctx, p.ID, next.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, played)
}

func TestRoundsCompleteFlag(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players := newTestParty(t, e, 1, settings)
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)
	submitAll(t, e, p.ID, players, 1)
	_, err = e.AdvanceToPlaying(ctx, p.ID)
	require.NoError(t, err)

	rounds, err := e.Rounds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.False(t, rounds[0].Complete)

	for _, s := range rounds[0].Songs {
		_, err := e.ScoreSong(ctx, p.ID, s.ID)
		require.NoError(t, err)
	}
	rounds, err = e.Rounds(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, rounds[0].Complete)
}

func TestSingleRoundUsesBoostedMultiplier(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	settings := defaultSettings()
	settings.SongsPerPlayer = 1
	p, players := newTestParty(t, e, 1, settings)
	_, err := e.StartParty(ctx, p.ID, players[0])
	require.NoError(t, err)
	submitAll(t, e, p.ID, players, 1)
	_, err = e.AdvanceToPlaying(ctx, p.ID)
	require.NoError(t, err)

	rounds, err := e.Rounds(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, 1.5, rounds[0].WeightMultiplier)
}
