package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerTokenRoundTrip(t *testing.T) {
	Init()

	playerID := uuid.New()
	partyID := uuid.New()
	token, err := CreatePlayerToken(playerID, partyID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotPlayer, gotParty, err := VerifyPlayerToken(token)
	require.NoError(t, err)
	assert.Equal(t, playerID, gotPlayer)
	assert.Equal(t, partyID, gotParty)
}

func TestVerifyPlayerTokenRejectsGarbage(t *testing.T) {
	Init()

	_, _, err := VerifyPlayerToken("not-a-token")
	assert.Error(t, err)
}

func TestVerifyPlayerTokenRejectsForeignKey(t *testing.T) {
	Init()
	token, err := CreatePlayerToken(uuid.New(), uuid.New())
	require.NoError(t, err)

	// Rotating the keys invalidates everything signed before.
	Init()
	_, _, err = VerifyPlayerToken(token)
	assert.Error(t, err)
}
