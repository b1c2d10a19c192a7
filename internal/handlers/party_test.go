package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixdown-games/encore/internal/auth"
	"github.com/mixdown-games/encore/internal/models"
	"github.com/mixdown-games/encore/internal/party"
	"github.com/mixdown-games/encore/internal/store"
)

func newTestServer(t *testing.T) (*Server, *http.ServeMux) {
	t.Helper()
	auth.Init()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	engine := party.NewEngine(store.NewMemory(),
		party.WithLogger(logger),
		party.WithRand(rand.New(rand.NewSource(7))))
	srv := NewServer(engine, logger)
	return srv, srv.Routes()
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func createTestParty(t *testing.T, mux *http.ServeMux, settings models.PartySettings) joinedResponse {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/party/create", "", map[string]interface{}{
		"host_name": "host",
		"settings":  settings,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp joinedResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp
}

func joinTestParty(t *testing.T, mux *http.ServeMux, joinCode, name string) joinedResponse {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/party/join", "", map[string]string{
		"join_code":    joinCode,
		"display_name": name,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp joinedResponse
	decode(t, rec, &resp)
	return resp
}

func TestCreateAndJoinParty(t *testing.T) {
	_, mux := newTestServer(t)

	host := createTestParty(t, mux, models.PartySettings{SongsPerPlayer: 2})
	assert.Equal(t, models.StatusLobby, host.Party.Status)
	assert.Len(t, host.Party.JoinCode, party.JoinCodeLength)
	assert.True(t, host.Player.IsHost)

	guest := joinTestParty(t, mux, host.Party.JoinCode, "guest")
	assert.Equal(t, host.Party.ID, guest.Party.ID)
	assert.False(t, guest.Player.IsHost)

	rec := doJSON(t, mux, http.MethodGet, "/party/"+host.Party.ID.String()+"/players", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var players []*models.Player
	decode(t, rec, &players)
	assert.Len(t, players, 2)
}

func TestCreatePartyRequiresHostName(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doJSON(t, mux, http.MethodPost, "/party/create", "", map[string]interface{}{
		"settings": models.PartySettings{SongsPerPlayer: 2},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinUnknownCode(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doJSON(t, mux, http.MethodPost, "/party/join", "", map[string]string{
		"join_code":    "ZZZZ",
		"display_name": "nobody",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartPartyAuth(t *testing.T) {
	_, mux := newTestServer(t)
	host := createTestParty(t, mux, models.PartySettings{SongsPerPlayer: 1})
	guest := joinTestParty(t, mux, host.Party.JoinCode, "guest")
	startPath := "/party/" + host.Party.ID.String() + "/start"

	rec := doJSON(t, mux, http.MethodPost, startPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, startPath, guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, startPath, host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p models.Party
	decode(t, rec, &p)
	assert.Equal(t, models.StatusSubmitting, p.Status)

	// The transition is not idempotent.
	rec = doJSON(t, mux, http.MethodPost, startPath, host.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTokenBoundToParty(t *testing.T) {
	_, mux := newTestServer(t)
	first := createTestParty(t, mux, models.PartySettings{SongsPerPlayer: 1})
	second := createTestParty(t, mux, models.PartySettings{SongsPerPlayer: 1})

	rec := doJSON(t, mux, http.MethodPost, "/party/"+second.Party.ID.String()+"/start", first.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func submitTestSong(t *testing.T, mux *http.ServeMux, partyID, token, title string, confidence int) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/songs", token, map[string]interface{}{
		"track": models.Track{
			TrackID: "trk-" + title,
			Title:   title,
			Artist:  "Test Artist",
		},
		"confidence": confidence,
	})
}

func TestGameFlowOverHTTP(t *testing.T) {
	_, mux := newTestServer(t)
	host := createTestParty(t, mux, models.PartySettings{SongsPerPlayer: 1, BonusCategoryCount: 1})
	guest := joinTestParty(t, mux, host.Party.JoinCode, "guest")
	partyID := host.Party.ID.String()

	rec := doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/start", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = submitTestSong(t, mux, partyID, host.Token, "host-song", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = submitTestSong(t, mux, partyID, host.Token, "host-song", 3)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Advancing with an outstanding submission conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/playing", host.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = submitTestSong(t, mux, partyID, guest.Token, "guest-song", 4)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/playing", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Walk the queue: fetch the cursor, vote, lock, score.
	for {
		rec = doJSON(t, mux, http.MethodGet, "/party/"+partyID+"/songs/next", "", nil)
		if rec.Code == http.StatusNoContent {
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
		var song models.Song
		decode(t, rec, &song)

		voter := host
		if song.PlayerID == host.Player.ID {
			voter = guest
		}
		votePath := fmt.Sprintf("/party/%s/songs/%s/votes", partyID, song.ID)
		rec = doJSON(t, mux, http.MethodPost, votePath, voter.Token, map[string]interface{}{"rating": 8})
		require.Equal(t, http.StatusCreated, rec.Code)

		// The submitter cannot rate their own song.
		submitter := host
		if song.PlayerID == guest.Player.ID {
			submitter = guest
		}
		rec = doJSON(t, mux, http.MethodPost, votePath, submitter.Token, map[string]interface{}{"rating": 8})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, mux, http.MethodPost, votePath+"/lock", host.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var lockResp map[string]int
		decode(t, rec, &lockResp)
		assert.Equal(t, 1, lockResp["locked"])

		rec = doJSON(t, mux, http.MethodPost, fmt.Sprintf("/party/%s/songs/%s/score", partyID, song.ID), host.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/finale", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/party/"+partyID+"/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.LeaderboardEntry
	decode(t, rec, &entries)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.NotEmpty(t, entry.Alias)
		assert.Empty(t, entry.RealName)
	}

	rec = doJSON(t, mux, http.MethodGet, "/party/"+partyID+"/reveal-order", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []models.RevealSlot
	decode(t, rec, &slots)
	require.Len(t, slots, 2)

	rec = doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/reveal", host.Token, map[string]interface{}{
		"player_id": slots[0].PlayerID,
		"order":     1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/party/"+partyID+"/standings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var standings []models.PlayerStanding
	decode(t, rec, &standings)
	require.Len(t, standings, 2)
	assert.Equal(t, 1, standings[0].Rank)

	rec = doJSON(t, mux, http.MethodPost, "/party/"+partyID+"/complete", host.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var done models.Party
	decode(t, rec, &done)
	assert.Equal(t, models.StatusComplete, done.Status)
	assert.NotNil(t, done.CompletedAt)
}

func TestUnknownPartyIs404(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doJSON(t, mux, http.MethodGet, "/party/00000000-0000-0000-0000-000000000001", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedPartyIDIs400(t *testing.T) {
	_, mux := newTestServer(t)
	rec := doJSON(t, mux, http.MethodGet, "/party/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
