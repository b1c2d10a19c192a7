package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mixdown-games/encore/internal/models"
)

// Memory is an in-memory Store used by tests and single-box play. A single
// mutex makes every compound operation atomic; reads return copies so callers
// see a consistent snapshot rather than live state.
type Memory struct {
	mu sync.RWMutex

	parties map[uuid.UUID]*models.Party
	codes   map[string]uuid.UUID

	players      map[uuid.UUID]*models.Player
	partyPlayers map[uuid.UUID][]uuid.UUID

	songs      map[uuid.UUID]*models.Song
	partySongs map[uuid.UUID][]uuid.UUID

	votes     map[uuid.UUID]*models.Vote
	songVotes map[uuid.UUID][]uuid.UUID
	voteKeys  map[voteKey]struct{}

	identities map[uuid.UUID]map[uuid.UUID]*models.Identity
}

type voteKey struct {
	songID  uuid.UUID
	voterID uuid.UUID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		parties:      make(map[uuid.UUID]*models.Party),
		codes:        make(map[string]uuid.UUID),
		players:      make(map[uuid.UUID]*models.Player),
		partyPlayers: make(map[uuid.UUID][]uuid.UUID),
		songs:        make(map[uuid.UUID]*models.Song),
		partySongs:   make(map[uuid.UUID][]uuid.UUID),
		votes:        make(map[uuid.UUID]*models.Vote),
		songVotes:    make(map[uuid.UUID][]uuid.UUID),
		voteKeys:     make(map[voteKey]struct{}),
		identities:   make(map[uuid.UUID]map[uuid.UUID]*models.Identity),
	}
}

func copyParty(p *models.Party) *models.Party {
	c := *p
	return &c
}

func copyPlayer(pl *models.Player) *models.Player {
	c := *pl
	return &c
}

func copySong(s *models.Song) *models.Song {
	c := *s
	if s.Score != nil {
		sc := *s.Score
		c.Score = &sc
	}
	return &c
}

func copyVote(v *models.Vote) *models.Vote {
	c := *v
	if v.ThemeRating != nil {
		tr := *v.ThemeRating
		c.ThemeRating = &tr
	}
	return &c
}

func copyIdentity(id *models.Identity) *models.Identity {
	c := *id
	if id.RevealedAt != nil {
		at := *id.RevealedAt
		c.RevealedAt = &at
	}
	return &c
}

func (m *Memory) CreateParty(_ context.Context, p *models.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.codes[p.JoinCode]; exists {
		return ErrDuplicate
	}
	m.parties[p.ID] = copyParty(p)
	m.codes[p.JoinCode] = p.ID
	return nil
}

func (m *Memory) GetParty(_ context.Context, id uuid.UUID) (*models.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parties[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParty(p), nil
}

func (m *Memory) GetPartyByCode(_ context.Context, code string) (*models.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyParty(m.parties[id]), nil
}

func (m *Memory) SetPartyStatus(_ context.Context, id uuid.UUID, status models.PartyStatus, startedAt, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	if startedAt != nil {
		at := *startedAt
		p.StartedAt = &at
	}
	if completedAt != nil {
		at := *completedAt
		p.CompletedAt = &at
	}
	return nil
}

func (m *Memory) CreatePlayer(_ context.Context, pl *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.parties[pl.PartyID]; !ok {
		return ErrNotFound
	}
	m.players[pl.ID] = copyPlayer(pl)
	m.partyPlayers[pl.PartyID] = append(m.partyPlayers[pl.PartyID], pl.ID)
	return nil
}

func (m *Memory) GetPlayer(_ context.Context, id uuid.UUID) (*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pl, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPlayer(pl), nil
}

func (m *Memory) ListPlayers(_ context.Context, partyID uuid.UUID) ([]*models.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.partyPlayers[partyID]
	out := make([]*models.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyPlayer(m.players[id]))
	}
	return out, nil
}

func (m *Memory) SetPlayerConnected(_ context.Context, id uuid.UUID, connected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	pl.Connected = connected
	return nil
}

func (m *Memory) AddPowerPoints(_ context.Context, id uuid.UUID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.players[id]
	if !ok {
		return ErrNotFound
	}
	pl.PowerPoints += delta
	return nil
}

func (m *Memory) InsertSongCapped(_ context.Context, s *models.Song, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range m.partySongs[s.PartyID] {
		if m.songs[id].PlayerID == s.PlayerID {
			count++
		}
	}
	if count >= limit {
		return ErrLimitExceeded
	}
	m.songs[s.ID] = copySong(s)
	m.partySongs[s.PartyID] = append(m.partySongs[s.PartyID], s.ID)
	return nil
}

func (m *Memory) GetSong(_ context.Context, id uuid.UUID) (*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.songs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySong(s), nil
}

func (m *Memory) ListSongs(_ context.Context, partyID uuid.UUID) ([]*models.Song, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.partySongs[partyID]
	out := make([]*models.Song, 0, len(ids))
	for _, id := range ids {
		out = append(out, copySong(m.songs[id]))
	}
	return out, nil
}

func (m *Memory) CountSongs(_ context.Context, partyID, playerID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, id := range m.partySongs[partyID] {
		if m.songs[id].PlayerID == playerID {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CountSongsByPlayer(_ context.Context, partyID uuid.UUID) (map[uuid.UUID]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[uuid.UUID]int)
	for _, id := range m.partySongs[partyID] {
		counts[m.songs[id].PlayerID]++
	}
	return counts, nil
}

func (m *Memory) SetQueuePositions(_ context.Context, partyID uuid.UUID, positions map[uuid.UUID]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for songID, pos := range positions {
		s, ok := m.songs[songID]
		if !ok || s.PartyID != partyID {
			return ErrNotFound
		}
		s.QueuePosition = pos
	}
	return nil
}

func (m *Memory) SetSongInsured(_ context.Context, songID uuid.UUID, insured bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[songID]
	if !ok {
		return ErrNotFound
	}
	s.Insured = insured
	return nil
}

func (m *Memory) SetSongScore(_ context.Context, songID uuid.UUID, score *models.SongScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.songs[songID]
	if !ok {
		return ErrNotFound
	}
	sc := *score
	s.Score = &sc
	return nil
}

func (m *Memory) InsertVoteUnique(_ context.Context, v *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := voteKey{songID: v.SongID, voterID: v.VoterID}
	if _, exists := m.voteKeys[key]; exists {
		return ErrDuplicate
	}
	m.votes[v.ID] = copyVote(v)
	m.songVotes[v.SongID] = append(m.songVotes[v.SongID], v.ID)
	m.voteKeys[key] = struct{}{}
	return nil
}

func (m *Memory) GetVote(_ context.Context, id uuid.UUID) (*models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.votes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyVote(v), nil
}

func (m *Memory) ListVotesBySong(_ context.Context, songID uuid.UUID) ([]*models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.songVotes[songID]
	out := make([]*models.Vote, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyVote(m.votes[id]))
	}
	return out, nil
}

func (m *Memory) SetVoteBoosted(_ context.Context, voteID uuid.UUID, boosted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok {
		return ErrNotFound
	}
	v.Boosted = boosted
	return nil
}

func (m *Memory) LockVote(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[id]
	if !ok {
		return ErrNotFound
	}
	v.Locked = true
	return nil
}

func (m *Memory) LockVotesBySong(_ context.Context, songID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	locked := 0
	for _, id := range m.songVotes[songID] {
		v := m.votes[id]
		if !v.Locked {
			v.Locked = true
			locked++
		}
	}
	return locked, nil
}

func (m *Memory) InsertIdentities(_ context.Context, ids []*models.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		byPlayer, ok := m.identities[id.PartyID]
		if !ok {
			byPlayer = make(map[uuid.UUID]*models.Identity)
			m.identities[id.PartyID] = byPlayer
		}
		byPlayer[id.PlayerID] = copyIdentity(id)
	}
	return nil
}

func (m *Memory) GetIdentity(_ context.Context, partyID, playerID uuid.UUID) (*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.identities[partyID][playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIdentity(id), nil
}

func (m *Memory) ListIdentities(_ context.Context, partyID uuid.UUID) ([]*models.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Identity, 0, len(m.identities[partyID]))
	// Preserve player creation order for stable listings.
	for _, playerID := range m.partyPlayers[partyID] {
		if id, ok := m.identities[partyID][playerID]; ok {
			out = append(out, copyIdentity(id))
		}
	}
	return out, nil
}

func (m *Memory) MarkRevealed(_ context.Context, partyID, playerID uuid.UUID, order int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.identities[partyID][playerID]
	if !ok {
		return ErrNotFound
	}
	id.Revealed = true
	id.RevealOrder = order
	ts := at
	id.RevealedAt = &ts
	return nil
}
