package party

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mixdown-games/encore/internal/models"
	"github.com/mixdown-games/encore/internal/store"
)

// Identity pools. Each pool must stay larger than MaxPlayers so assignment
// can always draw without replacement.
var (
	aliasPool = []string{
		"Neon Falcon", "Velvet Thunder", "Midnight Cassette", "Disco Wraith",
		"Static Cherry", "Golden Reverb", "Phantom Groove", "Electric Mirage",
		"Crimson Echo", "Lunar Bassline", "Turbo Nightingale", "Shadow Tempo",
		"Glitter Viper", "Cosmic Drifter", "Silver Fuzz", "Wild Frequency",
	}
	silhouettePool = []string{
		"guitarist", "dancer", "dj", "drummer", "crooner", "headbanger",
		"conductor", "breakdancer", "violinist", "rapper", "saxophonist",
		"keytarist", "vocalist", "bassist", "turntablist", "tambourinist",
	}
	colorPool = []string{
		"#FF3B6B", "#FF8A3B", "#FFD23B", "#9BE53B", "#3BE58A", "#3BD2FF",
		"#3B8AFF", "#6B3BFF", "#B03BFF", "#FF3BD2", "#FF6B8A", "#8AFF3B",
		"#3BFFB0", "#D2FF3B", "#FF5E3B", "#5E3BFF",
	}
)

// assignIdentitiesLocked draws a unique alias, silhouette, and color for each
// player, each pool shuffled independently. Caller holds the party's write
// lock.
func (e *Engine) assignIdentitiesLocked(ctx context.Context, p *models.Party, players []*models.Player) ([]*models.Identity, error) {
	n := len(players)
	if n > len(aliasPool) || n > len(silhouettePool) || n > len(colorPool) {
		return nil, ErrPoolExhausted
	}

	aliases := append([]string(nil), aliasPool...)
	silhouettes := append([]string(nil), silhouettePool...)
	colors := append([]string(nil), colorPool...)
	for _, pool := range [][]string{aliases, silhouettes, colors} {
		pool := pool
		e.shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
	}

	identities := make([]*models.Identity, n)
	for i, pl := range players {
		identities[i] = &models.Identity{
			PartyID:    p.ID,
			PlayerID:   pl.ID,
			Alias:      aliases[i],
			Silhouette: silhouettes[i],
			Color:      colors[i],
		}
	}
	if err := e.store.InsertIdentities(ctx, identities); err != nil {
		return nil, err
	}
	return identities, nil
}

// AssignIdentities draws anonymous identities for every player in the party.
// Normally invoked by the playing transition; exposed for re-running on a
// party whose identities were never assigned.
func (e *Engine) AssignIdentities(ctx context.Context, partyID uuid.UUID) ([]*models.Identity, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.ListPlayers(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return e.assignIdentitiesLocked(ctx, p, players)
}

// AnonymousLeaderboard returns the ranked, anonymized standings. The real
// name appears only for revealed identities; before reveal the field is
// withheld entirely. Movement is computed against previousScores, or tagged
// new when no baseline is given.
func (e *Engine) AnonymousLeaderboard(ctx context.Context, partyID uuid.UUID, previousScores map[uuid.UUID]float64) ([]models.LeaderboardEntry, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if _, err := e.party(ctx, partyID); err != nil {
		return nil, err
	}
	identities, err := e.store.ListIdentities(ctx, partyID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.ListPlayers(ctx, partyID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(players))
	for _, pl := range players {
		names[pl.ID] = pl.DisplayName
	}
	totals, counts, err := e.scoredTotals(ctx, partyID)
	if err != nil {
		return nil, err
	}

	type row struct {
		identity *models.Identity
		score    float64
	}
	rows := make([]row, 0, len(identities))
	for _, id := range identities {
		rows = append(rows, row{identity: id, score: totals[id.PlayerID]})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].score > rows[j].score
	})

	entries := make([]models.LeaderboardEntry, 0, len(rows))
	rank := 0
	var prev float64
	for i, r := range rows {
		if i == 0 || r.score != prev {
			rank++
			prev = r.score
		}
		entry := models.LeaderboardEntry{
			Rank:       rank,
			Alias:      r.identity.Alias,
			Silhouette: r.identity.Silhouette,
			Color:      r.identity.Color,
			Score:      r.score,
			SongCount:  counts[r.identity.PlayerID],
			Movement:   movementTag(r.score, r.identity.PlayerID, previousScores),
			Revealed:   r.identity.Revealed,
		}
		if r.identity.Revealed {
			entry.RealName = names[r.identity.PlayerID]
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func movementTag(score float64, playerID uuid.UUID, previous map[uuid.UUID]float64) models.Movement {
	if previous == nil {
		return models.MovementNew
	}
	prev, ok := previous[playerID]
	if !ok {
		return models.MovementNew
	}
	switch {
	case score > prev+1e-9:
		return models.MovementUp
	case score < prev-1e-9:
		return models.MovementDown
	default:
		return models.MovementSame
	}
}

// RevealOrder returns the finale reveal sequence: players ascending by final
// total, worst first, building toward the champion. Ties keep join order.
func (e *Engine) RevealOrder(ctx context.Context, partyID uuid.UUID) ([]models.RevealSlot, error) {
	standings, err := e.FinalStandings(ctx, partyID)
	if err != nil {
		return nil, err
	}

	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	identities, err := e.store.ListIdentities(ctx, partyID)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[uuid.UUID]*models.Identity, len(identities))
	for _, id := range identities {
		byPlayer[id.PlayerID] = id
	}

	// Standings are sorted descending with stable join-order ties; walking
	// them backward yields ascending totals with the same tie stability.
	slots := make([]models.RevealSlot, 0, len(standings))
	for i := len(standings) - 1; i >= 0; i-- {
		st := standings[i]
		slot := models.RevealSlot{
			Position: len(standings) - i,
			PlayerID: st.PlayerID,
			Total:    st.Total,
		}
		if id, ok := byPlayer[st.PlayerID]; ok {
			slot.Alias = id.Alias
			slot.Revealed = id.Revealed
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// RevealIdentity discloses a player's real identity, stamping the reveal
// order and timestamp. Revealing an already-revealed identity is legal and
// re-stamps both.
func (e *Engine) RevealIdentity(ctx context.Context, partyID, playerID uuid.UUID, order int) (*models.Identity, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if _, err := e.party(ctx, partyID); err != nil {
		return nil, err
	}
	if order < 1 {
		order = 1
	}
	now := time.Now()
	err := e.store.MarkRevealed(ctx, partyID, playerID, order, now)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := e.store.GetIdentity(ctx, partyID, playerID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, partyID, playerID, "identity_revealed")
	return id, nil
}

// PoolSizes reports the alias, silhouette, and color pool capacities.
func PoolSizes() (int, int, int) {
	return len(aliasPool), len(silhouettePool), len(colorPool)
}
