package party

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mixdown-games/encore/internal/models"
	"github.com/mixdown-games/encore/internal/store"
)

// Bonus category names, in award-priority order. A party with
// bonusCategoryCount = N uses the first N.
const (
	BonusCrowdFavorite  = "crowd_favorite"
	BonusMostPolarizing = "most_polarizing"
	BonusDarkHorse      = "dark_horse"
)

// bonusPoints is the fixed award for winning a bonus category.
const bonusPoints = 10

// darkHorseThreshold is the minimum raw average for a song to qualify as a
// dark horse despite its low confidence.
const darkHorseThreshold = 7.0

// VoteOptions carries the optional parts of a vote.
type VoteOptions struct {
	// ThemeRating is the optional 1-10 theme-adherence rating.
	ThemeRating *int

	// Comment is free-text feedback attached to the vote.
	Comment string

	// Lock locks the vote immediately instead of waiting for the external
	// lock trigger.
	Lock bool
}

// CastVote records one player's rating of a song. Self-votes and second
// votes on the same song are rejected; the (song, voter) uniqueness check is
// atomic in the store.
func (e *Engine) CastVote(ctx context.Context, partyID, songID, voterID uuid.UUID, rating int, opts VoteOptions) (*models.Vote, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPlaying {
		return nil, ErrInvalidState
	}
	if rating < 1 || rating > 10 {
		return nil, ErrInvalidRating
	}
	if opts.ThemeRating != nil && (*opts.ThemeRating < 1 || *opts.ThemeRating > 10) {
		return nil, ErrInvalidRating
	}

	song, err := e.songInParty(ctx, partyID, songID)
	if err != nil {
		return nil, err
	}
	if _, err := e.member(ctx, partyID, voterID); err != nil {
		return nil, err
	}
	if song.PlayerID == voterID {
		return nil, ErrSelfVote
	}

	v := &models.Vote{
		ID:        uuid.New(),
		SongID:    songID,
		VoterID:   voterID,
		Rating:    rating,
		Locked:    opts.Lock,
		CreatedAt: time.Now(),
	}
	if p.Settings.ThemeRatings {
		v.ThemeRating = opts.ThemeRating
	}
	if p.Settings.VoteComments {
		v.Comment = opts.Comment
	}

	if err := e.store.InsertVoteUnique(ctx, v); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateVote
		}
		return nil, err
	}

	e.publish(ctx, partyID, song.PlayerID, "vote_cast")
	return v, nil
}

// LockVote locks a single ballot early, at the voter's request. Locked votes
// cannot be changed and become eligible for scoring.
func (e *Engine) LockVote(ctx context.Context, partyID, voteID uuid.UUID) (*models.Vote, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPlaying {
		return nil, ErrInvalidState
	}
	v, err := e.store.GetVote(ctx, voteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := e.store.LockVote(ctx, voteID); err != nil {
		return nil, err
	}
	v.Locked = true
	return v, nil
}

// LockVotes locks every open vote on a song, making them eligible for
// scoring. This is the external trigger fired when a song finishes playing.
func (e *Engine) LockVotes(ctx context.Context, partyID, songID uuid.UUID) (int, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return 0, err
	}
	if p.Status != models.StatusPlaying {
		return 0, ErrInvalidState
	}
	if _, err := e.songInParty(ctx, partyID, songID); err != nil {
		return 0, err
	}
	return e.store.LockVotesBySong(ctx, songID)
}

// BoostVote marks a vote as counting double in the raw average. The effect
// itself belongs to the external power-up system; the engine only records
// the annotation before scoring.
func (e *Engine) BoostVote(ctx context.Context, partyID, voteID uuid.UUID) (*models.Vote, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if !p.Settings.PowerUps || p.Status != models.StatusPlaying {
		return nil, ErrInvalidState
	}
	v, err := e.store.GetVote(ctx, voteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := e.store.SetVoteBoosted(ctx, voteID, true); err != nil {
		return nil, err
	}
	v.Boosted = true
	return v, nil
}

// InsureSong excludes the song's single lowest vote from its raw average.
// Only the submitter may insure their own song.
func (e *Engine) InsureSong(ctx context.Context, partyID, playerID, songID uuid.UUID) (*models.Song, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if !p.Settings.PowerUps {
		return nil, ErrInvalidState
	}
	song, err := e.songInParty(ctx, partyID, songID)
	if err != nil {
		return nil, err
	}
	if song.PlayerID != playerID {
		return nil, ErrNotSubmitter
	}
	if err := e.store.SetSongInsured(ctx, songID, true); err != nil {
		return nil, err
	}
	song.Insured = true
	return song, nil
}

// confidenceModifier rewards or penalizes the submitter's 1-5 confidence bet
// against the realized raw average. The bet maps onto the rating band as an
// expected average of 2x confidence; the modifier is half the distance
// between outcome and expectation, clamped to [-2.5, +2.5]. Monotonic in the
// outcome-vs-bet delta, zero when the bet lands exactly.
func confidenceModifier(confidence int, rawAverage float64) float64 {
	expected := 2 * float64(confidence)
	mod := 0.5 * (rawAverage - expected)
	if mod > 2.5 {
		return 2.5
	}
	if mod < -2.5 {
		return -2.5
	}
	return mod
}

// ScoreSong computes and stores a song's derived scoring fields from its
// locked votes. Re-running replaces the previous result wholesale; nothing
// else about a scored song ever mutates.
func (e *Engine) ScoreSong(ctx context.Context, partyID, songID uuid.UUID) (*models.Song, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	song, err := e.songInParty(ctx, partyID, songID)
	if err != nil {
		return nil, err
	}
	votes, err := e.store.ListVotesBySong(ctx, songID)
	if err != nil {
		return nil, err
	}

	var locked []*models.Vote
	for _, v := range votes {
		if v.Locked {
			locked = append(locked, v)
		}
	}

	score := computeSongScore(song, locked, p.Settings.SongsPerPlayer)
	if err := e.store.SetSongScore(ctx, songID, score); err != nil {
		return nil, err
	}
	song.Score = score

	e.publish(ctx, partyID, song.PlayerID, "song_scored")
	e.log.WithFields(logrus.Fields{
		"party_id": partyID,
		"song_id":  songID,
		"final":    score.FinalScore,
	}).Debug("song scored")
	return song, nil
}

// computeSongScore is the pure scoring math: raw average over locked votes
// (insurance drops the single lowest, boosts count double), weighted by the
// round multiplier, plus the confidence modifier. An unvoted song scores 0
// across the board.
func computeSongScore(song *models.Song, locked []*models.Vote, totalRounds int) *models.SongScore {
	score := &models.SongScore{}
	for _, v := range locked {
		score.Histogram[v.Rating-1]++
	}

	// Insurance removes the single lowest locked vote, boost and all, as
	// long as at least one vote remains.
	counted := locked
	if song.Insured && len(locked) >= 2 {
		lowest := 0
		for i, v := range locked {
			if v.Rating < locked[lowest].Rating {
				lowest = i
			}
		}
		counted = make([]*models.Vote, 0, len(locked)-1)
		counted = append(counted, locked[:lowest]...)
		counted = append(counted, locked[lowest+1:]...)
	}

	var sum, weight float64
	for _, v := range counted {
		w := 1.0
		if v.Boosted {
			w = 2.0
		}
		sum += float64(v.Rating) * w
		weight += w
	}
	if weight > 0 {
		score.RawAverage = sum / weight
	}

	multiplier := roundWeightMultiplier(song.RoundNumber, totalRounds)
	score.WeightedScore = score.RawAverage * multiplier
	if len(counted) > 0 {
		score.ConfidenceModifier = confidenceModifier(song.Confidence, score.RawAverage)
	}
	score.FinalScore = score.WeightedScore + score.ConfidenceModifier
	return score
}

// songInParty loads a song and verifies it belongs to the party.
func (e *Engine) songInParty(ctx context.Context, partyID, songID uuid.UUID) (*models.Song, error) {
	song, err := e.store.GetSong(ctx, songID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSongNotFound
	}
	if err != nil {
		return nil, err
	}
	if song.PartyID != partyID {
		return nil, ErrSongNotFound
	}
	return song, nil
}

// scoredTotals sums the final scores of each player's scored songs and
// counts their submissions. Caller holds the party lock.
func (e *Engine) scoredTotals(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]float64, map[uuid.UUID]int, error) {
	songs, err := e.store.ListSongs(ctx, partyID)
	if err != nil {
		return nil, nil, err
	}
	totals := make(map[uuid.UUID]float64)
	counts := make(map[uuid.UUID]int)
	for _, s := range songs {
		counts[s.PlayerID]++
		if s.Score != nil {
			totals[s.PlayerID] += s.Score.FinalScore
		}
	}
	return totals, counts, nil
}

// BonusWinners selects up to bonusCategoryCount category winners. Every tie
// breaks toward the lowest queue position, so results are stable against the
// frozen queue.
func (e *Engine) BonusWinners(ctx context.Context, partyID uuid.UUID) ([]models.BonusAward, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	songs, err := e.store.ListSongs(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return bonusWinners(p, songs), nil
}

func bonusWinners(p *models.Party, songs []*models.Song) []models.BonusAward {
	if p.Settings.BonusCategoryCount <= 0 {
		return []models.BonusAward{}
	}

	var scored []*models.Song
	for _, s := range songs {
		if s.Score != nil {
			scored = append(scored, s)
		}
	}
	// Evaluate ties deterministically by walking the frozen queue order.
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].QueuePosition < scored[j].QueuePosition
	})

	selectors := []struct {
		category string
		pick     func([]*models.Song) *models.Song
	}{
		{BonusCrowdFavorite, pickCrowdFavorite},
		{BonusMostPolarizing, pickMostPolarizing},
		{BonusDarkHorse, pickDarkHorse},
	}
	count := p.Settings.BonusCategoryCount
	if count > len(selectors) {
		count = len(selectors)
	}

	awards := []models.BonusAward{}
	for _, sel := range selectors[:count] {
		if winner := sel.pick(scored); winner != nil {
			awards = append(awards, models.BonusAward{
				Category: sel.category,
				SongID:   winner.ID,
				PlayerID: winner.PlayerID,
				Points:   bonusPoints,
			})
		}
	}
	return awards
}

// pickCrowdFavorite: highest raw average.
func pickCrowdFavorite(scored []*models.Song) *models.Song {
	var best *models.Song
	for _, s := range scored {
		if best == nil || s.Score.RawAverage > best.Score.RawAverage {
			best = s
		}
	}
	return best
}

// pickMostPolarizing: widest rating spread, then higher variance.
func pickMostPolarizing(scored []*models.Song) *models.Song {
	var best *models.Song
	var bestSpread int
	var bestVariance float64
	for _, s := range scored {
		spread := histogramSpread(s.Score.Histogram)
		variance := histogramVariance(s.Score.Histogram)
		if best == nil || spread > bestSpread || (spread == bestSpread && variance > bestVariance) {
			best = s
			bestSpread = spread
			bestVariance = variance
		}
	}
	if best != nil && bestSpread == 0 {
		// Nothing polarized anyone; no award.
		return nil
	}
	return best
}

// pickDarkHorse: lowest confidence among songs that still scored well.
func pickDarkHorse(scored []*models.Song) *models.Song {
	var best *models.Song
	for _, s := range scored {
		if s.Score.RawAverage < darkHorseThreshold {
			continue
		}
		if best == nil || s.Confidence < best.Confidence {
			best = s
		}
	}
	return best
}

func histogramSpread(h [10]int) int {
	lo, hi := -1, -1
	for i, count := range h {
		if count == 0 {
			continue
		}
		if lo == -1 {
			lo = i
		}
		hi = i
	}
	if lo == -1 {
		return 0
	}
	return hi - lo
}

func histogramVariance(h [10]int) float64 {
	n := 0
	sum := 0
	for i, count := range h {
		n += count
		sum += (i + 1) * count
	}
	if n == 0 {
		return 0
	}
	mean := float64(sum) / float64(n)
	var acc float64
	for i, count := range h {
		d := float64(i+1) - mean
		acc += float64(count) * d * d
	}
	return acc / float64(n)
}

// FinalStandings ranks players by the sum of their songs' final scores plus
// bonus points. Ranks are dense: equal totals share a rank, and the next
// distinct total takes 1 + the count of players strictly above it. Each
// standing carries the player's highest-scoring song (earliest submission
// wins ties) for end-of-game playback.
func (e *Engine) FinalStandings(ctx context.Context, partyID uuid.UUID) ([]models.PlayerStanding, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	players, err := e.store.ListPlayers(ctx, partyID)
	if err != nil {
		return nil, err
	}
	songs, err := e.store.ListSongs(ctx, partyID)
	if err != nil {
		return nil, err
	}

	totals := make(map[uuid.UUID]float64)
	counts := make(map[uuid.UUID]int)
	topSongs := make(map[uuid.UUID]*models.Song)
	for _, s := range songs {
		counts[s.PlayerID]++
		if s.Score == nil {
			continue
		}
		totals[s.PlayerID] += s.Score.FinalScore
		// Songs arrive in creation order, so a strict comparison keeps the
		// earliest song on ties.
		if top := topSongs[s.PlayerID]; top == nil || s.Score.FinalScore > top.Score.FinalScore {
			topSongs[s.PlayerID] = s
		}
	}

	bonuses := make(map[uuid.UUID]int)
	for _, award := range bonusWinners(p, songs) {
		bonuses[award.PlayerID] += award.Points
		totals[award.PlayerID] += float64(award.Points)
	}

	standings := make([]models.PlayerStanding, 0, len(players))
	for _, pl := range players {
		standings = append(standings, models.PlayerStanding{
			PlayerID:    pl.ID,
			DisplayName: pl.DisplayName,
			Total:       totals[pl.ID],
			BonusPoints: bonuses[pl.ID],
			SongCount:   counts[pl.ID],
			TopSong:     topSongs[pl.ID],
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Total > standings[j].Total
	})
	applyDenseRanks(standings)
	return standings, nil
}

// applyDenseRanks assigns dense ranks to standings already sorted by
// descending total: ties share a rank, the next distinct total takes the
// next integer.
func applyDenseRanks(standings []models.PlayerStanding) {
	rank := 0
	var prev float64
	for i := range standings {
		if i == 0 || standings[i].Total != prev {
			rank++
			prev = standings[i].Total
		}
		standings[i].Rank = rank
	}
}
