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

// SongSubmission is the player-facing submission payload.
type SongSubmission struct {
	Track      models.Track `json:"track"`
	Confidence int          `json:"confidence"`
}

// roundWeightMultiplier implements the escalating weight schedule. Later
// rounds are worth more, rewarding players who save strong material.
func roundWeightMultiplier(roundNumber, totalRounds int) float64 {
	switch totalRounds {
	case 1:
		return 1.5
	case 2:
		if roundNumber == 1 {
			return 1.0
		}
		return 2.0
	case 3:
		switch roundNumber {
		case 1:
			return 1.0
		case 2:
			return 1.5
		default:
			return 2.0
		}
	default:
		return 1.0
	}
}

// SubmitSong validates and stores one submission during the submission
// phase. The round number is the submitter's Nth song and is never
// renumbered. All validation happens before any write.
func (e *Engine) SubmitSong(ctx context.Context, partyID, playerID uuid.UUID, sub SongSubmission) (*models.Song, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusSubmitting {
		return nil, ErrInvalidState
	}
	if _, err := e.member(ctx, partyID, playerID); err != nil {
		return nil, err
	}
	if sub.Confidence < 1 || sub.Confidence > 5 {
		return nil, ErrInvalidConfidence
	}

	count, err := e.store.CountSongs(ctx, partyID, playerID)
	if err != nil {
		return nil, err
	}
	if count >= p.Settings.SongsPerPlayer {
		return nil, ErrSongLimitReached
	}

	song := &models.Song{
		ID:          uuid.New(),
		PartyID:     partyID,
		PlayerID:    playerID,
		Track:       sub.Track,
		Confidence:  sub.Confidence,
		RoundNumber: count + 1,
		CreatedAt:   time.Now(),
	}
	// The store re-checks the cap atomically; the count above decides the
	// round number, the capped insert decides admission.
	if err := e.store.InsertSongCapped(ctx, song, p.Settings.SongsPerPlayer); err != nil {
		if errors.Is(err, store.ErrLimitExceeded) {
			return nil, ErrSongLimitReached
		}
		return nil, err
	}

	e.publish(ctx, partyID, playerID, "song_submitted")
	e.log.WithFields(logrus.Fields{
		"party_id": partyID,
		"round":    song.RoundNumber,
	}).Debug("song submitted")
	return song, nil
}

// organizeRounds groups the party's songs by round number, shuffles each
// round uniformly to hide submission order, and assigns one global queue
// position sequence across rounds in ascending round order. Caller holds the
// party's write lock; this runs exactly once, at the playing transition.
func (e *Engine) organizeRounds(ctx context.Context, p *models.Party) ([]models.Round, error) {
	songs, err := e.store.ListSongs(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	byRound := make(map[int][]*models.Song)
	totalRounds := 0
	for _, s := range songs {
		byRound[s.RoundNumber] = append(byRound[s.RoundNumber], s)
		if s.RoundNumber > totalRounds {
			totalRounds = s.RoundNumber
		}
	}

	positions := make(map[uuid.UUID]int, len(songs))
	rounds := make([]models.Round, 0, totalRounds)
	pos := 1
	for num := 1; num <= totalRounds; num++ {
		group := byRound[num]
		e.shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})
		for _, s := range group {
			s.QueuePosition = pos
			positions[s.ID] = pos
			pos++
		}
		rounds = append(rounds, models.Round{
			Number:           num,
			Songs:            group,
			WeightMultiplier: roundWeightMultiplier(num, totalRounds),
		})
	}

	if err := e.store.SetQueuePositions(ctx, p.ID, positions); err != nil {
		return nil, err
	}
	return rounds, nil
}

// Rounds derives the current round structure from stored songs and queue
// positions. Available once the party has entered the playing phase.
func (e *Engine) Rounds(ctx context.Context, partyID uuid.UUID) ([]models.Round, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusLobby || p.Status == models.StatusSubmitting {
		return nil, ErrInvalidState
	}

	songs, err := e.store.ListSongs(ctx, partyID)
	if err != nil {
		return nil, err
	}
	byRound := make(map[int][]*models.Song)
	totalRounds := 0
	for _, s := range songs {
		byRound[s.RoundNumber] = append(byRound[s.RoundNumber], s)
		if s.RoundNumber > totalRounds {
			totalRounds = s.RoundNumber
		}
	}

	rounds := make([]models.Round, 0, totalRounds)
	for num := 1; num <= totalRounds; num++ {
		group := byRound[num]
		sort.Slice(group, func(i, j int) bool {
			return group[i].QueuePosition < group[j].QueuePosition
		})
		complete := len(group) > 0
		for _, s := range group {
			if s.Score == nil {
				complete = false
				break
			}
		}
		rounds = append(rounds, models.Round{
			Number:           num,
			Songs:            group,
			WeightMultiplier: roundWeightMultiplier(num, totalRounds),
			Complete:         complete,
		})
	}
	return rounds, nil
}

// NextSong is the playback cursor: the lowest-queue-position song not yet
// scored, or nil when every song has played.
func (e *Engine) NextSong(ctx context.Context, partyID uuid.UUID) (*models.Song, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if _, err := e.party(ctx, partyID); err != nil {
		return nil, err
	}
	songs, err := e.store.ListSongs(ctx, partyID)
	if err != nil {
		return nil, err
	}

	var next *models.Song
	for _, s := range songs {
		if s.Score != nil || s.QueuePosition == 0 {
			continue
		}
		if next == nil || s.QueuePosition < next.QueuePosition {
			next = s
		}
	}
	return next, nil
}
