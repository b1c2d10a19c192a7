// Package party implements the game-session engine: the party lifecycle
// state machine, the round organizer, the scoring engine, and the anonymity
// and reveal subsystem. All state lives in the entity store; the engine only
// keeps per-party locks and the finale score snapshot in process.
package party

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mixdown-games/encore/internal/models"
	"github.com/mixdown-games/encore/internal/store"
)

// MaxPlayers caps the party size; every identity pool is larger than this.
const MaxPlayers = 12

// joinCodeAlphabet avoids ambiguous characters (I, O, 0, 1).
const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// JoinCodeLength is the length of a party join code.
const JoinCodeLength = 4

// ScoreEvent is handed to the external achievement evaluator after every
// score-affecting event. The evaluator re-derives unlock conditions from the
// store; this record only tells it whose data changed.
type ScoreEvent struct {
	PartyID   uuid.UUID `json:"party_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	EventType string    `json:"event_type"`
	Timestamp int64     `json:"timestamp"`
}

// EventPublisher delivers score events to the achievement pipeline.
type EventPublisher interface {
	PublishScoreEvent(ctx context.Context, ev ScoreEvent) error
}

// SnapshotStore persists the finale leaderboard baseline outside the process.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, partyID uuid.UUID, scores map[uuid.UUID]float64) error
	LoadSnapshot(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]float64, error)
}

// Engine runs every party. It is safe for concurrent use: operations on
// different parties never block one another, and writes within a party are
// serialized by the party's session lock.
type Engine struct {
	store     store.Store
	sessions  *SessionStore
	events    EventPublisher
	snapshots SnapshotStore
	log       *logrus.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithEventPublisher wires the achievement score-event feed.
func WithEventPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithSnapshotStore wires durable finale snapshots.
func WithSnapshotStore(s SnapshotStore) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithRand injects a seeded random source so tests can pin permutations.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithLogger injects the service logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine builds an engine on top of the given store.
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		sessions: NewSessionStore(),
		log:      logrus.New(),
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// shuffle runs swap-based shuffling under the engine's rand lock; *rand.Rand
// is not safe for concurrent use across parties.
func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	e.rand.Shuffle(n, swap)
}

func (e *Engine) randIntn(n int) int {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return e.rand.Intn(n)
}

// publish hands a score event to the achievement feed, if one is wired.
// Delivery failures are logged, never surfaced: the game must not stall on
// the achievement pipeline.
func (e *Engine) publish(ctx context.Context, partyID, playerID uuid.UUID, eventType string) {
	if e.events == nil {
		return
	}
	ev := ScoreEvent{
		PartyID:   partyID,
		PlayerID:  playerID,
		EventType: eventType,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := e.events.PublishScoreEvent(ctx, ev); err != nil {
		e.log.WithError(err).WithField("party_id", partyID).Warn("failed to publish score event")
	}
}

// party loads a party, mapping the store's not-found to the typed error.
func (e *Engine) party(ctx context.Context, partyID uuid.UUID) (*models.Party, error) {
	p, err := e.store.GetParty(ctx, partyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPartyNotFound
	}
	return p, err
}

// member loads a player and checks party membership.
func (e *Engine) member(ctx context.Context, partyID, playerID uuid.UUID) (*models.Player, error) {
	pl, err := e.store.GetPlayer(ctx, playerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	if pl.PartyID != partyID {
		return nil, ErrPlayerNotInParty
	}
	return pl, nil
}

func validateSettings(s models.PartySettings) error {
	if s.SongsPerPlayer < 1 || s.SongsPerPlayer > 3 {
		return ErrInvalidSettings
	}
	if s.BonusCategoryCount < 0 || s.BonusCategoryCount > 3 {
		return ErrInvalidSettings
	}
	return nil
}

func (e *Engine) newJoinCode() string {
	code := make([]byte, JoinCodeLength)
	for i := range code {
		code[i] = joinCodeAlphabet[e.randIntn(len(joinCodeAlphabet))]
	}
	return string(code)
}

// CreateParty creates a party in the lobby phase along with its host player.
// Settings are immutable for the life of the game.
func (e *Engine) CreateParty(ctx context.Context, hostName string, settings models.PartySettings) (*models.Party, *models.Player, error) {
	if err := validateSettings(settings); err != nil {
		return nil, nil, err
	}
	if settings.PlayDurationSec <= 0 {
		settings.PlayDurationSec = 30
	}

	now := time.Now()
	host := &models.Player{
		ID:          uuid.New(),
		DisplayName: hostName,
		IsHost:      true,
		Connected:   true,
		CreatedAt:   now,
	}
	p := &models.Party{
		ID:        uuid.New(),
		Status:    models.StatusLobby,
		HostID:    host.ID,
		Settings:  settings,
		CreatedAt: now,
	}
	host.PartyID = p.ID

	// Join codes collide rarely; retry a few times before giving up.
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		p.JoinCode = e.newJoinCode()
		err = e.store.CreateParty(ctx, p)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if err := e.store.CreatePlayer(ctx, host); err != nil {
		return nil, nil, err
	}

	e.log.WithFields(logrus.Fields{
		"party_id":  p.ID,
		"join_code": p.JoinCode,
	}).Info("party created")
	return p, host, nil
}

// JoinParty adds a player to a lobby-phase party by join code.
func (e *Engine) JoinParty(ctx context.Context, joinCode, displayName string) (*models.Party, *models.Player, error) {
	p, err := e.store.GetPartyByCode(ctx, joinCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrPartyNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	sess := e.sessions.get(p.ID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// Re-read under the lock; the party may have started since the code lookup.
	p, err = e.party(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	if p.Status != models.StatusLobby {
		return nil, nil, ErrInvalidState
	}
	players, err := e.store.ListPlayers(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(players) >= MaxPlayers {
		return nil, nil, ErrPartyFull
	}

	pl := &models.Player{
		ID:          uuid.New(),
		PartyID:     p.ID,
		DisplayName: displayName,
		Connected:   true,
		CreatedAt:   time.Now(),
	}
	if err := e.store.CreatePlayer(ctx, pl); err != nil {
		return nil, nil, err
	}
	return p, pl, nil
}

// StartParty moves a lobby-phase party into the submission phase. Only the
// host may start, and re-invoking on a started party fails with
// ErrInvalidState rather than silently succeeding.
func (e *Engine) StartParty(ctx context.Context, partyID, requesterID uuid.UUID) (*models.Party, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.HostID != requesterID {
		return nil, ErrNotHost
	}
	if p.Status != models.StatusLobby {
		return nil, ErrInvalidState
	}

	now := time.Now()
	if err := e.store.SetPartyStatus(ctx, partyID, models.StatusSubmitting, &now, nil); err != nil {
		return nil, err
	}
	p.Status = models.StatusSubmitting
	p.StartedAt = &now
	e.log.WithField("party_id", partyID).Info("party started, accepting submissions")
	return p, nil
}

// AdvanceToPlaying freezes the queue and begins the listening phase. Every
// player must have submitted exactly songsPerPlayer songs. On success the
// rounds are organized, identities are assigned, and the queue order is
// final; the transition is guarded so its side effects never re-run.
func (e *Engine) AdvanceToPlaying(ctx context.Context, partyID uuid.UUID) (*models.Party, error) {
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

	players, err := e.store.ListPlayers(ctx, partyID)
	if err != nil {
		return nil, err
	}
	counts, err := e.store.CountSongsByPlayer(ctx, partyID)
	if err != nil {
		return nil, err
	}
	for _, pl := range players {
		if counts[pl.ID] != p.Settings.SongsPerPlayer {
			return nil, ErrSubmissionsIncomplete
		}
	}

	if _, err := e.organizeRounds(ctx, p); err != nil {
		return nil, err
	}
	if _, err := e.assignIdentitiesLocked(ctx, p, players); err != nil {
		return nil, err
	}

	if err := e.store.SetPartyStatus(ctx, partyID, models.StatusPlaying, nil, nil); err != nil {
		return nil, err
	}
	p.Status = models.StatusPlaying
	e.log.WithField("party_id", partyID).Info("queue frozen, party is playing")
	return p, nil
}

// AdvanceToFinale freezes the leaderboard snapshot used for movement
// comparisons and enters the finale.
func (e *Engine) AdvanceToFinale(ctx context.Context, partyID uuid.UUID) (*models.Party, error) {
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

	totals, _, err := e.scoredTotals(ctx, partyID)
	if err != nil {
		return nil, err
	}
	sess.frozen = totals
	if e.snapshots != nil {
		if err := e.snapshots.SaveSnapshot(ctx, partyID, totals); err != nil {
			e.log.WithError(err).WithField("party_id", partyID).Warn("failed to persist finale snapshot")
		}
	}

	if err := e.store.SetPartyStatus(ctx, partyID, models.StatusFinale, nil, nil); err != nil {
		return nil, err
	}
	p.Status = models.StatusFinale
	e.log.WithField("party_id", partyID).Info("leaderboard frozen, entering finale")
	return p, nil
}

// AdvanceToComplete stamps the completion time and ends the party. Terminal;
// the party's session is released.
func (e *Engine) AdvanceToComplete(ctx context.Context, partyID uuid.UUID) (*models.Party, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	p, err := e.party(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusFinale {
		return nil, ErrInvalidState
	}

	now := time.Now()
	if err := e.store.SetPartyStatus(ctx, partyID, models.StatusComplete, nil, &now); err != nil {
		return nil, err
	}
	p.Status = models.StatusComplete
	p.CompletedAt = &now
	e.sessions.remove(partyID)
	e.log.WithField("party_id", partyID).Info("party complete")
	return p, nil
}

// FrozenScores returns the movement baseline captured when the party entered
// the finale, or nil if the party never reached it.
func (e *Engine) FrozenScores(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]float64, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	frozen := sess.frozen
	sess.mu.RUnlock()
	if frozen != nil {
		return frozen, nil
	}
	if e.snapshots != nil {
		return e.snapshots.LoadSnapshot(ctx, partyID)
	}
	return nil, nil
}

// Party returns the party by ID.
func (e *Engine) Party(ctx context.Context, partyID uuid.UUID) (*models.Party, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return e.party(ctx, partyID)
}

// SetPlayerConnected updates a player's connection status.
func (e *Engine) SetPlayerConnected(ctx context.Context, partyID, playerID uuid.UUID, connected bool) error {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, err := e.member(ctx, partyID, playerID); err != nil {
		return err
	}
	return e.store.SetPlayerConnected(ctx, playerID, connected)
}

// GrantPowerPoints adjusts a player's power-up currency. Called on behalf of
// the external power-up system; the engine enforces membership and keeps the
// balance non-negative.
func (e *Engine) GrantPowerPoints(ctx context.Context, partyID, playerID uuid.UUID, delta int) (*models.Player, error) {
	sess := e.sessions.get(partyID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	pl, err := e.member(ctx, partyID, playerID)
	if err != nil {
		return nil, err
	}
	if pl.PowerPoints+delta < 0 {
		return nil, ErrInsufficientPoints
	}
	if err := e.store.AddPowerPoints(ctx, playerID, delta); err != nil {
		return nil, err
	}
	pl.PowerPoints += delta
	return pl, nil
}

// Players returns the party's players in join order.
func (e *Engine) Players(ctx context.Context, partyID uuid.UUID) ([]*models.Player, error) {
	sess := e.sessions.get(partyID)
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	if _, err := e.party(ctx, partyID); err != nil {
		return nil, err
	}
	return e.store.ListPlayers(ctx, partyID)
}
