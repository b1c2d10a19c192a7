// cmd/historian/main.go is an asynchronous worker that pops score events from
// the Redis queue and persists them to PostgreSQL for the achievement
// evaluator, and sweeps parties that went quiet without finishing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/mixdown-games/encore/internal/party"
)

// HistorianService encapsulates the Redis + DB logic for capturing score
// events and marking parties abandoned after a period of inactivity.
type HistorianService struct {
	redisClient  *redis.Client
	pool         *pgxpool.Pool
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[uuid.UUID]time.Time per party

	batchMu  sync.Mutex
	batch    []party.ScoreEvent
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment variables or defaults.
func NewHistorianService() (*HistorianService, error) {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("PARTY_INACTIVITY_TIMEOUT_SEC", 3600)

	rdb := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		DB:   getEnvInt("REDIS_DB", 0),
	})

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		pool:        pool,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]party.ScoreEvent, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}, nil
}

// Run starts the two main loops:
//  1. A loop that reads from the Redis queue, accumulates events in a batch, and flushes them to the DB.
//  2. A periodic sweep that marks long-inactive parties as abandoned.
func (hs *HistorianService) Run() {
	if err := hs.migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	go hs.readRedisLoop()
	go hs.inactivityLoop()

	log.Println("encore-historian service started.")
	<-hs.ctx.Done()
	log.Println("encore-historian shutting down.")
}

func (hs *HistorianService) migrate() error {
	_, err := hs.pool.Exec(hs.ctx, `
		CREATE TABLE IF NOT EXISTS score_events (
			id BIGSERIAL PRIMARY KEY,
			party_id UUID NOT NULL,
			player_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS score_events_player_idx ON score_events (player_id, occurred_at);
	`)
	return err
}

// readRedisLoop continuously uses BLPop to retrieve events from the Redis queue.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("SCORE_EVENT_QUEUE_NAME", "encore_score_events")

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				if hs.ctx.Err() != nil {
					return
				}
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var ev party.ScoreEvent
			if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
				log.Printf("invalid score event: %v\n", err)
				continue
			}

			hs.lastActivity.Store(ev.PartyID, time.Now())
			hs.appendToBatch(ev)
		}
	}
}

// appendToBatch adds an event to the in-memory batch and flushes if the threshold is reached.
func (hs *HistorianService) appendToBatch(ev party.ScoreEvent) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, ev)
	if len(hs.batch) >= hs.batchSize {
		hs.flushLocked()
	}
}

func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushLocked()
}

// flushLocked writes the current batch in a single transaction. Caller holds batchMu.
func (hs *HistorianService) flushLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]party.ScoreEvent, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := pgx.BeginTxFunc(ctx, hs.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, ev := range batchCopy {
			_, err := tx.Exec(ctx, `
				INSERT INTO score_events (party_id, player_id, event_type, occurred_at)
				VALUES ($1, $2, $3, $4)
			`, ev.PartyID, ev.PlayerID, ev.EventType, time.UnixMilli(ev.Timestamp))
			if err != nil {
				return fmt.Errorf("insert score event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flush: %v\n", err)
	} else {
		log.Printf("Flushed %d score events to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically checks whether a party has gone quiet beyond the
// configured threshold, and marks such parties abandoned.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				partyID, ok1 := key.(uuid.UUID)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markPartyAbandoned(partyID)
					hs.lastActivity.Delete(partyID)
				}
				return true
			})
		}
	}
}

// markPartyAbandoned closes out a party that stopped producing events before
// reaching the finale flow.
func (hs *HistorianService) markPartyAbandoned(partyID uuid.UUID) {
	ctx := context.Background()
	_, err := hs.pool.Exec(ctx, `
		UPDATE parties
		SET status = 'complete', completed_at = NOW()
		WHERE id = $1 AND status NOT IN ('complete')
	`, partyID)
	if err != nil {
		log.Printf("failed to mark party %v abandoned: %v", partyID, err)
	} else {
		log.Printf("Marked party %v complete due to inactivity.", partyID)
	}
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
	hs.flushBatchToDB()
	hs.pool.Close()
}

func main() {
	hs, err := NewHistorianService()
	if err != nil {
		log.Fatalf("historian init: %v", err)
	}
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer value from an environment variable or returns a default value.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
