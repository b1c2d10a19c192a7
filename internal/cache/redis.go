// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mixdown-games/encore/internal/party"
)

// DefaultQueueName is the Redis list the achievement evaluator drains.
var DefaultQueueName = "encore_score_events"

// snapshotTTL bounds how long a finale baseline survives after the party
// would normally have completed.
const snapshotTTL = 24 * time.Hour

// Cache wraps the Redis client used for the score-event feed and finale
// leaderboard snapshots.
type Cache struct {
	rdb *redis.Client
}

// Connect initializes a Cache from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*Cache, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Cache{rdb: rdb}, nil
}

// Close releases the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// PublishScoreEvent serializes the event to JSON and pushes it onto the
// score-event queue. This only costs a quick network send; the evaluator
// consumes asynchronously.
func (c *Cache) PublishScoreEvent(ctx context.Context, ev party.ScoreEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal ScoreEvent: %w", err)
	}
	queueName := getEnv("SCORE_EVENT_QUEUE_NAME", DefaultQueueName)
	if err := c.rdb.RPush(ctx, queueName, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", queueName, err)
	}
	return nil
}

func snapshotKey(partyID uuid.UUID) string {
	return "encore:snapshot:" + partyID.String()
}

// SaveSnapshot stores the finale movement baseline for a party.
func (c *Cache) SaveSnapshot(ctx context.Context, partyID uuid.UUID, scores map[uuid.UUID]float64) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(partyID), data, snapshotTTL).Err()
}

// LoadSnapshot fetches a previously saved baseline, or nil when none exists.
func (c *Cache) LoadSnapshot(ctx context.Context, partyID uuid.UUID) (map[uuid.UUID]float64, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(partyID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var scores map[uuid.UUID]float64
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return scores, nil
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
