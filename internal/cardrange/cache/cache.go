// Package cache keeps the admin range dashboard cheap. Stats are a display
// aid with relaxed consistency: a slightly stale snapshot is acceptable, so
// they live in Redis under a short TTL while allocation always recomputes
// availability inside its transaction.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tessera/internal/cardrange/models"
)

const (
	statsKey = "cardrange:stats"

	// DefaultTTL bounds how stale the dashboard can get.
	DefaultTTL = 5 * time.Minute
)

// Stats caches the ListWithStats result in Redis.
type Stats struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStats(client *redis.Client, ttl time.Duration) *Stats {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Stats{client: client, ttl: ttl}
}

// Get returns the cached snapshot, or ok=false on miss or any Redis error.
// Cache failures degrade to a recompute, never to a request failure.
func (c *Stats) Get(ctx context.Context) ([]*models.Stats, bool) {
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var stats []*models.Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return stats, true
}

// Set stores the snapshot under the TTL.
func (c *Stats) Set(ctx context.Context, stats []*models.Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey, raw, c.ttl).Err()
}

// Invalidate drops the snapshot after any mutation of ranges or assignments.
func (c *Stats) Invalidate(ctx context.Context) error {
	err := c.client.Del(ctx, statsKey).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
