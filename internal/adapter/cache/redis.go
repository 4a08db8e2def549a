// Package cache stores finalized interview bundles in Redis so repeated
// result fetches do not touch the database.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// BundleCache is a read-through cache for finalized bundles. Bundles are
// immutable after finalize, so entries are only ever written once and expire
// by TTL.
type BundleCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New constructs a BundleCache over an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration) *BundleCache {
	return &BundleCache{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string { return "interview:bundle:" + sessionID }

// Get returns the cached bundle or domain.ErrNotFound on a miss. Transport
// errors are returned as-is so callers can fall back to the database.
func (c *BundleCache) Get(ctx domain.Context, sessionID string) (domain.InterviewBundle, error) {
	raw, err := c.rdb.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.InterviewBundle{}, fmt.Errorf("%w: bundle %s", domain.ErrNotFound, sessionID)
	}
	if err != nil {
		return domain.InterviewBundle{}, fmt.Errorf("cache get: %w", err)
	}
	var b domain.InterviewBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.InterviewBundle{}, fmt.Errorf("cache decode: %w", err)
	}
	return b, nil
}

// Set stores the bundle under its session ID with the configured TTL.
func (c *BundleCache) Set(ctx domain.Context, b domain.InterviewBundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, key(b.SessionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Ping verifies connectivity for readiness checks.
func (c *BundleCache) Ping(ctx domain.Context) error {
	return c.rdb.Ping(ctx).Err()
}
