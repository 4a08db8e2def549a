package app

import (
	"context"
	"fmt"
)

// Pinger is the minimal interface for a dependency capable of Ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildReadinessChecks returns the db and redis readiness checks.
func BuildReadinessChecks(pool Pinger, cache Pinger) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if cache == nil {
			return fmt.Errorf("redis not configured")
		}
		return cache.Ping(ctx)
	}
	return dbCheck, redisCheck
}
