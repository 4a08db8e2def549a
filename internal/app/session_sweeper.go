package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// SessionEvicter removes finalized sessions past a retention window.
type SessionEvicter interface {
	EvictFinalized(olderThan time.Duration) int
}

// SessionSweeper periodically evicts finalized interview sessions from the
// in-memory registry so the process does not accumulate them forever.
type SessionSweeper struct {
	sessions  SessionEvicter
	retention time.Duration
	interval  time.Duration
}

func NewSessionSweeper(sessions SessionEvicter, retention, interval time.Duration) *SessionSweeper {
	if sessions == nil {
		return nil
	}
	if retention <= 0 {
		retention = time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeper{
		sessions:  sessions,
		retention: retention,
		interval:  interval,
	}
}

func (s *SessionSweeper) Run(ctx context.Context) {
	if s == nil || s.sessions == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *SessionSweeper) sweepOnce(ctx context.Context) {
	_, span := otel.Tracer("sessions.sweeper").Start(ctx, "SessionSweeper.sweepOnce")
	defer span.End()

	evicted := s.sessions.EvictFinalized(s.retention)
	span.SetAttributes(
		attribute.Int("sessions.evicted", evicted),
		attribute.Float64("sessions.retention_seconds", s.retention.Seconds()),
	)
	if evicted > 0 {
		slog.Info("finalized sessions evicted", slog.Int("count", evicted))
	}
}
