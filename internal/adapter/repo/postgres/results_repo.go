package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-pipeline/internal/domain"
)

// PgxPool is a minimal subset of pgxpool used by the repo for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ResultRepo persists finalized interview bundles. It implements
// domain.ResultSink.
type ResultRepo struct{ Pool PgxPool }

// NewResultRepo constructs a ResultRepo with the given pool.
func NewResultRepo(p PgxPool) *ResultRepo { return &ResultRepo{Pool: p} }

// Migrate creates the results table if it does not exist.
func (r *ResultRepo) Migrate(ctx domain.Context) error {
	q := `CREATE TABLE IF NOT EXISTS interview_results (
	session_id    TEXT PRIMARY KEY,
	role          TEXT NOT NULL,
	overall_score INT NOT NULL,
	verdict       TEXT NOT NULL,
	degraded      BOOLEAN NOT NULL,
	calls_used    INT NOT NULL,
	bundle        JSONB NOT NULL,
	finalized_at  TIMESTAMPTZ NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
)`
	if _, err := r.Pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("op=result.migrate: %w", err)
	}
	return nil
}

// Store inserts the finalized bundle. Bundles are immutable, so a second
// store for the same session is a conflict.
func (r *ResultRepo) Store(ctx domain.Context, b domain.InterviewBundle) error {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.Store")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "interview_results"),
	)

	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("op=result.store encode: %w", err)
	}

	q := `INSERT INTO interview_results (session_id, role, overall_score, verdict, degraded, calls_used, bundle, finalized_at, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.Pool.Exec(ctx, q,
		b.SessionID, b.Role, b.Final.OverallScore, string(b.Final.Verdict),
		b.Degraded, b.CallsUsed, raw, b.FinalizedAt, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("op=result.store: %w: session %s", domain.ErrConflict, b.SessionID)
		}
		return fmt.Errorf("op=result.store: %w", err)
	}
	return nil
}

// GetBySessionID loads a stored bundle.
func (r *ResultRepo) GetBySessionID(ctx domain.Context, sessionID string) (domain.InterviewBundle, error) {
	tracer := otel.Tracer("repo.results")
	ctx, span := tracer.Start(ctx, "results.GetBySessionID")
	defer span.End()

	q := `SELECT bundle FROM interview_results WHERE session_id=$1`
	var raw []byte
	if err := r.Pool.QueryRow(ctx, q, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InterviewBundle{}, fmt.Errorf("op=result.get: %w: session %s", domain.ErrNotFound, sessionID)
		}
		return domain.InterviewBundle{}, fmt.Errorf("op=result.get: %w", err)
	}
	var b domain.InterviewBundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return domain.InterviewBundle{}, fmt.Errorf("op=result.get decode: %w", err)
	}
	return b, nil
}
