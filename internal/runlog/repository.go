package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// Repository persists run summaries to PostgreSQL. It backs the run-history
// API; the pipeline treats it as an optional sink and keeps running when it
// is absent or failing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a run-history repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the run_summaries table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_summaries (
			run_id       TEXT PRIMARY KEY,
			started_at   TIMESTAMPTZ NOT NULL,
			duration_ms  BIGINT NOT NULL,
			ran_to_stage TEXT NOT NULL,
			accepted     BOOLEAN,
			metric       DOUBLE PRECISION,
			version      TEXT,
			error_kind   TEXT,
			error_detail TEXT,
			artifacts    JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_run_summaries_started_at
			ON run_summaries (started_at DESC);
	`

	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate run_summaries: %w", err)
	}
	return nil
}

// Save persists one finished run summary.
func (r *Repository) Save(ctx context.Context, summary contracts.RunSummary) error {
	artifactsJSON, err := json.Marshal(summary.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to marshal artifacts: %w", err)
	}

	query := `
		INSERT INTO run_summaries (
			run_id, started_at, duration_ms, ran_to_stage,
			accepted, metric, version, error_kind, error_detail, artifacts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id) DO UPDATE SET
			duration_ms  = EXCLUDED.duration_ms,
			ran_to_stage = EXCLUDED.ran_to_stage,
			accepted     = EXCLUDED.accepted,
			metric       = EXCLUDED.metric,
			version      = EXCLUDED.version,
			error_kind   = EXCLUDED.error_kind,
			error_detail = EXCLUDED.error_detail,
			artifacts    = EXCLUDED.artifacts
	`

	var errorKind *string
	if summary.ErrorKind != "" {
		s := string(summary.ErrorKind)
		errorKind = &s
	}
	var errorDetail *string
	if summary.ErrorDetail != "" {
		errorDetail = &summary.ErrorDetail
	}
	var version *string
	if summary.Version != "" {
		version = &summary.Version
	}

	_, err = r.pool.Exec(ctx, query,
		summary.RunID, summary.StartedAt, summary.Duration.Milliseconds(),
		string(summary.RanToStage), summary.Accepted, summary.Metric,
		version, errorKind, errorDetail, artifactsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}

	return nil
}

// ListRecent returns the most recent run summaries, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]contracts.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, started_at, duration_ms, ran_to_stage,
		       accepted, metric, version, error_kind, error_detail, artifacts
		FROM run_summaries
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]contracts.RunSummary, 0, limit)
	for rows.Next() {
		var (
			s             contracts.RunSummary
			durationMs    int64
			stage         string
			version       *string
			errorKind     *string
			errorDetail   *string
			artifactsJSON []byte
		)

		if err := rows.Scan(
			&s.RunID, &s.StartedAt, &durationMs, &stage,
			&s.Accepted, &s.Metric, &version, &errorKind, &errorDetail, &artifactsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}

		s.Duration = time.Duration(durationMs) * time.Millisecond
		s.RanToStage = contracts.Stage(stage)
		if version != nil {
			s.Version = *version
		}
		if errorKind != nil {
			s.ErrorKind = contracts.ErrorKind(*errorKind)
		}
		if errorDetail != nil {
			s.ErrorDetail = *errorDetail
		}
		if len(artifactsJSON) > 0 {
			if err := json.Unmarshal(artifactsJSON, &s.Artifacts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
			}
		}

		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run summaries: %w", err)
	}

	return summaries, nil
}

// Get returns one run summary by identifier.
func (r *Repository) Get(ctx context.Context, runID string) (contracts.RunSummary, error) {
	query := `
		SELECT run_id, started_at, duration_ms, ran_to_stage,
		       accepted, metric, version, error_kind, error_detail, artifacts
		FROM run_summaries
		WHERE run_id = $1
	`

	var (
		s             contracts.RunSummary
		durationMs    int64
		stage         string
		version       *string
		errorKind     *string
		errorDetail   *string
		artifactsJSON []byte
	)

	err := r.pool.QueryRow(ctx, query, runID).Scan(
		&s.RunID, &s.StartedAt, &durationMs, &stage,
		&s.Accepted, &s.Metric, &version, &errorKind, &errorDetail, &artifactsJSON,
	)
	if err != nil {
		return contracts.RunSummary{}, fmt.Errorf("failed to get run %s: %w", runID, err)
	}

	s.Duration = time.Duration(durationMs) * time.Millisecond
	s.RanToStage = contracts.Stage(stage)
	if version != nil {
		s.Version = *version
	}
	if errorKind != nil {
		s.ErrorKind = contracts.ErrorKind(*errorKind)
	}
	if errorDetail != nil {
		s.ErrorDetail = *errorDetail
	}
	if len(artifactsJSON) > 0 {
		if err := json.Unmarshal(artifactsJSON, &s.Artifacts); err != nil {
			return contracts.RunSummary{}, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}

	return s, nil
}
