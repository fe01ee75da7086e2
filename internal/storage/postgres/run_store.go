package postgres

import (
	"context"
	"fmt"

	"dropscout/internal/domain"
	"dropscout/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

var _ storage.RunStore = (*RunStore)(nil)

// Insert appends a run summary. Returns ErrDuplicateKey on run_id collision.
func (s *RunStore) Insert(ctx context.Context, run *domain.PipelineRun) error {
	if run == nil || run.RunID == "" || run.UserID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO pipeline_runs (
			run_id, user_id, query, success, reason_code,
			discovered, normalized, dropped, evaluated, accepted, forced,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.UserID, run.Query, run.Success, run.ReasonCode,
		run.Discovered, run.Normalized, run.Dropped, run.Evaluated, run.Accepted, run.Forced,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pipeline run: %w", err)
	}
	return nil
}

// GetByID retrieves a run summary. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	query := `
		SELECT run_id, user_id, query, success, reason_code,
		       discovered, normalized, dropped, evaluated, accepted, forced,
		       started_at, finished_at
		FROM pipeline_runs
		WHERE run_id = $1
	`
	var run domain.PipelineRun
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.UserID, &run.Query, &run.Success, &run.ReasonCode,
		&run.Discovered, &run.Normalized, &run.Dropped, &run.Evaluated, &run.Accepted, &run.Forced,
		&run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline run: %w", err)
	}
	return &run, nil
}
