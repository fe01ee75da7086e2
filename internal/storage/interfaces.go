package storage

import (
	"context"
	"time"

	"dropscout/internal/domain"
)

// OpportunityStore persists accepted opportunities. Upsert is idempotent on
// (user_id, source_id): re-submission updates the existing row and returns
// its id instead of creating a duplicate, so pipeline retries are safe.
type OpportunityStore interface {
	// Upsert inserts or updates the opportunity, returning its id.
	Upsert(ctx context.Context, o *domain.Opportunity) (string, error)

	// GetByUserAndSource retrieves an opportunity by its natural key.
	// Returns ErrNotFound if not exists.
	GetByUserAndSource(ctx context.Context, userID, sourceID string) (*domain.Opportunity, error)

	// ListByUser retrieves all opportunities for a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Opportunity, error)

	// SetPublishOutcome records what the publishing collaborator did.
	SetPublishOutcome(ctx context.Context, opportunityID string, outcome domain.PublishOutcome) error
}

// RunStore persists pipeline run summaries for smoke tests and health
// probes. Append-only: Insert returns ErrDuplicateKey on run_id collision.
type RunStore interface {
	Insert(ctx context.Context, run *domain.PipelineRun) error
	GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error)
}

// SnapshotHistoryStore archives competitor market snapshots for trend
// scoring. History is advisory: callers must degrade gracefully when the
// store is absent or failing.
type SnapshotHistoryStore interface {
	// InsertBulk appends snapshots observed for one normalized title key.
	InsertBulk(ctx context.Context, titleKey string, snapshots []*domain.MarketSnapshot) error

	// GetRecent retrieves up to limit snapshots for a title key on one
	// marketplace/region, newest first.
	GetRecent(ctx context.Context, titleKey string, mp domain.Marketplace, region domain.Region, since time.Time, limit int) ([]*domain.MarketSnapshot, error)
}
