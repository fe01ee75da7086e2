package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropscout/internal/domain"
	"dropscout/internal/storage"
)

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	run := &domain.PipelineRun{
		RunID:      "run-1",
		UserID:     "user-1",
		Query:      "phone case",
		Success:    true,
		ReasonCode: "accepted",
		Discovered: 4,
		Accepted:   1,
		StartedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Insert(ctx, run))

	got, err := store.GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "accepted", got.ReasonCode)
	assert.Equal(t, 4, got.Discovered)
}

func TestRunStore_DuplicateRunID(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, &domain.PipelineRun{RunID: "run-1"}))
	err := store.Insert(ctx, &domain.PipelineRun{RunID: "run-1"})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRunStore_NotFoundAndInvalidInput(t *testing.T) {
	store := NewRunStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.PipelineRun{}), storage.ErrInvalidInput)
}
