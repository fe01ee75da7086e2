package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropscout/internal/domain"
	"dropscout/internal/storage"
)

func testSnapshot(mp domain.Marketplace, price float64, observedAt time.Time) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Marketplace:      mp,
		Region:           domain.RegionUS,
		ListingsFound:    12,
		AveragePrice:     decimal.NewFromFloat(price + 1.50),
		MedianPrice:      decimal.NewFromFloat(price + 0.75),
		CompetitivePrice: decimal.NewFromFloat(price),
		Currency:         "USD",
		ObservedAt:       observedAt,
	}
}

func TestSnapshotHistoryStore_InsertAndGetRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	snapshots := []*domain.MarketSnapshot{
		testSnapshot(domain.MarketplaceEbay, 12.00, now.Add(-48*time.Hour)),
		testSnapshot(domain.MarketplaceEbay, 12.50, now.Add(-24*time.Hour)),
		testSnapshot(domain.MarketplaceEbay, 13.00, now),
		testSnapshot(domain.MarketplaceAmazon, 14.00, now),
	}
	require.NoError(t, store.InsertBulk(ctx, "wireless-charger", snapshots))

	got, err := store.GetRecent(ctx, "wireless-charger",
		domain.MarketplaceEbay, domain.RegionUS, now.Add(-72*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.True(t, got[0].CompetitivePrice.Equal(decimal.NewFromFloat(13.00)))
	assert.True(t, got[2].CompetitivePrice.Equal(decimal.NewFromFloat(12.00)))
	assert.Equal(t, domain.MarketplaceEbay, got[0].Marketplace)
	assert.Equal(t, 12, got[0].ListingsFound)
}

func TestSnapshotHistoryStore_WindowAndLimit(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	var snapshots []*domain.MarketSnapshot
	for i := 0; i < 5; i++ {
		snapshots = append(snapshots,
			testSnapshot(domain.MarketplaceEtsy, 10.00+float64(i), now.Add(-time.Duration(i)*24*time.Hour)))
	}
	require.NoError(t, store.InsertBulk(ctx, "ceramic-mug", snapshots))

	// The since window excludes the two oldest observations.
	got, err := store.GetRecent(ctx, "ceramic-mug",
		domain.MarketplaceEtsy, domain.RegionUS, now.Add(-60*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Limit caps the result even inside the window.
	got, err = store.GetRecent(ctx, "ceramic-mug",
		domain.MarketplaceEtsy, domain.RegionUS, now.Add(-10*24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ObservedAt.After(got[1].ObservedAt))
}

func TestSnapshotHistoryStore_EmptyBatchAndInvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "anything", nil))

	err := store.InsertBulk(ctx, "", []*domain.MarketSnapshot{testSnapshot(domain.MarketplaceEbay, 9.99, time.Now())})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.GetRecent(ctx, "", domain.MarketplaceEbay, domain.RegionUS, time.Now(), 5)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	got, err := store.GetRecent(ctx, "never-seen", domain.MarketplaceEbay, domain.RegionUS, time.Now().Add(-time.Hour), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
