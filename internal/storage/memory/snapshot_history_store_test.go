package memory

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

func historySnapshot(mp domain.Marketplace, price string, observedAt time.Time) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Marketplace:      mp,
		Region:           domain.RegionUS,
		ListingsFound:    10,
		CompetitivePrice: decimal.RequireFromString(price),
		Currency:         "USD",
		ObservedAt:       observedAt,
	}
}

func TestSnapshotHistoryStore_GetRecentNewestFirst(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	err := store.InsertBulk(ctx, "phone-case", []*domain.MarketSnapshot{
		historySnapshot(domain.MarketplaceEbay, "12.00", base.Add(-2*time.Hour)),
		historySnapshot(domain.MarketplaceEbay, "13.00", base.Add(-1*time.Hour)),
		historySnapshot(domain.MarketplaceEbay, "14.00", base),
	})
	require.NoError(t, err)

	got, err := store.GetRecent(ctx, "phone-case", domain.MarketplaceEbay, domain.RegionUS, base.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "14", got[0].CompetitivePrice.String())
	assert.Equal(t, "12", got[2].CompetitivePrice.String())
}

func TestSnapshotHistoryStore_FiltersByMarketplaceAndWindow(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()
	base := time.Now().UTC()

	err := store.InsertBulk(ctx, "phone-case", []*domain.MarketSnapshot{
		historySnapshot(domain.MarketplaceEbay, "12.00", base),
		historySnapshot(domain.MarketplaceAmazon, "15.00", base),
		historySnapshot(domain.MarketplaceEbay, "9.00", base.Add(-48*time.Hour)),
	})
	require.NoError(t, err)

	got, err := store.GetRecent(ctx, "phone-case", domain.MarketplaceEbay, domain.RegionUS, base.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "12", got[0].CompetitivePrice.String())

	limited, err := store.GetRecent(ctx, "phone-case", domain.MarketplaceEbay, domain.RegionUS, base.Add(-72*time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSnapshotHistoryStore_EmptyTitleKey(t *testing.T) {
	store := NewSnapshotHistoryStore()
	err := store.InsertBulk(context.Background(), "", []*domain.MarketSnapshot{
		historySnapshot(domain.MarketplaceEbay, "12.00", time.Now().UTC()),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
