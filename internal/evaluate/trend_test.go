package evaluate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"dropscout/internal/domain"
)

// stubHistory returns a fixed snapshot list, newest first.
type stubHistory struct {
	snapshots []*domain.MarketSnapshot
	err       error
	gotKey    string
}

func (s *stubHistory) InsertBulk(context.Context, string, []*domain.MarketSnapshot) error {
	return nil
}

func (s *stubHistory) GetRecent(_ context.Context, titleKey string, _ domain.Marketplace, _ domain.Region, _ time.Time, _ int) ([]*domain.MarketSnapshot, error) {
	s.gotKey = titleKey
	return s.snapshots, s.err
}

func historySnapshot(price string, age time.Duration) *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Marketplace:      domain.MarketplaceEbay,
		Region:           domain.RegionUS,
		ListingsFound:    10,
		CompetitivePrice: decimal.RequireFromString(price),
		Currency:         "USD",
		ObservedAt:       time.Now().UTC().Add(-age),
	}
}

func TestHistoryTrend_RisingPricesScoreAboveNeutral(t *testing.T) {
	history := &stubHistory{snapshots: []*domain.MarketSnapshot{
		historySnapshot("13.00", 0),
		historySnapshot("12.00", 24*time.Hour),
		historySnapshot("10.00", 48*time.Hour),
	}}
	trend := NewHistoryTrend(history, nil)

	score := trend.Score(context.Background(), "Phone Case", domain.MarketplaceEbay, domain.RegionUS)
	assert.InDelta(t, 0.8, score, 0.0001) // (13-10)/10 = +0.30
	assert.Equal(t, "phone-case", history.gotKey)
}

func TestHistoryTrend_FallingPricesScoreBelowNeutral(t *testing.T) {
	history := &stubHistory{snapshots: []*domain.MarketSnapshot{
		historySnapshot("8.00", 0),
		historySnapshot("10.00", 48*time.Hour),
	}}
	trend := NewHistoryTrend(history, nil)

	score := trend.Score(context.Background(), "phone case", domain.MarketplaceEbay, domain.RegionUS)
	assert.InDelta(t, 0.3, score, 0.0001)
}

func TestHistoryTrend_ClampedToUnitInterval(t *testing.T) {
	history := &stubHistory{snapshots: []*domain.MarketSnapshot{
		historySnapshot("30.00", 0),
		historySnapshot("10.00", 48*time.Hour),
	}}
	trend := NewHistoryTrend(history, nil)

	score := trend.Score(context.Background(), "phone case", domain.MarketplaceEbay, domain.RegionUS)
	assert.Equal(t, 1.0, score)
}

func TestHistoryTrend_DegradesToNeutral(t *testing.T) {
	tests := map[string]*stubHistory{
		"read error":        {err: errors.New("clickhouse down")},
		"no history":        {},
		"single data point": {snapshots: []*domain.MarketSnapshot{historySnapshot("10.00", 0)}},
	}
	for name, history := range tests {
		t.Run(name, func(t *testing.T) {
			trend := NewHistoryTrend(history, nil)
			score := trend.Score(context.Background(), "phone case", domain.MarketplaceEbay, domain.RegionUS)
			assert.Equal(t, NeutralTrendScore, score)
		})
	}
}
