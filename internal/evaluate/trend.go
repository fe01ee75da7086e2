package evaluate

import (
	"context"
	"log/slog"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/market"
	"dropscout/internal/storage"
)

// NeutralTrendScore is used whenever no usable history exists.
const NeutralTrendScore = 0.5

// TrendScorer rates how a candidate's resale market has been moving,
// on [0,1] with 0.5 neutral. Scores are advisory tie-breakers only.
type TrendScorer interface {
	Score(ctx context.Context, title string, mp domain.Marketplace, region domain.Region) float64
}

// NeutralTrend scores everything 0.5. Used when no history store is wired.
type NeutralTrend struct{}

func (NeutralTrend) Score(context.Context, string, domain.Marketplace, domain.Region) float64 {
	return NeutralTrendScore
}

const (
	defaultTrendWindow = 30 * 24 * time.Hour
	defaultTrendLimit  = 20
)

// HistoryTrend derives a score from archived market snapshots: rising
// competitive prices push the score above neutral, falling prices below.
// Any history failure degrades to neutral.
type HistoryTrend struct {
	history storage.SnapshotHistoryStore
	window  time.Duration
	limit   int
	logger  *slog.Logger
}

// NewHistoryTrend creates a scorer over the snapshot history store.
func NewHistoryTrend(history storage.SnapshotHistoryStore, logger *slog.Logger) *HistoryTrend {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryTrend{
		history: history,
		window:  defaultTrendWindow,
		limit:   defaultTrendLimit,
		logger:  logger,
	}
}

var _ TrendScorer = (*HistoryTrend)(nil)

// Score compares the newest and oldest competitive prices inside the
// window. Needs at least two observations; otherwise neutral.
func (t *HistoryTrend) Score(ctx context.Context, title string, mp domain.Marketplace, region domain.Region) float64 {
	if t.history == nil {
		return NeutralTrendScore
	}

	titleKey := market.TitleKey(title)
	since := time.Now().UTC().Add(-t.window)

	snapshots, err := t.history.GetRecent(ctx, titleKey, mp, region, since, t.limit)
	if err != nil {
		t.logger.Debug("trend history read failed",
			"title_key", titleKey, "marketplace", string(mp), "error", err)
		return NeutralTrendScore
	}
	if len(snapshots) < 2 {
		return NeutralTrendScore
	}

	// GetRecent returns newest first.
	newest := snapshots[0].CompetitivePrice
	oldest := snapshots[len(snapshots)-1].CompetitivePrice
	if !oldest.IsPositive() || !newest.IsPositive() {
		return NeutralTrendScore
	}

	change, _ := newest.Sub(oldest).Div(oldest).Float64()
	score := NeutralTrendScore + change
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
