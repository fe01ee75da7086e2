package market

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/observability"
	"dropscout/internal/storage"
)

const defaultLookupTimeout = 10 * time.Second

// Analyzer fans comp lookups out across target marketplaces and joins them
// best-effort: a failed or slow marketplace is simply absent from the result,
// never a reason to abort the others.
type Analyzer struct {
	lookup        Lookup
	cache         SnapshotCache
	history       storage.SnapshotHistoryStore
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// AnalyzerOption configures optional Analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithCache attaches a snapshot cache consulted before each lookup.
func WithCache(cache SnapshotCache) AnalyzerOption {
	return func(a *Analyzer) { a.cache = cache }
}

// WithHistory attaches a history store; valid snapshots are archived there
// after every analysis. Writes are advisory and never fail the analysis.
func WithHistory(history storage.SnapshotHistoryStore) AnalyzerOption {
	return func(a *Analyzer) { a.history = history }
}

// WithLookupTimeout bounds each individual marketplace lookup.
func WithLookupTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.lookupTimeout = d
		}
	}
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAnalyzer creates an Analyzer over the given lookup.
func NewAnalyzer(lookup Lookup, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		lookup:        lookup,
		cache:         NopCache{},
		lookupTimeout: defaultLookupTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reads comparable listings for the title on every requested
// marketplace, one goroutine per marketplace. Marketplaces whose lookup
// failed are absent from the map; "no data" snapshots (zero listings or
// non-positive competitive price) are present but report Valid() == false.
func (a *Analyzer) Analyze(ctx context.Context, title string, marketplaces []domain.Marketplace, region domain.Region) map[domain.Marketplace]*domain.MarketSnapshot {
	titleKey := TitleKey(title)
	result := make(map[domain.Marketplace]*domain.MarketSnapshot, len(marketplaces))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, mp := range marketplaces {
		wg.Add(1)
		go func(mp domain.Marketplace) {
			defer wg.Done()

			snap, err := a.lookupOne(ctx, title, titleKey, mp, region)
			if err != nil {
				a.logger.Warn("marketplace lookup failed",
					"marketplace", string(mp), "title_key", titleKey, "error", err)
				return
			}

			mu.Lock()
			result[mp] = snap
			mu.Unlock()
		}(mp)
	}
	wg.Wait()

	a.archive(ctx, titleKey, result)
	return result
}

// lookupOne consults the cache, then the live lookup. Cache failures fall
// through to a direct lookup.
func (a *Analyzer) lookupOne(ctx context.Context, title, titleKey string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error) {
	cached, err := a.cache.Get(ctx, titleKey, mp, region)
	switch {
	case err != nil:
		observability.RecordCacheOutcome("error")
	case cached != nil:
		observability.RecordCacheOutcome("hit")
		return cached, nil
	default:
		observability.RecordCacheOutcome("miss")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, a.lookupTimeout)
	defer cancel()

	start := time.Now()
	snap, err := a.lookup.FindComparableListings(lookupCtx, title, mp, region)
	observability.RecordLookup(string(mp), time.Since(start).Seconds(), err != nil)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Set(ctx, titleKey, snap); err != nil {
		a.logger.Debug("snapshot cache write failed",
			"marketplace", string(mp), "error", err)
	}
	return snap, nil
}

// archive appends valid snapshots to the history store, best effort.
func (a *Analyzer) archive(ctx context.Context, titleKey string, result map[domain.Marketplace]*domain.MarketSnapshot) {
	if a.history == nil {
		return
	}

	var valid []*domain.MarketSnapshot
	for _, snap := range result {
		if snap.Valid() {
			valid = append(valid, snap)
		}
	}
	if len(valid) == 0 {
		return
	}

	if err := a.history.InsertBulk(ctx, titleKey, valid); err != nil {
		a.logger.Warn("snapshot history write failed",
			"title_key", titleKey, "count", len(valid), "error", err)
	}
}

// HasUsableSnapshot reports whether at least one snapshot in the map can
// serve as a basis for evaluation.
func HasUsableSnapshot(snapshots map[domain.Marketplace]*domain.MarketSnapshot) bool {
	for _, snap := range snapshots {
		if snap.Valid() {
			return true
		}
	}
	return false
}
