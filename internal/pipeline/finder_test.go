package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropscout/internal/acquisition"
	"dropscout/internal/costmodel"
	"dropscout/internal/domain"
	"dropscout/internal/evaluate"
	"dropscout/internal/market"
	"dropscout/internal/notify"
	"dropscout/internal/storage/memory"
)

// scriptedStrategy replays a fixed response sequence.
type scriptedStrategy struct {
	name    string
	enabled bool
	calls   int
	script  []scriptedCall
}

type scriptedCall struct {
	candidates []domain.RawCandidate
	err        error
}

func (s *scriptedStrategy) Name() string  { return s.name }
func (s *scriptedStrategy) Enabled() bool { return s.enabled }

func (s *scriptedStrategy) Search(_ context.Context, _ acquisition.SearchRequest) ([]domain.RawCandidate, error) {
	call := s.script[len(s.script)-1]
	if s.calls < len(s.script) {
		call = s.script[s.calls]
	}
	s.calls++
	return call.candidates, call.err
}

// scriptedLookup maps marketplaces to competitive prices.
type scriptedLookup struct {
	prices map[domain.Marketplace]string
	errs   map[domain.Marketplace]error
}

func (l *scriptedLookup) FindComparableListings(_ context.Context, _ string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error) {
	if err, ok := l.errs[mp]; ok {
		return nil, err
	}
	price, ok := l.prices[mp]
	if !ok {
		return nil, errors.New("no comps configured")
	}
	return &domain.MarketSnapshot{
		Marketplace:      mp,
		Region:           region,
		ListingsFound:    10,
		CompetitivePrice: decimal.RequireFromString(price),
		Currency:         "USD",
		ObservedAt:       time.Now().UTC(),
	}, nil
}

func rawCandidate(id, title, price string) domain.RawCandidate {
	return domain.RawCandidate{
		SourceID:  id,
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Currency:  "USD",
		SourceURL: "https://supplier.example.com/item/" + id,
		ImageURL:  "https://cdn.example.com/" + id + ".jpg",
	}
}

type finderFixture struct {
	finder        *Finder
	opportunities *memory.OpportunityStore
	runs          *memory.RunStore
}

// newFinderFixture wires a finder over memory stores, a flat $1.50 eBay fee
// schedule and fast retries.
func newFinderFixture(t *testing.T, strategies []acquisition.Strategy, lookup market.Lookup, cfg Config) *finderFixture {
	t.Helper()

	model := costmodel.New(costmodel.NewSchedules([]costmodel.FeeSchedule{
		{Marketplace: domain.MarketplaceEbay, FixedFee: decimal.RequireFromString("1.50")},
		{Marketplace: domain.MarketplaceAmazon, FixedFee: decimal.RequireFromString("1.50")},
		{Marketplace: domain.MarketplaceEtsy, FixedFee: decimal.RequireFromString("1.50")},
	}), nil)

	opportunities := memory.NewOpportunityStore()
	runs := memory.NewRunStore()

	finder := New(Options{
		Chain: acquisition.NewChain(strategies,
			acquisition.WithMaxRetries(2),
			acquisition.WithRetryDelay(time.Millisecond),
		),
		Analyzer:      market.NewAnalyzer(lookup),
		Evaluator:     evaluate.NewEvaluator(model, nil, nil),
		Opportunities: opportunities,
		Runs:          runs,
		Config:        cfg,
	})
	return &finderFixture{finder: finder, opportunities: opportunities, runs: runs}
}

func TestFinder_AcceptsAndPersistsOpportunity(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-1", "phone case", "5.00")}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ReasonAccepted, result.ReasonCode)
	require.Len(t, result.Opportunities, 1)

	opp := result.Opportunities[0]
	assert.Equal(t, "src-1", opp.SourceID)
	assert.Equal(t, domain.MarketplaceEbay, opp.Marketplace)
	assert.InDelta(t, 0.423, opp.ProfitMargin, 0.001)
	assert.False(t, opp.ForcedValidation)
	assert.True(t, opp.FeesConsidered)
	assert.InDelta(t, 1.0, opp.ConfidenceScore, 0.0001)

	stored, err := fx.opportunities.GetByUserAndSource(context.Background(), "user-1", "src-1")
	require.NoError(t, err)
	assert.Equal(t, opp.OpportunityID, stored.OpportunityID)

	run, err := fx.runs.GetByID(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.True(t, run.Success)
	assert.Equal(t, ReasonAccepted, run.ReasonCode)
	assert.Equal(t, 1, run.Accepted)
}

func TestFinder_RerunIsIdempotent(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-1", "phone case", "5.00")}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	first, err := fx.finder.FindOpportunities(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)
	second, err := fx.finder.FindOpportunities(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].OpportunityID, second[0].OpportunityID)

	all, err := fx.opportunities.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "re-submission must not create duplicates")
}

func TestFinder_StrategyFallthrough(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{err: &acquisition.TransientError{Op: "affiliate", Err: errors.New("status 502")}},
		}},
		&scriptedStrategy{name: "bridge", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-2", "phone case", "4.00")}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err, "transient failures must not surface to the caller")

	assert.True(t, result.Success)
	assert.Equal(t, "bridge", result.Diagnostics.WinningStrategy)
	assert.NotEmpty(t, result.Diagnostics.StrategyFailures, "the failure is recorded in diagnostics")
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, "src-2", result.Opportunities[0].SourceID)
}

func TestFinder_ManualAuthPropagates(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "native", enabled: true, script: []scriptedCall{
			{err: &acquisition.ManualAuthError{Token: "abc", ChallengeURL: "https://upstream/captcha"}},
		}},
	}
	fx := newFinderFixture(t, strategies, &scriptedLookup{}, Config{})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.Error(t, err)

	var authErr *acquisition.ManualAuthError
	require.ErrorAs(t, err, &authErr, "manual auth must stay distinguishable")
	assert.Equal(t, "abc", authErr.Token)
	assert.Equal(t, ReasonManualAuth, result.ReasonCode)
	assert.False(t, result.Success)
}

func TestFinder_NoCandidatesIsStructuredResult(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{{}}},
	}
	fx := newFinderFixture(t, strategies, &scriptedLookup{}, Config{})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "vanishingly rare item"})
	require.NoError(t, err, "finding nothing is an outcome, not an error")

	assert.False(t, result.Success)
	assert.Equal(t, ReasonNoCandidates, result.ReasonCode)
	assert.Empty(t, result.Opportunities)
}

func TestFinder_NoStrategiesEnabledIsError(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: false, script: []scriptedCall{{}}},
	}
	fx := newFinderFixture(t, strategies, &scriptedLookup{}, Config{})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.ErrorIs(t, err, acquisition.ErrNoStrategiesEnabled)
	assert.Equal(t, ReasonConfigError, result.ReasonCode)
}

func TestFinder_DeduplicatesCandidates(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{
				rawCandidate("src-1", "phone case", "5.00"),
				rawCandidate("src-1", "phone case duplicate", "5.10"),
				rawCandidate("src-2", "phone case pro", "6.00"),
			}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Diagnostics.Discovered)
	assert.Equal(t, 2, result.Diagnostics.Normalized)
	assert.Equal(t, 1, result.Diagnostics.Dropped)
}

func TestFinder_MarketplaceDegradation(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-1", "phone case", "5.00")}},
		}},
	}
	// 2 of 3 lookups fail; the run still succeeds on the survivor.
	lookup := &scriptedLookup{
		prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"},
		errs: map[domain.Marketplace]error{
			domain.MarketplaceAmazon: errors.New("rate limited"),
			domain.MarketplaceEtsy:   errors.New("timeout"),
		},
	}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: domain.DefaultMarketplaces,
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, domain.MarketplaceEbay, result.Opportunities[0].Marketplace)
	assert.InDelta(t, 1.0/3.0, result.Opportunities[0].ConfidenceScore, 0.0001)
}

func TestFinder_MaxItemsCapsSelection(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{
				rawCandidate("src-1", "phone case a", "5.00"),
				rawCandidate("src-2", "phone case b", "4.00"),
				rawCandidate("src-3", "phone case c", "6.00"),
			}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		MaxItems:     2,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	require.Len(t, result.Opportunities, 2)
	// Sorted by margin desc: cheapest acquisition wins.
	assert.Equal(t, "src-2", result.Opportunities[0].SourceID)
	assert.Equal(t, "src-1", result.Opportunities[1].SourceID)
}

func TestFinder_ForcedModeRelaxedFloor(t *testing.T) {
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-1", "phone case", "5.00")}},
		}},
	}
	// Competitive price $6.75 with $1.50 fees: margin = 0.25/6.75 ~= 0.037...
	// Use $7.00: margin = (7.00-5.00-1.50)/7.00 ~= 0.071, between the
	// forced floor 0.05 and minMargin 0.20.
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "7.00"}}

	forced := true
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:       0.20,
		ForcedMinMargin: 0.05,
		Marketplaces:    []domain.Marketplace{domain.MarketplaceEbay},
	})

	// Normal mode: nothing clears the bar.
	normal, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoOpportunity, normal.ReasonCode)
	assert.False(t, normal.Success)

	// Forced mode: the relaxed floor accepts it, flagged as forced.
	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1",
		Request{Query: "phone case", ForcedValidation: &forced})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, ReasonAcceptedForced, result.ReasonCode)
	require.Len(t, result.Opportunities, 1)
	assert.True(t, result.Opportunities[0].ForcedValidation,
		"downstream consumers must be able to distinguish relaxed acceptances")
}

func TestFinder_ForcedModeCheapestValidFallback(t *testing.T) {
	noImage := rawCandidate("src-cheap", "phone case basic", "2.00")
	noImage.ImageURL = ""

	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{
				rawCandidate("src-1", "phone case premium", "6.00"),
				noImage,
				rawCandidate("src-2", "phone case standard", "3.50"),
			}},
		}},
	}
	// No marketplace data at all: margin math never runs.
	lookup := &scriptedLookup{errs: map[domain.Marketplace]error{
		domain.MarketplaceEbay: errors.New("lookup down"),
	}}

	forced := true
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:       0.20,
		ForcedMinMargin: 0.05,
		Marketplaces:    []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1",
		Request{Query: "phone case", ForcedValidation: &forced})
	require.NoError(t, err)

	assert.Equal(t, ReasonAcceptedForced, result.ReasonCode)
	require.Len(t, result.Opportunities, 1)

	opp := result.Opportunities[0]
	// src-cheap is cheapest but has no image; src-2 is the cheapest valid.
	assert.Equal(t, "src-2", opp.SourceID)
	assert.True(t, opp.ForcedValidation)
	assert.False(t, opp.FeesConsidered)
	assert.True(t, opp.BaseCost.Equal(decimal.RequireFromString("3.50")))
}

func TestFinder_ForcedModeNothingQualifies(t *testing.T) {
	noURL := domain.RawCandidate{
		SourceID: "src-1",
		Title:    "phone case",
		Price:    decimal.RequireFromString("5.00"),
		Currency: "USD",
		// No source URL and no image: fails the cheapest-valid gate. The
		// unfiltered ladder rung still lets it through acquisition.
	}
	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{noURL}},
		}},
	}
	lookup := &scriptedLookup{errs: map[domain.Marketplace]error{
		domain.MarketplaceEbay: errors.New("lookup down"),
	}}

	forced := true
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})

	result, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1",
		Request{Query: "phone case", ForcedValidation: &forced})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, ReasonNoOpportunity, result.ReasonCode)
	assert.Empty(t, result.Opportunities)
}

func TestFinder_EmitsProgressEvents(t *testing.T) {
	var events []notify.Event
	capture := notifierFunc(func(_ context.Context, ev notify.Event) { events = append(events, ev) })

	strategies := []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{
			{candidates: []domain.RawCandidate{rawCandidate("src-1", "phone case", "5.00")}},
		}},
	}
	lookup := &scriptedLookup{prices: map[domain.Marketplace]string{domain.MarketplaceEbay: "13.00"}}
	fx := newFinderFixture(t, strategies, lookup, Config{
		MinMargin:    0.20,
		Marketplaces: []domain.Marketplace{domain.MarketplaceEbay},
	})
	fx.finder.notifier = capture

	_, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{Query: "phone case"})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, notify.EventRunStarted, events[0].Kind)
	last := events[len(events)-1]
	assert.Equal(t, notify.EventRunCompleted, last.Kind)
	assert.Equal(t, ReasonAccepted, last.ReasonCode)
	assert.Equal(t, 1, last.Accepted)
}

func TestFinder_RejectsMissingUserOrQuery(t *testing.T) {
	fx := newFinderFixture(t, []acquisition.Strategy{
		&scriptedStrategy{name: "affiliate", enabled: true, script: []scriptedCall{{}}},
	}, &scriptedLookup{}, Config{})

	_, err := fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "", Request{Query: "phone case"})
	assert.Error(t, err)

	_, err = fx.finder.FindOpportunitiesWithDiagnostics(context.Background(), "user-1", Request{})
	assert.Error(t, err)
}

// notifierFunc adapts a function to the notify.Notifier interface.
type notifierFunc func(context.Context, notify.Event)

func (f notifierFunc) Publish(ctx context.Context, ev notify.Event) { f(ctx, ev) }
