package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"dropscout/internal/acquisition"
	"dropscout/internal/domain"
	"dropscout/internal/evaluate"
	"dropscout/internal/idhash"
	"dropscout/internal/market"
	"dropscout/internal/normalize"
	"dropscout/internal/notify"
	"dropscout/internal/observability"
	"dropscout/internal/storage"
)

// Finder runs the discovery state machine:
// Sourcing → Evaluating → Selecting → Accepted / Accepted(forced) / NoOpportunity.
type Finder struct {
	chain         *acquisition.Chain
	analyzer      *market.Analyzer
	evaluator     *evaluate.Evaluator
	opportunities storage.OpportunityStore
	runs          storage.RunStore
	notifier      notify.Notifier
	logger        *slog.Logger
	config        Config
}

// Options for creating a Finder.
type Options struct {
	// Required collaborators.
	Chain         *acquisition.Chain
	Analyzer      *market.Analyzer
	Evaluator     *evaluate.Evaluator
	Opportunities storage.OpportunityStore

	// Optional.
	Runs     storage.RunStore
	Notifier notify.Notifier
	Logger   *slog.Logger
	Config   Config
}

// New creates a Finder.
func New(opts Options) *Finder {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		chain:         opts.Chain,
		analyzer:      opts.Analyzer,
		evaluator:     opts.Evaluator,
		opportunities: opts.Opportunities,
		runs:          opts.Runs,
		notifier:      notifier,
		logger:        logger,
		config:        opts.Config,
	}
}

// FindOpportunities runs one discovery pass and returns the accepted
// opportunities. Terminal "found nothing" states return an empty slice,
// not an error.
func (f *Finder) FindOpportunities(ctx context.Context, userID string, req Request) ([]*domain.Opportunity, error) {
	result, err := f.FindOpportunitiesWithDiagnostics(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return result.Opportunities, nil
}

// FindOpportunitiesWithDiagnostics runs one discovery pass and returns the
// full structured result for health and smoke-test consumers.
func (f *Finder) FindOpportunitiesWithDiagnostics(ctx context.Context, userID string, req Request) (*Result, error) {
	if userID == "" || req.Query == "" {
		return nil, fmt.Errorf("user id and query are required: %w", storage.ErrInvalidInput)
	}

	cfg := f.config.resolve(req)
	if cfg.RunBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunBudget)
		defer cancel()
	}

	run := &runState{
		finder:    f,
		cfg:       cfg,
		userID:    userID,
		req:       req,
		runID:     uuid.New().String(),
		startedAt: time.Now().UTC(),
		result:    &Result{},
	}
	run.result.RunID = run.runID

	run.event(notify.EventRunStarted, "")
	return run.execute(ctx)
}

// runState owns the accumulators of one run. Never shared across runs.
type runState struct {
	finder    *Finder
	cfg       Config
	userID    string
	req       Request
	runID     string
	startedAt time.Time
	result    *Result

	candidates  []*domain.NormalizedCandidate
	evaluations []*domain.ProfitabilityEvaluation
	// coverage is the fraction of requested marketplaces that returned
	// usable data, per candidate source ID. Feeds the confidence score.
	coverage map[string]float64
}

func (r *runState) execute(ctx context.Context) (*Result, error) {
	raw, err := r.sourcing(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}
	if len(raw) == 0 {
		return r.finish(ctx, ReasonNoCandidates), nil
	}

	r.evaluating(ctx, raw)
	if len(r.candidates) == 0 {
		return r.finish(ctx, ReasonAllDropped), nil
	}

	selected, forced := r.selecting()
	if len(selected) == 0 {
		return r.finish(ctx, ReasonNoOpportunity), nil
	}

	if err := r.persist(ctx, selected, forced); err != nil {
		return r.fail(ctx, err)
	}

	reason := ReasonAccepted
	if forced {
		reason = ReasonAcceptedForced
	}
	return r.finish(ctx, reason), nil
}

// sourcing walks the acquisition chain across the keyword ladder.
func (r *runState) sourcing(ctx context.Context) ([]domain.RawCandidate, error) {
	r.event(notify.EventPhaseChanged, PhaseSourcing)

	ladder := acquisition.BuildLadder(r.req.Query, r.req.Category, r.req.HistoricalKeywords)
	raw, report, err := r.finder.chain.Acquire(ctx, ladder)

	if report != nil {
		r.result.Diagnostics.RungsTried = report.RungsTried
		r.result.Diagnostics.StrategyAttempts = report.StrategyAttempts
		r.result.Diagnostics.StrategyFailures = report.Failures
		r.result.Diagnostics.WinningStrategy = report.WinningStrategy
		r.result.Diagnostics.WinningKeyword = report.WinningKeyword
	}
	if err != nil {
		return nil, err
	}

	r.result.Diagnostics.Discovered = len(raw)
	observability.RecordAcquisition(len(raw), r.result.Diagnostics.RungsTried)
	r.finder.logger.Info("sourcing complete",
		"run_id", r.runID, "discovered", len(raw),
		"strategy", r.result.Diagnostics.WinningStrategy,
		"keyword", r.result.Diagnostics.WinningKeyword)
	return raw, nil
}

// evaluating normalizes every raw candidate, reads the market for each
// survivor and evaluates profitability. Never short-circuits on a discard.
func (r *runState) evaluating(ctx context.Context, raw []domain.RawCandidate) {
	r.event(notify.EventPhaseChanged, PhaseEvaluating)

	normalizer := normalize.New(r.cfg.DefaultCurrency)
	r.candidates = normalizer.NormalizeAll(raw, r.result.Diagnostics.WinningKeyword)

	stats := normalizer.Stats()
	r.result.Diagnostics.Normalized = stats.Accepted
	r.result.Diagnostics.Dropped = stats.DroppedTotal()
	dropped := make(map[string]int, len(stats.Dropped))
	for reason, count := range stats.Dropped {
		dropped[string(reason)] = count
	}
	observability.RecordNormalization(stats.Accepted, dropped)

	r.coverage = make(map[string]float64, len(r.candidates))
	r.evaluations = make([]*domain.ProfitabilityEvaluation, 0, len(r.candidates))
	for _, cand := range r.candidates {
		if ctx.Err() != nil {
			// Budget exhausted; evaluations collected so far stay valid.
			break
		}

		snapshots := r.finder.analyzer.Analyze(ctx, cand.Title, r.cfg.Marketplaces, r.cfg.Region)
		usable := 0
		for _, snap := range snapshots {
			if snap.Valid() {
				usable++
			}
		}
		r.coverage[cand.SourceID] = float64(usable) / float64(len(r.cfg.Marketplaces))

		eval := r.finder.evaluator.Evaluate(ctx, cand, snapshots, r.cfg.Marketplaces, r.cfg.MinMargin)
		r.evaluations = append(r.evaluations, eval)
	}
	r.result.Diagnostics.Evaluated = len(r.evaluations)
}

// selecting filters, sorts and picks the accepted set. Forced mode first
// relaxes the margin floor, then falls back to the cheapest candidate with
// an image, a positive price and a source URL.
func (r *runState) selecting() ([]*domain.ProfitabilityEvaluation, bool) {
	r.event(notify.EventPhaseChanged, PhaseSelecting)

	selected := pickSorted(r.evaluations, func(e *domain.ProfitabilityEvaluation) bool {
		return e.Publishable(r.cfg.MinMargin)
	})
	if len(selected) > 0 {
		if len(selected) > r.cfg.MaxItems {
			selected = selected[:r.cfg.MaxItems]
		}
		return selected, false
	}
	if !r.cfg.ForcedValidation {
		return nil, false
	}

	// Relaxed floor: margin data exists and clears the forced minimum.
	relaxed := pickSorted(r.evaluations, func(e *domain.ProfitabilityEvaluation) bool {
		return e.Marketplace != "" && e.ProfitMargin >= r.cfg.ForcedMinMargin
	})
	if len(relaxed) > 0 {
		return relaxed[:1], true
	}

	// Last resort: cheapest valid candidate regardless of margin.
	if eval := r.cheapestValid(); eval != nil {
		return []*domain.ProfitabilityEvaluation{eval}, true
	}
	return nil, false
}

// cheapestValid returns the evaluation of the lowest-cost candidate that
// has an image, a positive price and a non-empty source URL. Discovery
// order breaks price ties.
func (r *runState) cheapestValid() *domain.ProfitabilityEvaluation {
	var best *domain.ProfitabilityEvaluation
	for _, eval := range r.evaluations {
		c := eval.Candidate
		if !c.HasImage() || !c.BasePrice.IsPositive() || c.SourceURL == "" {
			continue
		}
		if best == nil || c.BasePrice.LessThan(best.Candidate.BasePrice) {
			best = eval
		}
	}
	return best
}

// pickSorted filters evaluations and stable-sorts the survivors by
// (profitMargin desc, trendScore desc). Stability preserves discovery
// order among full ties.
func pickSorted(evals []*domain.ProfitabilityEvaluation, keep func(*domain.ProfitabilityEvaluation) bool) []*domain.ProfitabilityEvaluation {
	var out []*domain.ProfitabilityEvaluation
	for _, e := range evals {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProfitMargin != out[j].ProfitMargin {
			return out[i].ProfitMargin > out[j].ProfitMargin
		}
		return out[i].TrendScore > out[j].TrendScore
	})
	return out
}

// persist upserts every accepted opportunity. Idempotent on
// (userID, sourceID), so re-running a failed batch is safe.
func (r *runState) persist(ctx context.Context, selected []*domain.ProfitabilityEvaluation, forced bool) error {
	for _, eval := range selected {
		opp := r.buildOpportunity(eval, forced)
		id, err := r.finder.opportunities.Upsert(ctx, opp)
		if err != nil {
			return fmt.Errorf("persist opportunity %s: %w", opp.SourceID, err)
		}
		opp.OpportunityID = id
		r.result.Opportunities = append(r.result.Opportunities, opp)
	}
	r.result.Diagnostics.Accepted = len(selected)
	r.result.Forced = forced
	observability.RecordAccepted(len(selected), forced)
	return nil
}

func (r *runState) buildOpportunity(eval *domain.ProfitabilityEvaluation, forced bool) *domain.Opportunity {
	c := eval.Candidate

	imageURL := c.ImageURL
	if imageURL == "" && len(c.ImageURLs) > 0 {
		imageURL = c.ImageURLs[0]
	}

	// Base cost in the pipeline currency. When no marketplace won, the
	// margin math never ran and the candidate's own price stands in.
	baseCost := c.BasePrice
	feesConsidered := eval.Marketplace != ""
	if feesConsidered {
		baseCost = eval.SalePrice.Sub(eval.EstimatedProfit).Sub(eval.CostBreakdown.TotalCost)
	}

	return &domain.Opportunity{
		OpportunityID:      idhash.ComputeOpportunityID(r.userID, c.SourceID),
		UserID:             r.userID,
		SourceID:           c.SourceID,
		Title:              c.Title,
		SourceURL:          c.SourceURL,
		ImageURL:           imageURL,
		Marketplace:        eval.Marketplace,
		TargetMarketplaces: r.cfg.Marketplaces,
		Region:             r.cfg.Region,
		BaseCost:           baseCost,
		SalePrice:          eval.SalePrice,
		EstimatedProfit:    eval.EstimatedProfit,
		ProfitMargin:       eval.ProfitMargin,
		ROIPercentage:      eval.ROIPercentage,
		TrendScore:         eval.TrendScore,
		ConfidenceScore:    r.coverage[c.SourceID],
		CostBreakdown:      eval.CostBreakdown,
		FeesConsidered:     feesConsidered,
		ForcedValidation:   forced,
		PublishOutcome:     domain.PublishPending,
		GeneratedAt:        eval.EvaluatedAt,
	}
}

// finish closes out a terminal state: run row, metrics, completion event.
func (r *runState) finish(ctx context.Context, reason string) *Result {
	r.result.ReasonCode = reason
	r.result.Success = reason == ReasonAccepted || reason == ReasonAcceptedForced
	r.result.Diagnostics.Elapsed = time.Since(r.startedAt)

	r.recordRun(ctx)
	observability.RecordRun(reason, r.result.Diagnostics.Elapsed.Seconds(), r.result.Success)
	r.event(notify.EventRunCompleted, "")

	r.finder.logger.Info("run finished",
		"run_id", r.runID, "reason", reason,
		"discovered", r.result.Diagnostics.Discovered,
		"normalized", r.result.Diagnostics.Normalized,
		"accepted", r.result.Diagnostics.Accepted,
		"forced", r.result.Forced,
		"elapsed", r.result.Diagnostics.Elapsed)
	return r.result
}

// fail closes out an error terminal state and propagates the error.
// Manual-auth challenges keep their typed error so callers can surface the
// challenge to a human.
func (r *runState) fail(ctx context.Context, err error) (*Result, error) {
	reason := ReasonStorageError
	switch {
	case acquisition.IsManualAuth(err):
		reason = ReasonManualAuth
	case errors.Is(err, acquisition.ErrNoStrategiesEnabled):
		reason = ReasonConfigError
	}
	result := r.finish(ctx, reason)
	return result, err
}

// recordRun persists the run summary, best effort.
func (r *runState) recordRun(ctx context.Context) {
	if r.finder.runs == nil {
		return
	}
	row := &domain.PipelineRun{
		RunID:      r.runID,
		UserID:     r.userID,
		Query:      r.req.Query,
		Success:    r.result.Success,
		ReasonCode: r.result.ReasonCode,
		Discovered: r.result.Diagnostics.Discovered,
		Normalized: r.result.Diagnostics.Normalized,
		Dropped:    r.result.Diagnostics.Dropped,
		Evaluated:  r.result.Diagnostics.Evaluated,
		Accepted:   r.result.Diagnostics.Accepted,
		Forced:     r.result.Forced,
		StartedAt:  r.startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if err := r.finder.runs.Insert(ctx, row); err != nil {
		r.finder.logger.Warn("run record insert failed", "run_id", r.runID, "error", err)
	}
}

func (r *runState) event(kind, phase string) {
	ev := notify.Event{
		Kind:   kind,
		RunID:  r.runID,
		UserID: r.userID,
		Query:  r.req.Query,
		Phase:  phase,
		At:     time.Now().UTC(),
	}
	if kind == notify.EventRunCompleted {
		ev.ReasonCode = r.result.ReasonCode
		ev.Accepted = r.result.Diagnostics.Accepted
		ev.Forced = r.result.Forced
	}
	// Fire-and-forget: the notifier swallows its own failures and events
	// must survive run-budget cancellation, hence Background.
	r.finder.notifier.Publish(context.Background(), ev)
}
