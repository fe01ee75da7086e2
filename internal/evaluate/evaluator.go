// Package evaluate turns normalized candidates and market snapshots into
// publish/discard decisions via the cost model.
package evaluate

import (
	"context"
	"log/slog"
	"time"

	"dropscout/internal/costmodel"
	"dropscout/internal/domain"
)

// Discard and publish reasons recorded on evaluations.
const (
	ReasonMarginMet      = "margin_met"
	ReasonBelowMinMargin = "below_min_margin"
	ReasonNoMarketData   = "no_market_data"
)

// Evaluator scores one candidate against its market snapshots.
type Evaluator struct {
	model  *costmodel.Model
	trend  TrendScorer
	logger *slog.Logger
	now    func() time.Time
}

// NewEvaluator creates an Evaluator. A nil trend scorer defaults to
// neutral scores.
func NewEvaluator(model *costmodel.Model, trend TrendScorer, logger *slog.Logger) *Evaluator {
	if trend == nil {
		trend = NeutralTrend{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		model:  model,
		trend:  trend,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate computes a margin for every valid snapshot, using that
// marketplace's competitive price as the sale price and the candidate's
// base price as acquisition cost, then picks the maximum. Ties break by
// the order of the marketplaces slice, first wins. The result is publish
// only when the best margin clears minMargin.
func (e *Evaluator) Evaluate(ctx context.Context, cand *domain.NormalizedCandidate, snapshots map[domain.Marketplace]*domain.MarketSnapshot, marketplaces []domain.Marketplace, minMargin float64) *domain.ProfitabilityEvaluation {
	eval := &domain.ProfitabilityEvaluation{
		Candidate:   cand,
		Decision:    domain.DecisionDiscard,
		TrendScore:  NeutralTrendScore,
		EvaluatedAt: e.now(),
	}

	var (
		best       *costmodel.Result
		bestMP     domain.Marketplace
		bestRegion domain.Region
	)
	for _, mp := range marketplaces {
		snap := snapshots[mp]
		if !snap.Valid() {
			continue
		}

		result, err := e.model.Calculate(costmodel.Input{
			Marketplace:    mp,
			Region:         snap.Region,
			SalePrice:      snap.CompetitivePrice,
			CostPrice:      cand.BasePrice,
			SourceCurrency: cand.Currency,
			TargetCurrency: snap.Currency,
		})
		if err != nil {
			e.logger.Warn("margin computation failed",
				"marketplace", string(mp), "source_id", cand.SourceID, "error", err)
			continue
		}

		// Strict greater keeps the first marketplace on ties.
		if best == nil || result.Margin > best.Margin {
			best = result
			bestMP = mp
			bestRegion = snap.Region
		}
	}

	if best == nil {
		eval.Reason = ReasonNoMarketData
		return eval
	}

	eval.Marketplace = bestMP
	eval.SalePrice = best.SalePrice
	eval.CostBreakdown = best.Breakdown
	eval.EstimatedProfit = best.EstimatedProfit
	eval.ProfitMargin = best.Margin
	eval.ROIPercentage = best.Margin * 100
	eval.TrendScore = e.trend.Score(ctx, cand.Title, bestMP, bestRegion)

	if best.Margin >= minMargin {
		eval.Decision = domain.DecisionPublish
		eval.Reason = ReasonMarginMet
	} else {
		eval.Reason = ReasonBelowMinMargin
	}
	return eval
}

// EvaluateAll evaluates candidates in discovery order. Never short-circuits
// on a discard; every candidate gets its evaluation.
func (e *Evaluator) EvaluateAll(ctx context.Context, candidates []*domain.NormalizedCandidate, snapshotsByCandidate map[string]map[domain.Marketplace]*domain.MarketSnapshot, marketplaces []domain.Marketplace, minMargin float64) []*domain.ProfitabilityEvaluation {
	evaluations := make([]*domain.ProfitabilityEvaluation, 0, len(candidates))
	for _, cand := range candidates {
		evaluations = append(evaluations,
			e.Evaluate(ctx, cand, snapshotsByCandidate[cand.SourceID], marketplaces, minMargin))
	}
	return evaluations
}
