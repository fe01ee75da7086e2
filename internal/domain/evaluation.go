package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Decision is the publish/discard outcome of a profitability evaluation.
type Decision string

const (
	DecisionPublish Decision = "publish"
	DecisionDiscard Decision = "discard"
)

// CostBreakdown itemizes resale costs in the pipeline's base currency.
// TotalCost always equals the sum of the components; components are kept at
// full precision and rounded only at the presentation boundary.
type CostBreakdown struct {
	ShippingCost    decimal.Decimal
	TaxesAndDuties  decimal.Decimal
	MarketplaceFees decimal.Decimal
	OtherCosts      decimal.Decimal
	TotalCost       decimal.Decimal
	Currency        string
}

// Sum recomputes the component total. Stores and presenters use it to keep
// the TotalCost invariant honest.
func (b CostBreakdown) Sum() decimal.Decimal {
	return b.ShippingCost.Add(b.TaxesAndDuties).Add(b.MarketplaceFees).Add(b.OtherCosts)
}

// ProfitabilityEvaluation is the full per-candidate decision record.
// ProfitMargin = EstimatedProfit / SalePrice when SalePrice > 0; evaluations
// without a positive sale price are forced to discard.
type ProfitabilityEvaluation struct {
	Candidate       *NormalizedCandidate
	Decision        Decision
	Reason          string
	Marketplace     Marketplace // winning marketplace, empty on no-data discards
	SalePrice       decimal.Decimal
	CostBreakdown   CostBreakdown
	EstimatedProfit decimal.Decimal
	ProfitMargin    float64 // unbounded below, publish requires >= minMargin
	ROIPercentage   float64 // ProfitMargin * 100
	TrendScore      float64 // [0,1], 0.5 = neutral
	EvaluatedAt     time.Time
}

// Publishable reports whether the evaluation cleared the given margin floor.
func (e *ProfitabilityEvaluation) Publishable(minMargin float64) bool {
	return e.Decision == DecisionPublish && e.ProfitMargin >= minMargin
}
