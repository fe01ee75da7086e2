package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PublishOutcome records what the downstream publishing collaborator did
// with an accepted opportunity.
type PublishOutcome string

const (
	PublishPending   PublishOutcome = "pending"
	PublishSucceeded PublishOutcome = "published"
	PublishFailed    PublishOutcome = "failed"
)

// Opportunity is the externally persisted subset of a profitability
// evaluation. Owned by the requesting user's pipeline run; idempotent on
// (UserID, SourceID).
type Opportunity struct {
	OpportunityID      string // deterministic hash of (user_id, source_id)
	UserID             string
	SourceID           string
	Title              string
	SourceURL          string
	ImageURL           string
	Marketplace        Marketplace // winning marketplace
	TargetMarketplaces []Marketplace
	Region             Region
	BaseCost           decimal.Decimal
	SalePrice          decimal.Decimal
	EstimatedProfit    decimal.Decimal
	ProfitMargin       float64
	ROIPercentage      float64
	TrendScore         float64
	ConfidenceScore    float64
	CostBreakdown      CostBreakdown
	FeesConsidered     bool
	ForcedValidation   bool // relaxed acceptance, distinguishable downstream
	PublishOutcome     PublishOutcome
	GeneratedAt        time.Time
	CreatedAt          time.Time
}
