package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"dropscout/internal/domain"
	"dropscout/internal/idhash"
	"dropscout/internal/storage"
)

// OpportunityStore implements storage.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *Pool
}

// NewOpportunityStore creates a new OpportunityStore.
func NewOpportunityStore(pool *Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

var _ storage.OpportunityStore = (*OpportunityStore)(nil)

const opportunityColumns = `
	opportunity_id, user_id, source_id, title, source_url, image_url,
	marketplace, target_marketplaces, region,
	base_cost, sale_price, estimated_profit, profit_margin, roi_percentage,
	trend_score, confidence_score,
	shipping_cost, taxes_and_duties, marketplace_fees, other_costs, total_cost,
	fees_considered, forced_validation, publish_outcome, generated_at, created_at
`

// Upsert inserts or updates the opportunity on its (user_id, source_id)
// natural key and returns the row id. Safe to retry.
func (s *OpportunityStore) Upsert(ctx context.Context, o *domain.Opportunity) (string, error) {
	if o == nil || o.UserID == "" || o.SourceID == "" {
		return "", storage.ErrInvalidInput
	}

	id := o.OpportunityID
	if id == "" {
		id = idhash.ComputeOpportunityID(o.UserID, o.SourceID)
	}

	query := `
		INSERT INTO opportunities (
			opportunity_id, user_id, source_id, title, source_url, image_url,
			marketplace, target_marketplaces, region,
			base_cost, sale_price, estimated_profit, profit_margin, roi_percentage,
			trend_score, confidence_score,
			shipping_cost, taxes_and_duties, marketplace_fees, other_costs, total_cost,
			fees_considered, forced_validation, publish_outcome, generated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)
		ON CONFLICT (user_id, source_id) DO UPDATE SET
			title = EXCLUDED.title,
			source_url = EXCLUDED.source_url,
			image_url = EXCLUDED.image_url,
			marketplace = EXCLUDED.marketplace,
			target_marketplaces = EXCLUDED.target_marketplaces,
			region = EXCLUDED.region,
			base_cost = EXCLUDED.base_cost,
			sale_price = EXCLUDED.sale_price,
			estimated_profit = EXCLUDED.estimated_profit,
			profit_margin = EXCLUDED.profit_margin,
			roi_percentage = EXCLUDED.roi_percentage,
			trend_score = EXCLUDED.trend_score,
			confidence_score = EXCLUDED.confidence_score,
			shipping_cost = EXCLUDED.shipping_cost,
			taxes_and_duties = EXCLUDED.taxes_and_duties,
			marketplace_fees = EXCLUDED.marketplace_fees,
			other_costs = EXCLUDED.other_costs,
			total_cost = EXCLUDED.total_cost,
			fees_considered = EXCLUDED.fees_considered,
			forced_validation = EXCLUDED.forced_validation,
			generated_at = EXCLUDED.generated_at,
			updated_at = now()
		RETURNING opportunity_id
	`

	marketplaces := make([]string, len(o.TargetMarketplaces))
	for i, mp := range o.TargetMarketplaces {
		marketplaces[i] = string(mp)
	}
	outcome := o.PublishOutcome
	if outcome == "" {
		outcome = domain.PublishPending
	}

	var returned string
	err := s.pool.QueryRow(ctx, query,
		id, o.UserID, o.SourceID, o.Title, o.SourceURL, o.ImageURL,
		string(o.Marketplace), marketplaces, string(o.Region),
		o.BaseCost, o.SalePrice, o.EstimatedProfit, o.ProfitMargin, o.ROIPercentage,
		o.TrendScore, o.ConfidenceScore,
		o.CostBreakdown.ShippingCost, o.CostBreakdown.TaxesAndDuties,
		o.CostBreakdown.MarketplaceFees, o.CostBreakdown.OtherCosts, o.CostBreakdown.TotalCost,
		o.FeesConsidered, o.ForcedValidation, string(outcome), o.GeneratedAt,
	).Scan(&returned)
	if err != nil {
		return "", fmt.Errorf("upsert opportunity: %w", err)
	}
	return returned, nil
}

// GetByUserAndSource retrieves an opportunity by its natural key.
func (s *OpportunityStore) GetByUserAndSource(ctx context.Context, userID, sourceID string) (*domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + `
		FROM opportunities
		WHERE user_id = $1 AND source_id = $2`

	row := s.pool.QueryRow(ctx, query, userID, sourceID)
	o, err := scanOpportunity(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return o, nil
}

// ListByUser retrieves all opportunities for a user, newest first.
func (s *OpportunityStore) ListByUser(ctx context.Context, userID string) ([]*domain.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + `
		FROM opportunities
		WHERE user_id = $1
		ORDER BY generated_at DESC, opportunity_id ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var result []*domain.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

// SetPublishOutcome records the publishing collaborator's result.
func (s *OpportunityStore) SetPublishOutcome(ctx context.Context, opportunityID string, outcome domain.PublishOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE opportunities SET publish_outcome = $2, updated_at = now() WHERE opportunity_id = $1`,
		opportunityID, string(outcome))
	if err != nil {
		return fmt.Errorf("set publish outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanOpportunity(row pgx.Row) (*domain.Opportunity, error) {
	var (
		o            domain.Opportunity
		marketplace  string
		marketplaces []string
		region       string
		outcome      string
	)
	err := row.Scan(
		&o.OpportunityID, &o.UserID, &o.SourceID, &o.Title, &o.SourceURL, &o.ImageURL,
		&marketplace, &marketplaces, &region,
		&o.BaseCost, &o.SalePrice, &o.EstimatedProfit, &o.ProfitMargin, &o.ROIPercentage,
		&o.TrendScore, &o.ConfidenceScore,
		&o.CostBreakdown.ShippingCost, &o.CostBreakdown.TaxesAndDuties,
		&o.CostBreakdown.MarketplaceFees, &o.CostBreakdown.OtherCosts, &o.CostBreakdown.TotalCost,
		&o.FeesConsidered, &o.ForcedValidation, &outcome, &o.GeneratedAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Marketplace = domain.Marketplace(marketplace)
	o.Region = domain.Region(region)
	o.PublishOutcome = domain.PublishOutcome(outcome)
	o.TargetMarketplaces = make([]domain.Marketplace, len(marketplaces))
	for i, mp := range marketplaces {
		o.TargetMarketplaces[i] = domain.Marketplace(mp)
	}
	o.CostBreakdown.Currency = "USD"
	return &o, nil
}
