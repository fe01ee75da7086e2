// Package costmodel converts a base cost and target sale price into a fee
// breakdown and margin for one marketplace/region. Pure computation, no
// external calls; all math runs at full decimal precision and rounding
// happens only at the presentation boundary.
package costmodel

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dropscout/internal/domain"
)

// BaseCurrency is the currency all margin math is expressed in.
const BaseCurrency = "USD"

// Input describes one margin computation.
type Input struct {
	Marketplace    domain.Marketplace
	Region         domain.Region
	SalePrice      decimal.Decimal // in TargetCurrency
	CostPrice      decimal.Decimal // acquisition cost, in SourceCurrency
	SourceCurrency string
	TargetCurrency string
	Extras         Extras
}

// Extras carries per-evaluation cost overrides.
type Extras struct {
	ShippingOverride *decimal.Decimal // replaces the schedule's shipping estimate
	OtherCosts       decimal.Decimal  // packaging, handling, ad spend
}

// Result pairs the breakdown with the margin it implies.
type Result struct {
	SalePrice       decimal.Decimal // converted to the base currency
	CostPrice       decimal.Decimal // converted to the base currency
	Breakdown       domain.CostBreakdown
	EstimatedProfit decimal.Decimal
	Margin          float64 // (sale - cost - totalCost) / sale
}

// Model computes fee breakdowns and margins.
type Model struct {
	schedules *Schedules
	fx        *Converter
}

// New creates a cost model. Nil arguments fall back to the bundled
// schedules and rates.
func New(schedules *Schedules, fx *Converter) *Model {
	if schedules == nil {
		schedules = DefaultSchedules()
	}
	if fx == nil {
		fx = NewDefaultConverter()
	}
	return &Model{schedules: schedules, fx: fx}
}

// Calculate produces the cost breakdown and margin for one candidate/
// marketplace pairing. Sale price must be positive; margin is unbounded
// below and can go negative.
func (m *Model) Calculate(in Input) (*Result, error) {
	if !in.SalePrice.IsPositive() {
		return nil, fmt.Errorf("sale price must be positive, got %s", in.SalePrice)
	}

	sale, err := m.fx.Convert(in.SalePrice, in.TargetCurrency, BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("convert sale price: %w", err)
	}
	cost, err := m.fx.Convert(in.CostPrice, in.SourceCurrency, BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("convert cost price: %w", err)
	}

	fs, err := m.schedules.Lookup(in.Marketplace, in.Region)
	if err != nil {
		return nil, err
	}

	fees := sale.Mul(fs.ReferralRate).
		Add(fs.FixedFee).
		Add(sale.Mul(fs.PaymentRate)).
		Add(fs.PaymentFixed)
	taxes := sale.Mul(fs.TaxRate).Add(cost.Mul(fs.ImportDutyRate))

	shipping := fs.ShippingEstimate
	if in.Extras.ShippingOverride != nil {
		shipping = *in.Extras.ShippingOverride
	}

	breakdown := domain.CostBreakdown{
		ShippingCost:    shipping,
		TaxesAndDuties:  taxes,
		MarketplaceFees: fees,
		OtherCosts:      in.Extras.OtherCosts,
		Currency:        BaseCurrency,
	}
	breakdown.TotalCost = breakdown.Sum()

	profit := sale.Sub(cost).Sub(breakdown.TotalCost)
	margin, _ := profit.Div(sale).Float64()

	return &Result{
		SalePrice:       sale,
		CostPrice:       cost,
		Breakdown:       breakdown,
		EstimatedProfit: profit,
		Margin:          margin,
	}, nil
}

// Round2 rounds a monetary amount for presentation. Never applied
// mid-computation.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
