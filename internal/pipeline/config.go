// Package pipeline orchestrates one discovery run: acquisition across the
// keyword ladder, normalization, market analysis, profitability evaluation
// and the final selection with its forced-validation fallback.
package pipeline

import (
	"time"

	"dropscout/internal/domain"
)

// Config carries per-run thresholds and scope. The caller supplies it
// explicitly; nothing here is read from ambient globals.
type Config struct {
	// MinMargin is the normal-mode publish threshold.
	MinMargin float64
	// ForcedMinMargin is the relaxed absolute floor used in forced mode.
	ForcedMinMargin float64
	// ForcedValidation enables the degraded acceptance path that
	// guarantees forward progress for smoke-test runs.
	ForcedValidation bool
	// MaxItems caps how many opportunities one run may accept.
	MaxItems int
	// Marketplaces is the evaluation order; earlier entries win margin ties.
	Marketplaces []domain.Marketplace
	// Region selects fee schedules and comp lookups.
	Region domain.Region
	// RunBudget bounds the whole run. Zero means no budget.
	RunBudget time.Duration
	// DefaultCurrency is assumed for candidates without a detectable one.
	DefaultCurrency string
}

// DefaultConfig returns the stock run configuration.
func DefaultConfig() Config {
	return Config{
		MinMargin:       0.20,
		ForcedMinMargin: 0.05,
		MaxItems:        3,
		Marketplaces:    domain.DefaultMarketplaces,
		Region:          domain.RegionUS,
		RunBudget:       2 * time.Minute,
		DefaultCurrency: "USD",
	}
}

// Request describes one discovery run.
type Request struct {
	Query              string
	Category           string
	HistoricalKeywords []string // high-confidence keywords for the first rung

	// Optional per-request overrides; zero values fall back to Config.
	MaxItems         int
	Marketplaces     []domain.Marketplace
	Region           domain.Region
	MinMargin        float64
	ForcedMinMargin  float64
	ForcedValidation *bool
}

// resolve merges request overrides over the base config and fills holes
// with defaults.
func (c Config) resolve(req Request) Config {
	def := DefaultConfig()

	if req.MinMargin > 0 {
		c.MinMargin = req.MinMargin
	}
	if req.ForcedMinMargin > 0 {
		c.ForcedMinMargin = req.ForcedMinMargin
	}
	if req.MaxItems > 0 {
		c.MaxItems = req.MaxItems
	}
	if len(req.Marketplaces) > 0 {
		c.Marketplaces = req.Marketplaces
	}
	if req.Region != "" {
		c.Region = req.Region
	}
	if req.ForcedValidation != nil {
		c.ForcedValidation = *req.ForcedValidation
	}

	if c.MinMargin <= 0 {
		c.MinMargin = def.MinMargin
	}
	if c.ForcedMinMargin <= 0 {
		c.ForcedMinMargin = def.ForcedMinMargin
	}
	if c.MaxItems <= 0 {
		c.MaxItems = def.MaxItems
	}
	if len(c.Marketplaces) == 0 {
		c.Marketplaces = def.Marketplaces
	}
	if c.Region == "" {
		c.Region = def.Region
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = def.DefaultCurrency
	}
	return c
}
