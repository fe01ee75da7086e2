package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dropscout/internal/domain"
)

func TestConfigResolve_RequestOverrides(t *testing.T) {
	cfg := DefaultConfig()

	forced := true
	got := cfg.resolve(Request{
		Query:            "phone case",
		MinMargin:        0.30,
		ForcedMinMargin:  0.10,
		MaxItems:         5,
		Marketplaces:     []domain.Marketplace{domain.MarketplaceEtsy},
		Region:           domain.RegionEU,
		ForcedValidation: &forced,
	})

	assert.Equal(t, 0.30, got.MinMargin)
	assert.Equal(t, 0.10, got.ForcedMinMargin)
	assert.Equal(t, 5, got.MaxItems)
	assert.Equal(t, []domain.Marketplace{domain.MarketplaceEtsy}, got.Marketplaces)
	assert.Equal(t, domain.RegionEU, got.Region)
	assert.True(t, got.ForcedValidation)
}

func TestConfigResolve_ZeroValuesKeepConfig(t *testing.T) {
	cfg := Config{
		MinMargin:        0.25,
		ForcedMinMargin:  0.08,
		MaxItems:         2,
		ForcedValidation: true,
	}

	got := cfg.resolve(Request{Query: "phone case"})

	assert.Equal(t, 0.25, got.MinMargin)
	assert.Equal(t, 0.08, got.ForcedMinMargin)
	assert.Equal(t, 2, got.MaxItems)
	assert.True(t, got.ForcedValidation)
	assert.Equal(t, domain.DefaultMarketplaces, got.Marketplaces, "holes fall back to defaults")
	assert.Equal(t, domain.RegionUS, got.Region)
}

func TestConfigResolve_FillsDefaults(t *testing.T) {
	got := Config{}.resolve(Request{Query: "phone case"})
	def := DefaultConfig()

	assert.Equal(t, def.MinMargin, got.MinMargin)
	assert.Equal(t, def.ForcedMinMargin, got.ForcedMinMargin)
	assert.Equal(t, def.MaxItems, got.MaxItems)
	assert.Equal(t, def.DefaultCurrency, got.DefaultCurrency)
}
