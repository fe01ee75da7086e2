package costmodel

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"dropscout/internal/domain"
)

// FeeSchedule describes the resale cost structure of one marketplace/region.
// Percentages are expressed as fractions of the sale price (0.1325 = 13.25%).
type FeeSchedule struct {
	Marketplace      domain.Marketplace `yaml:"marketplace"`
	Region           domain.Region      `yaml:"region"`
	ReferralRate     decimal.Decimal    `yaml:"referralRate"`     // marketplace commission on sale price
	FixedFee         decimal.Decimal    `yaml:"fixedFee"`         // flat per-order marketplace fee
	PaymentRate      decimal.Decimal    `yaml:"paymentRate"`      // payment processing, fraction of sale price
	PaymentFixed     decimal.Decimal    `yaml:"paymentFixed"`     // flat payment processing fee
	TaxRate          decimal.Decimal    `yaml:"taxRate"`          // sales tax / VAT collected on sale price
	ImportDutyRate   decimal.Decimal    `yaml:"importDutyRate"`   // duties on the acquisition cost
	ShippingEstimate decimal.Decimal    `yaml:"shippingEstimate"` // flat shipping estimate, base currency
}

// Schedules resolves fee schedules by marketplace and region. A schedule
// registered with an empty region acts as the marketplace-wide fallback.
type Schedules struct {
	byKey map[string]FeeSchedule
}

func scheduleKey(mp domain.Marketplace, region domain.Region) string {
	return string(mp) + "|" + string(region)
}

// NewSchedules indexes the given schedules.
func NewSchedules(schedules []FeeSchedule) *Schedules {
	s := &Schedules{byKey: make(map[string]FeeSchedule, len(schedules))}
	for _, fs := range schedules {
		s.byKey[scheduleKey(fs.Marketplace, fs.Region)] = fs
	}
	return s
}

// DefaultSchedules returns the bundled schedules for the supported
// marketplaces. Rates approximate published fee tables; operators override
// them via a schedule file.
func DefaultSchedules() *Schedules {
	d := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }
	return NewSchedules([]FeeSchedule{
		{
			Marketplace:  domain.MarketplaceEbay,
			ReferralRate: d("0.1325"), FixedFee: d("0.30"),
			PaymentRate: d("0.029"), PaymentFixed: d("0.25"),
		},
		{
			Marketplace:  domain.MarketplaceAmazon,
			ReferralRate: d("0.15"),
			PaymentRate:  d("0.029"), PaymentFixed: d("0.30"),
		},
		{
			Marketplace:  domain.MarketplaceEtsy,
			ReferralRate: d("0.065"), FixedFee: d("0.20"),
			PaymentRate: d("0.03"), PaymentFixed: d("0.25"),
		},
		{
			Marketplace:  domain.MarketplaceMercado,
			Region:       domain.RegionLA,
			ReferralRate: d("0.13"),
			PaymentRate:  d("0.0399"),
		},
	})
}

// Lookup resolves a schedule, preferring an exact region match over the
// marketplace-wide fallback.
func (s *Schedules) Lookup(mp domain.Marketplace, region domain.Region) (FeeSchedule, error) {
	if fs, ok := s.byKey[scheduleKey(mp, region)]; ok {
		return fs, nil
	}
	if fs, ok := s.byKey[scheduleKey(mp, "")]; ok {
		return fs, nil
	}
	return FeeSchedule{}, fmt.Errorf("no fee schedule for %s/%s", mp, region)
}

// LoadSchedules reads a YAML schedule file and merges it over the defaults.
func LoadSchedules(path string) (*Schedules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule file: %w", err)
	}

	var file struct {
		Schedules []FeeSchedule `yaml:"schedules"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schedule file: %w", err)
	}

	merged := DefaultSchedules()
	for _, fs := range file.Schedules {
		merged.byKey[scheduleKey(fs.Marketplace, fs.Region)] = fs
	}
	return merged, nil
}
