package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is a point-in-time read of comparable listings on one
// target marketplace.
type MarketSnapshot struct {
	Marketplace      Marketplace     `json:"marketplace"`
	Region           Region          `json:"region"`
	ListingsFound    int             `json:"listingsFound"`
	AveragePrice     decimal.Decimal `json:"averagePrice"`
	MedianPrice      decimal.Decimal `json:"medianPrice"`
	CompetitivePrice decimal.Decimal `json:"competitivePrice"`
	Currency         string          `json:"currency"`
	ObservedAt       time.Time       `json:"observedAt"`
}

// Valid reports whether the snapshot may serve as a basis for a decision.
// A snapshot with zero listings or a non-positive competitive price is
// "no data", never "zero price".
func (s *MarketSnapshot) Valid() bool {
	return s != nil && s.ListingsFound > 0 && s.CompetitivePrice.IsPositive()
}
