package costmodel

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Converter converts amounts between currencies using a static rate table
// quoted against USD. Rates are point-in-time inputs; refreshing them is the
// caller's concern.
type Converter struct {
	rates map[string]decimal.Decimal // currency -> USD per unit
}

// DefaultRates are the bundled fallback rates.
var DefaultRates = map[string]string{
	"USD": "1",
	"EUR": "1.08",
	"GBP": "1.27",
	"CNY": "0.14",
	"MXN": "0.058",
}

// NewConverter builds a converter from currency -> USD-per-unit rates.
// Rates must be positive.
func NewConverter(rates map[string]string) (*Converter, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for code, raw := range rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse rate for %s: %w", code, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", code, rate)
		}
		parsed[strings.ToUpper(code)] = rate
	}
	return &Converter{rates: parsed}, nil
}

// NewDefaultConverter builds a converter from the bundled rates.
func NewDefaultConverter() *Converter {
	c, err := NewConverter(DefaultRates)
	if err != nil {
		panic(err) // bundled rates are static and known-good
	}
	return c
}

// Convert converts amount from one currency to another at full precision.
func (c *Converter) Convert(amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" {
		from = "USD"
	}
	if to == "" {
		to = "USD"
	}
	if from == to {
		return amount, nil
	}

	fromRate, ok := c.rates[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", to)
	}

	return amount.Mul(fromRate).Div(toRate), nil
}
