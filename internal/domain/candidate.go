package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxTitleLength is the canonical title limit; longer titles are truncated
// at the normalization boundary.
const MaxTitleLength = 200

// RawCandidate is a source-specific record produced by one acquisition
// strategy and consumed immediately by the normalizer. Price may arrive as a
// numeric value (affiliate API) or as locale-formatted text (scrapers);
// the normalizer resolves whichever is present.
type RawCandidate struct {
	SourceID  string          // source-assigned product identifier, may be empty
	Title     string          //
	Price     decimal.Decimal // numeric price when the upstream provides one
	PriceText string          // raw price text when scraped, e.g. "US $1,299.99"
	Currency  string          // ISO code, may be empty
	SourceURL string          //
	ImageURL  string          // primary image
	ImageURLs []string        // additional images
	Strategy  string          // name of the strategy that produced the record
}

// NormalizedCandidate is the canonical candidate shape. Created once per
// unique source ID within a pipeline run; all downstream code operates on
// this shape only.
type NormalizedCandidate struct {
	SourceID      string
	Title         string
	BasePrice     decimal.Decimal // acquisition cost, always > 0
	Currency      string          // ISO code of BasePrice
	SourceURL     string
	ImageURL      string
	ImageURLs     []string
	SourceKeyword string // ladder rung keyword that surfaced the candidate
	Strategy      string
	PriorityHint  int // lower = earlier in discovery order
	DiscoveredAt  time.Time
}

// HasImage reports whether the candidate carries at least one image. Used by
// the forced-validation cheapest-candidate fallback.
func (c *NormalizedCandidate) HasImage() bool {
	return c.ImageURL != "" || len(c.ImageURLs) > 0
}
