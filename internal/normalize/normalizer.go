// Package normalize converts heterogeneous raw candidate records into the
// canonical shape and de-duplicates them by source product identifier
// within a single pipeline run.
package normalize

import (
	"strings"
	"time"
	"unicode/utf8"

	"dropscout/internal/domain"
	"dropscout/internal/idhash"
)

// DropReason classifies why a raw candidate did not survive normalization.
type DropReason string

const (
	DropEmptyTitle       DropReason = "empty_title"
	DropNonPositivePrice DropReason = "non_positive_price"
	DropDuplicate        DropReason = "duplicate"
	DropNoIdentifier     DropReason = "no_identifier"
)

// Stats counts normalization outcomes for run diagnostics.
type Stats struct {
	Accepted int
	Dropped  map[DropReason]int
}

// Normalizer owns the per-run de-duplication set. Not safe for concurrent
// use; each pipeline run creates its own instance and discards it at the
// end of the run.
type Normalizer struct {
	defaultCurrency string
	seen            map[string]struct{}
	stats           Stats
	clock           func() time.Time
}

// New creates a normalizer for one pipeline run.
func New(defaultCurrency string) *Normalizer {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Normalizer{
		defaultCurrency: defaultCurrency,
		seen:            make(map[string]struct{}),
		stats:           Stats{Dropped: make(map[DropReason]int)},
		clock:           time.Now,
	}
}

// Normalize converts one raw record. Returns nil when the candidate is
// dropped (invalid or duplicate); a drop is counted, never an error.
func (n *Normalizer) Normalize(raw domain.RawCandidate, sourceKeyword string) *domain.NormalizedCandidate {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return n.drop(DropEmptyTitle)
	}
	// The limit is in characters, not bytes; byte slicing could split a
	// multibyte rune and feed invalid UTF-8 to the stores.
	if utf8.RuneCountInString(title) > domain.MaxTitleLength {
		title = string([]rune(title)[:domain.MaxTitleLength])
	}

	price := raw.Price
	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if !price.IsPositive() {
		price = ParsePrice(raw.PriceText)
		if currency == "" {
			currency = DetectCurrency(raw.PriceText)
		}
	}
	if !price.IsPositive() {
		return n.drop(DropNonPositivePrice)
	}
	if currency == "" {
		currency = n.defaultCurrency
	}

	sourceID := strings.TrimSpace(raw.SourceID)
	if sourceID == "" {
		if raw.SourceURL == "" {
			return n.drop(DropNoIdentifier)
		}
		sourceID = idhash.DeriveSourceID(raw.SourceURL)
	}

	if _, dup := n.seen[sourceID]; dup {
		return n.drop(DropDuplicate)
	}
	n.seen[sourceID] = struct{}{}

	n.stats.Accepted++
	return &domain.NormalizedCandidate{
		SourceID:      sourceID,
		Title:         title,
		BasePrice:     price,
		Currency:      currency,
		SourceURL:     raw.SourceURL,
		ImageURL:      raw.ImageURL,
		ImageURLs:     raw.ImageURLs,
		SourceKeyword: sourceKeyword,
		Strategy:      raw.Strategy,
		PriorityHint:  n.stats.Accepted - 1,
		DiscoveredAt:  n.clock().UTC(),
	}
}

// NormalizeAll runs Normalize over a batch, preserving discovery order.
func (n *Normalizer) NormalizeAll(raw []domain.RawCandidate, sourceKeyword string) []*domain.NormalizedCandidate {
	out := make([]*domain.NormalizedCandidate, 0, len(raw))
	for _, rc := range raw {
		if c := n.Normalize(rc, sourceKeyword); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Stats returns the running outcome counts.
func (n *Normalizer) Stats() Stats {
	return n.stats
}

// DroppedTotal sums all drop reasons.
func (s Stats) DroppedTotal() int {
	total := 0
	for _, c := range s.Dropped {
		total += c
	}
	return total
}

func (n *Normalizer) drop(reason DropReason) *domain.NormalizedCandidate {
	n.stats.Dropped[reason]++
	return nil
}
