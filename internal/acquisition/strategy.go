// Package acquisition sources raw product candidates from unreliable,
// rate-limited upstreams through an ordered chain of fallback strategies.
package acquisition

import (
	"context"

	"dropscout/internal/domain"
)

// SearchRequest describes one rung of the keyword/category fallback ladder.
type SearchRequest struct {
	Keywords   []string
	Category   string
	PageSize   int
	Sort       string
	UseFilters bool // apply strict shipping/price checks on this rung
}

// Query joins the rung keywords into the upstream query string.
func (r SearchRequest) Query() string {
	q := ""
	for i, kw := range r.Keywords {
		if i > 0 {
			q += " "
		}
		q += kw
	}
	return q
}

// Strategy is one interchangeable product source. Implementations return an
// empty slice on "no results" (not an error), a *ManualAuthError when the
// upstream demands human verification, and a *TransientError for retryable
// transport conditions.
type Strategy interface {
	Name() string
	Enabled() bool
	Search(ctx context.Context, req SearchRequest) ([]domain.RawCandidate, error)
}

// BuildLadder constructs the keyword fallback ladder for a query. Rung
// order: historical high-confidence keywords with strict filters, broad
// category search, then a minimal single-keyword rung with filters off so a
// degraded upstream can still produce something.
func BuildLadder(query, category string, historical []string) []SearchRequest {
	var ladder []SearchRequest

	if len(historical) > 0 {
		ladder = append(ladder, SearchRequest{
			Keywords:   historical,
			Category:   category,
			PageSize:   20,
			Sort:       "orders_desc",
			UseFilters: true,
		})
	}

	ladder = append(ladder, SearchRequest{
		Keywords:   []string{query},
		Category:   category,
		PageSize:   20,
		Sort:       "orders_desc",
		UseFilters: true,
	})

	if first := firstKeyword(query); first != "" && first != query {
		ladder = append(ladder, SearchRequest{
			Keywords: []string{first},
			PageSize: 10,
		})
	}

	return ladder
}

func firstKeyword(query string) string {
	for i := 0; i < len(query); i++ {
		if query[i] == ' ' {
			return query[:i]
		}
	}
	return query
}
