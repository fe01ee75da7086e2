// Package market reads comparable-listing statistics from target
// marketplaces and assembles per-marketplace snapshots for evaluation.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"dropscout/internal/domain"
)

// Lookup queries one marketplace for listings comparable to a candidate
// title. Implementations must be safe for concurrent use.
type Lookup interface {
	FindComparableListings(ctx context.Context, title string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error)
}

// HTTPLookup implements Lookup against the comparable-listings service.
type HTTPLookup struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPLookup creates a lookup client. A zero timeout defaults to 15s.
func NewHTTPLookup(baseURL, apiKey string, timeout time.Duration) *HTTPLookup {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPLookup{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

var _ Lookup = (*HTTPLookup)(nil)

type compsResponse struct {
	ListingsFound    int             `json:"listingsFound"`
	AveragePrice     decimal.Decimal `json:"averagePrice"`
	MedianPrice      decimal.Decimal `json:"medianPrice"`
	CompetitivePrice decimal.Decimal `json:"competitivePrice"`
	Currency         string          `json:"currency"`
}

// FindComparableListings fetches price statistics for one marketplace.
func (l *HTTPLookup) FindComparableListings(ctx context.Context, title string, mp domain.Marketplace, region domain.Region) (*domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("title", title)
	params.Set("marketplace", string(mp))
	params.Set("region", string(region))

	endpoint := l.baseURL + "/comps?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build comps request: %w", err)
	}
	if l.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+l.apiKey)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("comps lookup %s: %w", mp, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read comps response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("comps lookup %s: status %d", mp, resp.StatusCode)
	}

	var parsed compsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode comps response: %w", err)
	}

	currency := parsed.Currency
	if currency == "" {
		currency = "USD"
	}
	return &domain.MarketSnapshot{
		Marketplace:      mp,
		Region:           region,
		ListingsFound:    parsed.ListingsFound,
		AveragePrice:     parsed.AveragePrice,
		MedianPrice:      parsed.MedianPrice,
		CompetitivePrice: parsed.CompetitivePrice,
		Currency:         currency,
		ObservedAt:       time.Now().UTC(),
	}, nil
}

// TitleKey collapses a candidate title into a stable lookup key: lowercase,
// non-alphanumeric runs folded to single hyphens. Used for cache keys and
// history grouping so near-identical titles share a bucket.
func TitleKey(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
