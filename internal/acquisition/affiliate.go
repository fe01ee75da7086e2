package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"dropscout/internal/domain"
)

// StrategyAffiliate is the name of the affiliate API strategy.
const StrategyAffiliate = "affiliate"

const defaultAffiliateTimeout = 20 * time.Second

// AffiliateClient sources candidates from the supplier's affiliate search
// API. First strategy in the chain: cheapest and most structured upstream.
type AffiliateClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	enabled bool
}

// AffiliateOption configures AffiliateClient.
type AffiliateOption func(*AffiliateClient)

// WithAffiliateHTTPClient sets a custom http.Client.
func WithAffiliateHTTPClient(client *http.Client) AffiliateOption {
	return func(c *AffiliateClient) { c.client = client }
}

// WithAffiliateTimeout sets the HTTP client timeout.
func WithAffiliateTimeout(d time.Duration) AffiliateOption {
	return func(c *AffiliateClient) { c.client.Timeout = d }
}

// NewAffiliateClient creates the affiliate API strategy. An empty API key
// disables the strategy rather than failing at call time.
func NewAffiliateClient(baseURL, apiKey string, opts ...AffiliateOption) *AffiliateClient {
	c := &AffiliateClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultAffiliateTimeout},
		enabled: baseURL != "" && apiKey != "",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the strategy in chain diagnostics.
func (c *AffiliateClient) Name() string { return StrategyAffiliate }

// Enabled reports whether the strategy is configured.
func (c *AffiliateClient) Enabled() bool { return c.enabled }

// affiliateProduct mirrors the affiliate API's product record.
type affiliateProduct struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	URL      string          `json:"url"`
	ImageURL string          `json:"imageUrl"`
	Images   []string        `json:"images"`
}

type affiliateSearchResponse struct {
	Products     []affiliateProduct `json:"products"`
	TotalResults int                `json:"totalResults"`
}

// upstreamError is the error envelope shared by the affiliate API and the
// scraper bridge.
type upstreamError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Token        string `json:"token"`
	ChallengeURL string `json:"challengeUrl"`
	ExpiresAt    string `json:"expiresAt"`
}

// Upstream error codes.
const (
	codeCaptchaRequired = "CAPTCHA_REQUIRED"
	codeBridgeDisabled  = "BRIDGE_DISABLED"
)

// Search queries the affiliate API. Empty product list is "no results",
// not an error.
func (c *AffiliateClient) Search(ctx context.Context, req SearchRequest) ([]domain.RawCandidate, error) {
	endpoint, err := buildSearchURL(c.baseURL, req)
	if err != nil {
		return nil, fmt.Errorf("build affiliate url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create affiliate request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Op: "affiliate search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "affiliate read response", Err: err}
	}

	if err := decodeUpstreamStatus("affiliate", resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed affiliateSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode affiliate response: %w", err)
	}

	candidates := make([]domain.RawCandidate, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		candidates = append(candidates, domain.RawCandidate{
			SourceID:  p.ID,
			Title:     p.Title,
			Price:     p.Price,
			Currency:  p.Currency,
			SourceURL: p.URL,
			ImageURL:  p.ImageURL,
			ImageURLs: p.Images,
			Strategy:  StrategyAffiliate,
		})
	}
	return candidates, nil
}

func buildSearchURL(baseURL string, req SearchRequest) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	u = u.JoinPath("search")

	q := u.Query()
	q.Set("q", req.Query())
	if req.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(req.PageSize))
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Category != "" {
		q.Set("category", req.Category)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// decodeUpstreamStatus maps non-200 responses onto the acquisition error
// taxonomy: CAPTCHA envelopes become ManualAuthError, 429/5xx become
// TransientError, BRIDGE_DISABLED becomes its sentinel, everything else is a
// plain strategy failure.
func decodeUpstreamStatus(op string, status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var envelope upstreamError
	_ = json.Unmarshal(body, &envelope) // absent/garbled envelopes fall back to status mapping

	switch envelope.Code {
	case codeCaptchaRequired:
		expires, _ := time.Parse(time.RFC3339, envelope.ExpiresAt)
		return &ManualAuthError{
			Token:        envelope.Token,
			ChallengeURL: envelope.ChallengeURL,
			ExpiresAt:    expires,
		}
	case codeBridgeDisabled:
		return ErrBridgeDisabled
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return &TransientError{
			Op:  op,
			Err: fmt.Errorf("status %d: %s", status, string(body)),
		}
	}

	return fmt.Errorf("%s: unexpected status %d: %s", op, status, string(body))
}
