package acquisition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dropscout/internal/domain"
)

// StrategyBridge is the name of the scraper bridge strategy.
const StrategyBridge = "scraper-bridge"

const defaultBridgeTimeout = 45 * time.Second

// BridgeClient talks to the headless scraper bridge service. Second
// strategy in the chain: slower than the affiliate API but survives API
// quota exhaustion. The bridge fronts an anti-bot protected upstream and may
// answer with a CAPTCHA envelope that requires human resolution.
type BridgeClient struct {
	baseURL string
	client  *http.Client
	enabled bool
}

// NewBridgeClient creates the scraper bridge strategy.
func NewBridgeClient(baseURL string, enabled bool, client *http.Client) *BridgeClient {
	if client == nil {
		client = &http.Client{Timeout: defaultBridgeTimeout}
	}
	return &BridgeClient{
		baseURL: baseURL,
		client:  client,
		enabled: enabled && baseURL != "",
	}
}

// Name identifies the strategy in chain diagnostics.
func (c *BridgeClient) Name() string { return StrategyBridge }

// Enabled reports whether the strategy is configured.
func (c *BridgeClient) Enabled() bool { return c.enabled }

type bridgeSearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
	Sort     string `json:"sort,omitempty"`
}

type bridgeListing struct {
	ProductID string   `json:"productId"`
	Title     string   `json:"title"`
	PriceText string   `json:"priceText"`
	Currency  string   `json:"currency"`
	URL       string   `json:"url"`
	Images    []string `json:"images"`
}

type bridgeSearchResponse struct {
	Products     []bridgeListing `json:"products"`
	TotalResults int             `json:"totalResults"`
}

// Search posts the query to the bridge. Scraped prices arrive as text and
// are resolved by the normalizer.
func (c *BridgeClient) Search(ctx context.Context, req SearchRequest) ([]domain.RawCandidate, error) {
	payload, err := json.Marshal(bridgeSearchRequest{
		Query:    req.Query(),
		Category: req.Category,
		PageSize: req.PageSize,
		Sort:     req.Sort,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bridge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/scrape/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create bridge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Op: "bridge search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: "bridge read response", Err: err}
	}

	if err := decodeUpstreamStatus("bridge", resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed bridgeSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode bridge response: %w", err)
	}

	candidates := make([]domain.RawCandidate, 0, len(parsed.Products))
	for _, p := range parsed.Products {
		rc := domain.RawCandidate{
			SourceID:  p.ProductID,
			Title:     p.Title,
			PriceText: p.PriceText,
			Currency:  p.Currency,
			SourceURL: p.URL,
			Strategy:  StrategyBridge,
		}
		if len(p.Images) > 0 {
			rc.ImageURL = p.Images[0]
			rc.ImageURLs = p.Images
		}
		candidates = append(candidates, rc)
	}
	return candidates, nil
}
