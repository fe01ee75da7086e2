package acquisition

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"dropscout/internal/domain"
)

// StrategyNative is the name of the native browser scraper strategy.
const StrategyNative = "native-scraper"

const defaultNativeTimeout = 60 * time.Second

// NativeScraper drives a headless browser against the supplier's public
// search pages. Last strategy in the chain: most expensive and most likely
// to trip anti-bot measures, but works when both APIs are down.
type NativeScraper struct {
	searchURL string // template with a %s placeholder for the escaped query
	timeout   time.Duration
	headless  bool
	enabled   bool
}

// NativeOption configures NativeScraper.
type NativeOption func(*NativeScraper)

// WithNativeTimeout bounds one page render.
func WithNativeTimeout(d time.Duration) NativeOption {
	return func(s *NativeScraper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNativeHeadless toggles headless mode. Headful runs are useful when
// debugging selector drift against the live site.
func WithNativeHeadless(headless bool) NativeOption {
	return func(s *NativeScraper) { s.headless = headless }
}

// NewNativeScraper creates the browser scraper strategy.
func NewNativeScraper(searchURL string, enabled bool, opts ...NativeOption) *NativeScraper {
	s := &NativeScraper{
		searchURL: searchURL,
		timeout:   defaultNativeTimeout,
		headless:  true,
		enabled:   enabled && searchURL != "",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the strategy in chain diagnostics.
func (s *NativeScraper) Name() string { return StrategyNative }

// Enabled reports whether the strategy is configured.
func (s *NativeScraper) Enabled() bool { return s.enabled }

// Search renders the search page and extracts listing cards from the DOM.
func (s *NativeScraper) Search(ctx context.Context, req SearchRequest) ([]domain.RawCandidate, error) {
	pageURL := fmt.Sprintf(s.searchURL, url.QueryEscape(req.Query()))

	html, err := s.renderPage(ctx, pageURL)
	if err != nil {
		return nil, &TransientError{Op: "native render", Err: err}
	}

	if challengeURL, ok := detectCaptcha(html); ok {
		return nil, &ManualAuthError{
			ChallengeURL: challengeURL,
			ExpiresAt:    time.Now().Add(15 * time.Minute),
		}
	}

	return ParseSearchHTML(html, pageURL)
}

// renderPage loads the URL in a headless browser and returns the rendered
// DOM. Listing grids on the target sites are JS-populated, so plain HTTP
// fetches come back empty.
func (s *NativeScraper) renderPage(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// detectCaptcha looks for the upstream's verification interstitial.
func detectCaptcha(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	challenge := doc.Find("form.captcha-challenge, div#captcha, iframe[src*='captcha']").First()
	if challenge.Length() == 0 {
		return "", false
	}
	if src, ok := challenge.Attr("src"); ok {
		return src, true
	}
	if action, ok := challenge.Attr("action"); ok {
		return action, true
	}
	return "", true
}

// ParseSearchHTML extracts listing cards from a rendered search page.
// Exported so the selector logic is testable without a browser.
func ParseSearchHTML(html, pageURL string) ([]domain.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var candidates []domain.RawCandidate
	doc.Find("div.search-item, li.list-item[data-product-id]").Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(".item-title, h3 a").First().Text())
		priceText := strings.TrimSpace(sel.Find(".item-price, .price-current").First().Text())

		rc := domain.RawCandidate{
			SourceID:  sel.AttrOr("data-product-id", ""),
			Title:     title,
			PriceText: priceText,
			Strategy:  StrategyNative,
		}

		if href, ok := sel.Find("a").First().Attr("href"); ok {
			if ref, err := base.Parse(href); err == nil {
				rc.SourceURL = ref.String()
			}
		}
		sel.Find("img").Each(func(_ int, img *goquery.Selection) {
			src := img.AttrOr("src", img.AttrOr("data-src", ""))
			if src == "" {
				return
			}
			if ref, err := base.Parse(src); err == nil {
				if rc.ImageURL == "" {
					rc.ImageURL = ref.String()
				}
				rc.ImageURLs = append(rc.ImageURLs, ref.String())
			}
		})

		candidates = append(candidates, rc)
	})

	return candidates, nil
}
