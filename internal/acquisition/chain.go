package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dropscout/internal/domain"
	"dropscout/internal/observability"
)

// Default retry configuration, applied per strategy call. A transient
// failure in one strategy never counts against another strategy's budget.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Report captures what the chain tried, for run diagnostics. Strategy
// failures are recorded here instead of surfacing to the caller.
type Report struct {
	RungsTried       int
	StrategyAttempts int
	Failures         []string // "strategy/rung: error"
	WinningStrategy  string
	WinningKeyword   string
}

// Chain tries strategies in fixed priority order with a keyword fallback
// ladder. Strategies run sequentially because each is a fallback for the
// previous, not an independent source.
type Chain struct {
	strategies  []Strategy
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	logger      *slog.Logger
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithMaxRetries sets the per-call transient retry budget.
func WithMaxRetries(n int) ChainOption {
	return func(c *Chain) { c.maxRetries = n }
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(d time.Duration) ChainOption {
	return func(c *Chain) { c.retryDelay = d }
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) ChainOption {
	return func(c *Chain) { c.maxDelay = d }
}

// WithLogger sets the chain logger.
func WithLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = l }
}

// NewChain creates a chain over the given strategies, tried in order.
func NewChain(strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{
		strategies:  strategies,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Acquire walks the ladder rung by rung until one rung yields at least one
// valid candidate or the ladder is exhausted. An empty result is a valid
// outcome ("no candidates found"), not an error; only ManualAuthError and
// chain misconfiguration propagate.
func (c *Chain) Acquire(ctx context.Context, ladder []SearchRequest) ([]domain.RawCandidate, *Report, error) {
	report := &Report{}

	enabled := 0
	for _, s := range c.strategies {
		if s.Enabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return nil, report, ErrNoStrategiesEnabled
	}

	for _, rung := range ladder {
		if err := ctx.Err(); err != nil {
			// Run budget exhausted; partial results so far are empty here,
			// so report the rungs we managed and stop.
			return nil, report, nil
		}
		report.RungsTried++

		candidates, err := c.runRung(ctx, rung, report)
		if err != nil {
			return nil, report, err
		}
		if len(candidates) > 0 {
			report.WinningKeyword = rung.Query()
			return candidates, report, nil
		}
	}

	return nil, report, nil
}

// runRung tries every strategy for one rung. Returns candidates from the
// first strategy that produces a non-empty valid set.
func (c *Chain) runRung(ctx context.Context, rung SearchRequest, report *Report) ([]domain.RawCandidate, error) {
	for _, strategy := range c.strategies {
		if !strategy.Enabled() {
			continue
		}
		report.StrategyAttempts++
		observability.RecordStrategyAttempt(strategy.Name())

		raw, err := c.searchWithRetry(ctx, strategy, rung)
		if err != nil {
			if IsManualAuth(err) {
				// Requires out-of-band human action; abort the whole chain.
				observability.RecordStrategyFailure(strategy.Name(), "manual_auth")
				return nil, err
			}
			observability.RecordStrategyFailure(strategy.Name(), "transient")
			report.Failures = append(report.Failures,
				fmt.Sprintf("%s/%s: %v", strategy.Name(), rung.Query(), err))
			c.logger.Warn("strategy failed, falling through",
				"strategy", strategy.Name(), "rung", rung.Query(), "err", err)
			continue
		}

		valid := filterValid(raw, rung)
		if len(valid) > 0 {
			report.WinningStrategy = strategy.Name()
			return valid, nil
		}
		c.logger.Debug("strategy returned no usable candidates",
			"strategy", strategy.Name(), "rung", rung.Query(), "raw", len(raw))
	}

	return nil, nil
}

// searchWithRetry retries transient failures with exponential backoff.
// Manual-auth and non-transient errors return immediately.
func (c *Chain) searchWithRetry(ctx context.Context, strategy Strategy, rung SearchRequest) ([]domain.RawCandidate, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &TransientError{Op: strategy.Name(), Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		raw, err := strategy.Search(ctx, rung)
		if err == nil {
			return raw, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// filterValid applies the rung's validity gate. Every rung requires a
// non-empty title; rungs with UseFilters additionally require a source URL
// and a resolvable positive price.
func filterValid(raw []domain.RawCandidate, rung SearchRequest) []domain.RawCandidate {
	valid := make([]domain.RawCandidate, 0, len(raw))
	for _, rc := range raw {
		if rc.Title == "" {
			continue
		}
		if rung.UseFilters {
			if rc.SourceURL == "" {
				continue
			}
			if !rc.Price.IsPositive() && rc.PriceText == "" {
				continue
			}
		}
		valid = append(valid, rc)
	}
	return valid
}
