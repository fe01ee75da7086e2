// Package main runs one opportunity discovery pass from the command line.
// Executes: sourcing → market analysis → evaluation → selection → persistence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"dropscout/internal/acquisition"
	"dropscout/internal/config"
	"dropscout/internal/costmodel"
	"dropscout/internal/domain"
	"dropscout/internal/evaluate"
	"dropscout/internal/market"
	"dropscout/internal/notify"
	"dropscout/internal/observability"
	"dropscout/internal/pipeline"
	"dropscout/internal/storage"
	"dropscout/internal/storage/clickhouse"
	"dropscout/internal/storage/memory"
	"dropscout/internal/storage/migrations"
	"dropscout/internal/storage/postgres"
)

func main() {
	// Parse flags
	query := flag.String("query", "", "Product search query (required)")
	userID := flag.String("user", "", "User ID the run belongs to (required)")
	category := flag.String("category", "", "Optional supplier category filter")
	maxItems := flag.Int("max-items", 0, "Max opportunities to accept (0 = default)")
	minMargin := flag.Float64("min-margin", 0, "Publish margin threshold (0 = default)")
	forcedMinMargin := flag.Float64("forced-min-margin", 0, "Relaxed margin floor for forced mode (0 = default)")
	forced := flag.Bool("forced", false, "Enable forced validation fallback")
	marketplaceList := flag.String("marketplaces", "", "Comma-separated target marketplaces (default ebay,amazon,etsy)")
	region := flag.String("region", "", "Marketplace region (US, EU, UK, LATAM)")
	migrate := flag.Bool("migrate", false, "Apply database schemas before running")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *query == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "Usage: scout -user <id> -query <text> [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	cfg := config.Load()

	marketplaces, err := parseMarketplaces(*marketplaceList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Optional Prometheus listener
	if cfg.Metrics.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", "error", err)
			}
		}()
	}

	chain := buildChain(cfg.Acquisition, logger)

	stores, cleanup, err := buildStores(ctx, cfg.Storage, *migrate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Storage error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	analyzer := buildAnalyzer(cfg, stores.history, logger)

	model, err := buildCostModel(cfg.FeeScheduleFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fee schedule error: %v\n", err)
		os.Exit(1)
	}

	var trend evaluate.TrendScorer = evaluate.NeutralTrend{}
	if stores.history != nil {
		trend = evaluate.NewHistoryTrend(stores.history, logger)
	}

	notifier, closeNotifier := buildNotifier(cfg.Notify, logger)
	defer closeNotifier()

	finder := pipeline.New(pipeline.Options{
		Chain:         chain,
		Analyzer:      analyzer,
		Evaluator:     evaluate.NewEvaluator(model, trend, logger),
		Opportunities: stores.opportunities,
		Runs:          stores.runs,
		Notifier:      notifier,
		Logger:        logger,
		Config:        pipeline.DefaultConfig(),
	})

	req := pipeline.Request{
		Query:            *query,
		Category:         *category,
		MaxItems:         *maxItems,
		MinMargin:        *minMargin,
		ForcedMinMargin:  *forcedMinMargin,
		Marketplaces:     marketplaces,
		Region:           domain.Region(*region),
		ForcedValidation: forced,
	}

	result, err := finder.FindOpportunitiesWithDiagnostics(ctx, *userID, req)
	if err != nil {
		var authErr *acquisition.ManualAuthError
		if errors.As(err, &authErr) {
			fmt.Fprintf(os.Stderr, "Manual authentication required: %s\n", authErr.ChallengeURL)
		} else {
			fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		}
		os.Exit(1)
	}

	printResult(result)
	if !result.Success {
		os.Exit(2)
	}
}

func printResult(result *pipeline.Result) {
	fmt.Println("=== Discovery Run ===")
	fmt.Printf("Run:      %s\n", result.RunID)
	fmt.Printf("Outcome:  %s", result.ReasonCode)
	if result.Forced {
		fmt.Print(" (forced)")
	}
	fmt.Println()

	d := result.Diagnostics
	fmt.Printf("Sourcing: %d discovered, %d rungs, %d strategy attempts (winner: %s, keyword: %q)\n",
		d.Discovered, d.RungsTried, d.StrategyAttempts, d.WinningStrategy, d.WinningKeyword)
	fmt.Printf("Funnel:   %d normalized, %d dropped, %d evaluated, %d accepted in %s\n",
		d.Normalized, d.Dropped, d.Evaluated, d.Accepted, d.Elapsed.Round(time.Millisecond))
	if len(d.StrategyFailures) > 0 {
		fmt.Printf("Strategy failures: %d\n", len(d.StrategyFailures))
		for _, msg := range d.StrategyFailures {
			fmt.Printf("  - %s\n", msg)
		}
	}

	for _, opp := range result.Opportunities {
		fmt.Printf("\n%s\n", opp.Title)
		fmt.Printf("  id:          %s\n", opp.OpportunityID)
		fmt.Printf("  marketplace: %s\n", opp.Marketplace)
		fmt.Printf("  sale price:  %s %s\n", opp.SalePrice.StringFixed(2), opp.CostBreakdown.Currency)
		fmt.Printf("  est profit:  %s (margin %.1f%%, roi %.1f%%)\n",
			opp.EstimatedProfit.StringFixed(2), opp.ProfitMargin*100, opp.ROIPercentage)
		fmt.Printf("  confidence:  %.2f trend: %.2f\n", opp.ConfidenceScore, opp.TrendScore)
		if opp.ForcedValidation {
			fmt.Println("  accepted via forced validation")
		}
	}
}

func parseMarketplaces(list string) ([]domain.Marketplace, error) {
	if list == "" {
		return nil, nil
	}
	known := map[domain.Marketplace]bool{
		domain.MarketplaceEbay:    true,
		domain.MarketplaceAmazon:  true,
		domain.MarketplaceEtsy:    true,
		domain.MarketplaceMercado: true,
	}
	var out []domain.Marketplace
	for _, part := range strings.Split(list, ",") {
		mp := domain.Marketplace(strings.ToLower(strings.TrimSpace(part)))
		if mp == "" {
			continue
		}
		if !known[mp] {
			return nil, fmt.Errorf("unknown marketplace %q", mp)
		}
		out = append(out, mp)
	}
	return out, nil
}

// buildChain wires the acquisition fallback chain. A strategy without its
// endpoint configured stays in the chain but disabled, so diagnostics still
// name it.
func buildChain(cfg config.AcquisitionConfig, logger *slog.Logger) *acquisition.Chain {
	var affiliateOpts []acquisition.AffiliateOption
	if cfg.Affiliate.Timeout > 0 {
		affiliateOpts = append(affiliateOpts, acquisition.WithAffiliateTimeout(cfg.Affiliate.Timeout))
	}
	affiliate := acquisition.NewAffiliateClient(cfg.Affiliate.BaseURL, cfg.Affiliate.APIKey, affiliateOpts...)

	bridgeClient := &http.Client{Timeout: cfg.Bridge.Timeout}
	bridge := acquisition.NewBridgeClient(cfg.Bridge.BaseURL, cfg.Bridge.BaseURL != "", bridgeClient)

	nativeOpts := []acquisition.NativeOption{acquisition.WithNativeTimeout(cfg.Native.Timeout)}
	if cfg.Native.Headless != nil {
		nativeOpts = append(nativeOpts, acquisition.WithNativeHeadless(*cfg.Native.Headless))
	}
	native := acquisition.NewNativeScraper(cfg.Native.SearchURL, cfg.Native.SearchURL != "", nativeOpts...)

	return acquisition.NewChain(
		[]acquisition.Strategy{affiliate, bridge, native},
		acquisition.WithLogger(logger),
	)
}

// runStores bundles the persistence backends selected from configuration.
// history is nil when no ClickHouse DSN is configured.
type runStores struct {
	opportunities storage.OpportunityStore
	runs          storage.RunStore
	history       storage.SnapshotHistoryStore
}

func buildStores(ctx context.Context, cfg config.StorageConfig, migrate bool) (*runStores, func(), error) {
	stores := &runStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if migrate {
			for _, stmt := range migrations.PostgresStatements() {
				if _, err := pool.Exec(ctx, stmt); err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("apply postgres schema: %w", err)
				}
			}
		}
		stores.opportunities = postgres.NewOpportunityStore(pool)
		stores.runs = postgres.NewRunStore(pool)
	} else {
		stores.opportunities = memory.NewOpportunityStore()
		stores.runs = memory.NewRunStore()
	}

	if cfg.ClickHouseDSN != "" {
		conn, err := clickhouse.NewConn(ctx, cfg.ClickHouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		if migrate {
			for _, stmt := range migrations.ClickHouseStatements() {
				if err := conn.Exec(ctx, stmt); err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("apply clickhouse schema: %w", err)
				}
			}
		}
		stores.history = clickhouse.NewSnapshotHistoryStore(conn)
	}

	return stores, cleanup, nil
}

func buildAnalyzer(cfg config.Config, history storage.SnapshotHistoryStore, logger *slog.Logger) *market.Analyzer {
	if cfg.Market.LookupBaseURL == "" {
		logger.Warn("no comp lookup endpoint configured; runs will rely on forced validation")
	}
	lookup := market.NewHTTPLookup(cfg.Market.LookupBaseURL, cfg.Market.LookupAPIKey, cfg.Market.LookupTimeout)

	opts := []market.AnalyzerOption{
		market.WithLookupTimeout(cfg.Market.LookupTimeout),
		market.WithAnalyzerLogger(logger),
	}
	if cfg.Storage.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
		opts = append(opts, market.WithCache(market.NewRedisCache(client, cfg.Market.CacheTTL, logger)))
	}
	if history != nil {
		opts = append(opts, market.WithHistory(history))
	}
	return market.NewAnalyzer(lookup, opts...)
}

func buildCostModel(scheduleFile string) (*costmodel.Model, error) {
	schedules := costmodel.DefaultSchedules()
	if scheduleFile != "" {
		loaded, err := costmodel.LoadSchedules(scheduleFile)
		if err != nil {
			return nil, err
		}
		schedules = loaded
	}
	return costmodel.New(schedules, costmodel.NewDefaultConverter()), nil
}

func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) (notify.Notifier, func()) {
	log := notify.NewLogNotifier(logger)
	if cfg.WebSocketEndpoint == "" {
		return log, func() {}
	}
	ws := notify.NewWebSocketNotifier(cfg.WebSocketEndpoint, nil, logger)
	return notify.Multi{log, ws}, func() { _ = ws.Close() }
}
