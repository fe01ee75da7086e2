// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Acquisition metrics
	CandidatesDiscovered prometheus.Counter
	StrategyAttempts     *prometheus.CounterVec
	StrategyFailures     *prometheus.CounterVec
	LadderRungsTried     prometheus.Counter

	// Normalization metrics
	CandidatesNormalized prometheus.Counter
	CandidatesDropped    *prometheus.CounterVec

	// Market metrics
	LookupLatency  *prometheus.HistogramVec
	LookupFailures *prometheus.CounterVec
	SnapshotCache  *prometheus.CounterVec

	// Pipeline metrics
	RunsTotal             *prometheus.CounterVec
	RunDuration           prometheus.Histogram
	OpportunitiesAccepted prometheus.Counter
	ForcedAcceptances     prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "dropscout"
	}

	return &Metrics{
		CandidatesDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "candidates_discovered_total",
			Help:      "Total number of raw candidates returned by acquisition strategies",
		}),
		StrategyAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "strategy_attempts_total",
			Help:      "Total number of strategy search attempts by strategy",
		}, []string{"strategy"}),
		StrategyFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "strategy_failures_total",
			Help:      "Total number of strategy failures by strategy and kind",
		}, []string{"strategy", "kind"}),
		LadderRungsTried: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "acquisition",
			Name:      "ladder_rungs_tried_total",
			Help:      "Total number of keyword ladder rungs attempted",
		}),

		CandidatesNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "candidates_normalized_total",
			Help:      "Total number of candidates that survived normalization",
		}),
		CandidatesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "candidates_dropped_total",
			Help:      "Total number of candidates dropped during normalization by reason",
		}, []string{"reason"}),

		LookupLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "lookup_latency_seconds",
			Help:      "Marketplace comp lookup latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"marketplace"}),
		LookupFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "lookup_failures_total",
			Help:      "Total number of failed marketplace comp lookups",
		}, []string{"marketplace"}),
		SnapshotCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "snapshot_cache_total",
			Help:      "Snapshot cache outcomes by result (hit/miss/error)",
		}, []string{"result"}),

		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by outcome reason",
		}, []string{"reason"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		OpportunitiesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "opportunities_accepted_total",
			Help:      "Total number of opportunities accepted and persisted",
		}),
		ForcedAcceptances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "forced_acceptances_total",
			Help:      "Total number of opportunities accepted via forced validation",
		}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a completed pipeline run.
func RecordRun(reason string, durationSeconds float64, success bool) {
	DefaultMetrics.RunsTotal.WithLabelValues(reason).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	if success {
		DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordAcquisition records acquisition chain outcomes.
func RecordAcquisition(discovered, rungsTried int) {
	DefaultMetrics.CandidatesDiscovered.Add(float64(discovered))
	DefaultMetrics.LadderRungsTried.Add(float64(rungsTried))
}

// RecordNormalization records normalizer outcomes.
func RecordNormalization(accepted int, droppedByReason map[string]int) {
	DefaultMetrics.CandidatesNormalized.Add(float64(accepted))
	for reason, count := range droppedByReason {
		DefaultMetrics.CandidatesDropped.WithLabelValues(reason).Add(float64(count))
	}
}

// RecordAccepted records persisted opportunities.
func RecordAccepted(count int, forced bool) {
	DefaultMetrics.OpportunitiesAccepted.Add(float64(count))
	if forced {
		DefaultMetrics.ForcedAcceptances.Add(float64(count))
	}
}

// RecordStrategyAttempt records one strategy search call.
func RecordStrategyAttempt(strategy string) {
	DefaultMetrics.StrategyAttempts.WithLabelValues(strategy).Inc()
}

// RecordStrategyFailure records a failed strategy call by failure kind.
func RecordStrategyFailure(strategy, kind string) {
	DefaultMetrics.StrategyFailures.WithLabelValues(strategy, kind).Inc()
}

// RecordLookup records one marketplace comp lookup.
func RecordLookup(marketplace string, seconds float64, failed bool) {
	DefaultMetrics.LookupLatency.WithLabelValues(marketplace).Observe(seconds)
	if failed {
		DefaultMetrics.LookupFailures.WithLabelValues(marketplace).Inc()
	}
}

// RecordCacheOutcome records a snapshot cache result (hit, miss or error).
func RecordCacheOutcome(result string) {
	DefaultMetrics.SnapshotCache.WithLabelValues(result).Inc()
}
