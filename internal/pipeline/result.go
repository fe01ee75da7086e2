package pipeline

import (
	"time"

	"dropscout/internal/domain"
)

// Run phases, reported through notifications.
const (
	PhaseSourcing   = "sourcing"
	PhaseEvaluating = "evaluating"
	PhaseSelecting  = "selecting"
)

// Terminal reason codes. Every run ends with exactly one.
const (
	ReasonAccepted       = "accepted"
	ReasonAcceptedForced = "accepted_forced"
	ReasonNoCandidates   = "no_candidates"
	ReasonAllDropped     = "all_candidates_dropped"
	ReasonNoOpportunity  = "no_opportunity"
	ReasonManualAuth     = "manual_auth_required"
	ReasonConfigError    = "config_error"
	ReasonStorageError   = "storage_error"
)

// Diagnostics counts what happened inside one run. Consumed by smoke tests
// and health probes alongside the persisted PipelineRun row.
type Diagnostics struct {
	Discovered       int
	Normalized       int
	Dropped          int
	Evaluated        int
	Accepted         int
	RungsTried       int
	StrategyAttempts int
	StrategyFailures []string
	WinningStrategy  string
	WinningKeyword   string
	Elapsed          time.Duration
}

// Result is the structured outcome of one run. Terminal states that find
// nothing are results, not errors; only manual-auth challenges, chain
// misconfiguration and persistence failures surface as errors.
type Result struct {
	RunID         string
	Success       bool
	ReasonCode    string
	Forced        bool
	Opportunities []*domain.Opportunity
	Diagnostics   Diagnostics
}
