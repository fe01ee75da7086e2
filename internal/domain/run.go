package domain

import "time"

// PipelineRun is the persisted summary of one discovery run. Health probes
// and smoke tests parse these rows instead of log output.
type PipelineRun struct {
	RunID      string
	UserID     string
	Query      string
	Success    bool
	ReasonCode string
	Discovered int
	Normalized int
	Dropped    int
	Evaluated  int
	Accepted   int
	Forced     bool
	StartedAt  time.Time
	FinishedAt time.Time
}
