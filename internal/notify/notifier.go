// Package notify emits pipeline progress and completion events to
// interested listeners. Delivery is fire-and-forget: a notification
// failure must never fail the pipeline run that produced it.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event kinds emitted over one pipeline run.
const (
	EventRunStarted   = "run_started"
	EventPhaseChanged = "phase_changed"
	EventRunCompleted = "run_completed"
)

// Event is one progress or completion signal.
type Event struct {
	Kind       string    `json:"kind"`
	RunID      string    `json:"runId"`
	UserID     string    `json:"userId"`
	Query      string    `json:"query,omitempty"`
	Phase      string    `json:"phase,omitempty"`
	ReasonCode string    `json:"reasonCode,omitempty"`
	Accepted   int       `json:"accepted,omitempty"`
	Forced     bool      `json:"forced,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier delivers events. Implementations swallow their own failures;
// Publish never returns an error by contract.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// LogNotifier writes events to the structured log. The default sink when
// no external listener is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Publish(_ context.Context, event Event) {
	n.logger.Info("pipeline event",
		"kind", event.Kind,
		"run_id", event.RunID,
		"user_id", event.UserID,
		"phase", event.Phase,
		"reason", event.ReasonCode,
		"accepted", event.Accepted,
		"forced", event.Forced,
	)
}

// Multi fans one event out to several notifiers.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
