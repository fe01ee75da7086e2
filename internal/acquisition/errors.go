package acquisition

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for strategy configuration states.
var (
	// ErrBridgeDisabled is returned when the scraper bridge rejects a call
	// because it is administratively disabled upstream.
	ErrBridgeDisabled = errors.New("scraper bridge is disabled")

	// ErrNoStrategiesEnabled is returned when the chain has nothing to try.
	// This is a configuration error and propagates to the caller.
	ErrNoStrategiesEnabled = errors.New("no acquisition strategy enabled")
)

// ManualAuthError signals an upstream challenge (CAPTCHA) that cannot be
// resolved programmatically. It is never retried and never swallowed; the
// chain aborts and surfaces it with the resolution token.
type ManualAuthError struct {
	Token        string
	ChallengeURL string
	ExpiresAt    time.Time
}

func (e *ManualAuthError) Error() string {
	return fmt.Sprintf("manual authentication required (challenge %s, expires %s)",
		e.ChallengeURL, e.ExpiresAt.Format(time.RFC3339))
}

// TransientError wraps network/5xx/timeout conditions. Retried with bounded
// backoff inside the owning strategy's budget, then treated as a strategy
// failure so the chain can fall through.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient upstream failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsManualAuth reports whether err is (or wraps) a ManualAuthError.
func IsManualAuth(err error) bool {
	var mae *ManualAuthError
	return errors.As(err, &mae)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
