package viewer

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error produced by a Session wraps exactly one of these.
var (
	// ErrConfiguration marks missing or invalid configuration. It is detected
	// before any asynchronous work and is not retryable without new config.
	ErrConfiguration = errors.New("configuration error")
	// ErrLoad marks an engine factory that failed to resolve.
	ErrLoad = errors.New("engine load failed")
	// ErrEngineStart marks an engine that could not be constructed or
	// reported a start failure.
	ErrEngineStart = errors.New("engine start failed")
	// ErrToggle marks an engine that rejected a mode switch. Non-fatal.
	ErrToggle = errors.New("mode switch failed")
	// ErrTeardown marks an engine removal failure during Dispose. Logged only.
	ErrTeardown = errors.New("engine teardown failed")
	// ErrTimeout marks a start that did not reach readiness in time.
	ErrTimeout = errors.New("engine start timed out")
	// ErrInvalidState marks an operation called in a state that forbids it.
	ErrInvalidState = errors.New("invalid session state")
)

// ConfigurationError lists every configuration problem found in one pass so
// the host can report them together.
type ConfigurationError struct {
	Missing []string // required values that were empty
	Invalid []string // values that were present but malformed
	Hint    string   // optional remediation shown to the user
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, " or "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	msg := strings.Join(parts, "; ")
	if msg == "" {
		msg = "invalid configuration"
	}
	if e.Hint != "" {
		msg += ". " + e.Hint
	}
	return msg
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// add records a missing field unless it is already listed.
func (e *ConfigurationError) add(field string) {
	for _, f := range e.Missing {
		if f == field {
			return
		}
	}
	e.Missing = append(e.Missing, field)
}

// empty reports whether no problem was recorded.
func (e *ConfigurationError) empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// kindError wraps cause with the given kind so both match errors.Is.
func kindError(kind error, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
