package prober

import (
	"errors"
	"fmt"
	"time"
)

// Reason is the machine readable category of a failed probe.
type Reason string

const (
	ReasonFetchFailed           Reason = "fetch_failed"
	ReasonLoginRequired         Reason = "login_required"
	ReasonStructureUnrecognized Reason = "structure_unrecognized"
)

var (
	// ErrTransientFetch covers network failures, timeouts and crashed browser sessions.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrAuthRequired means the booking page redirected to a login page.
	ErrAuthRequired = errors.New("authentication required")
	// ErrStructureUnrecognized means the page loaded but the slot markers never appeared.
	ErrStructureUnrecognized = errors.New("page structure unrecognized")
)

func (r Reason) sentinel() error {
	switch r {
	case ReasonLoginRequired:
		return ErrAuthRequired
	case ReasonStructureUnrecognized:
		return ErrStructureUnrecognized
	default:
		return ErrTransientFetch
	}
}

// ProbeError is the error carried by a failed SlotSnapshot.
type ProbeError struct {
	Reason Reason
	Cause  error
}

func (e *ProbeError) Error() string {
	if e.Cause == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Cause.Error())
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match a ProbeError against the package sentinels.
func (e *ProbeError) Is(target error) bool {
	return target == e.Reason.sentinel()
}

func newProbeError(reason Reason, cause error) *ProbeError {
	return &ProbeError{Reason: reason, Cause: cause}
}

// SlotSnapshot is the outcome of a single probe.
type SlotSnapshot struct {
	Target   string
	URL      string
	ProbedAt time.Time

	Available bool
	// Labels are the open day-of-month tokens, deduplicated and in page order.
	Labels []string
	// Err is non-nil when the probe failed, Available is always false then.
	Err *ProbeError
}

func (s SlotSnapshot) Failed() bool {
	return s.Err != nil
}

// Error returns the error of a failed snapshot as an error interface, or nil.
func (s SlotSnapshot) Error() error {
	if s.Err == nil {
		return nil
	}
	return s.Err
}
