package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrMapNotFound signals a missing mind map.
	ErrMapNotFound = errors.New("map not found")
	// ErrNodeNotFound signals a missing node.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidLabel signals an empty or oversized node label.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrInvalidRequest signals a malformed client request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoActiveSession signals that no capture session is running.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionActive signals that a capture session is already running.
	ErrSessionActive = errors.New("session already active")
	// ErrInvalidTransition signals a session state change that is not allowed.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionNotReady signals that the session target did not appear in time.
	ErrSessionNotReady = errors.New("session target not ready")

	// ErrClassifierUnavailable signals a transient classification failure.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrMalformedResponse signals an unparseable classifier or enrichment response.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrBudgetExceeded signals an exhausted classification token budget.
	ErrBudgetExceeded = errors.New("classification budget exceeded")
	// ErrRateLimited signals a rate limit hit at the provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrEnrichmentFailed signals a failed research request.
	ErrEnrichmentFailed = errors.New("enrichment failed")
)

// ProviderError carries the HTTP status reported by a remote AI provider.
// It unwraps to ErrClassifierUnavailable so callers can treat it as transient.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider status %d: %s", ErrClassifierUnavailable.Error(), e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return ErrClassifierUnavailable }

// Permanent reports whether retrying the same request cannot succeed.
func (e *ProviderError) Permanent() bool {
	switch e.StatusCode {
	case 400, 401, 403, 404, 422:
		return true
	default:
		return false
	}
}
