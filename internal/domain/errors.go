package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the fetch path. The coordinator retries only
// transient kinds; the HTTP layer maps each kind to a status code. Callers
// test with errors.Is so wrapping with context is always safe.
var (
	// ErrInvalidRequest marks malformed parameters. Never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTimeout marks an upstream call that exceeded its deadline.
	ErrTimeout = errors.New("upstream timeout")

	// ErrUpstreamUnavailable marks a non-2xx upstream response after the
	// axis-order retry has been exhausted.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoData marks a successful upstream response with zero usable rows.
	// Retrying cannot produce data, so this is never retried and surfaces as
	// an explicit no-coverage state, never masked with fabricated values.
	ErrNoData = errors.New("no data for requested region")

	// ErrCacheUnavailable marks a persistence failure. Non-fatal: the system
	// operates without cache rather than failing the request.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// UpstreamStatusError records the HTTP status of a failed upstream call so
// the retry policy can distinguish transient classes (429, 5xx). It unwraps
// to ErrUpstreamUnavailable.
type UpstreamStatusError struct {
	Status int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream unavailable: status %d", e.Status)
}

func (e *UpstreamStatusError) Unwrap() error { return ErrUpstreamUnavailable }

// IsTransient reports whether a failed attempt is worth retrying: timeouts
// always, upstream errors only for 429 and 5xx status classes.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTimeout) {
		return true
	}
	var se *UpstreamStatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	return false
}
