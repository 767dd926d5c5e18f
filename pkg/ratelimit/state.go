// Package ratelimit tracks The One API request quota from its response headers.
// The API allows a fixed number of requests per window per key and reports the
// remaining budget in X-RateLimit-* headers on every response.
//
// Tracking is observational: the client never delays or retries a request because
// of it. Callers can inspect State to pace their own work.
package ratelimit

import (
	"time"
)

// Response headers carrying the quota.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// WarningRatio is the share of the limit below which the remaining quota is
// reported as low.
const WarningRatio = 0.1

// State is the last observed quota.
type State struct {
	// Limit is the number of requests allowed per window.
	Limit int `json:"limit"`

	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets (from X-RateLimit-Reset, epoch seconds).
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when the state was last observed; zero if never.
	LastUpdate time.Time `json:"last_update"`
}

// Known reports whether any quota headers have been observed.
func (s State) Known() bool {
	return !s.LastUpdate.IsZero()
}

// IsStale returns true if the state data is older than the given duration.
func (s State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsExhausted returns true if no requests remain before the window resets.
func (s State) IsExhausted() bool {
	return s.Known() && s.Remaining <= 0 && s.TimeUntilReset() > 0
}

// NeedsWarning returns true if the remaining quota is below WarningRatio of the limit.
func (s State) NeedsWarning() bool {
	if !s.Known() || s.Limit <= 0 {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*WarningRatio
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s State) TimeUntilReset() time.Duration {
	duration := time.Until(s.ResetAt)
	if duration < 0 {
		return 0
	}
	return duration
}
