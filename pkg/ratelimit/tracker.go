package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for quota tracking.
var (
	rateLimitRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "oneapi_ratelimit_remaining",
		Help: "Requests remaining in the current API rate limit window",
	})

	rateLimitWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oneapi_ratelimit_warnings_total",
		Help: "Total number of responses observed with a low remaining quota",
	})
)

// Tracker records the quota reported by API responses. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a new rate limit tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger,
	}
}

// State returns the last observed quota.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Observe implements transport.HeaderObserver. Malformed headers are logged and ignored.
func (t *Tracker) Observe(headers http.Header) {
	if err := t.UpdateFromHeaders(headers); err != nil {
		t.logger.Warn().Err(err).Msg("Failed to parse rate limit headers")
	}
}

// UpdateFromHeaders parses the quota headers. Responses without them leave the state unchanged.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	remainStr := headers.Get(HeaderRemaining)
	if remainStr == "" {
		return nil
	}

	remain, err := strconv.Atoi(remainStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderRemaining, err)
	}

	state := State{
		Remaining:  remain,
		LastUpdate: time.Now(),
	}

	if limitStr := headers.Get(HeaderLimit); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
		}
		state.Limit = limit
	}

	if resetStr := headers.Get(HeaderReset); resetStr != "" {
		reset, err := strconv.ParseInt(resetStr, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s header: %w", HeaderReset, err)
		}
		state.ResetAt = time.Unix(reset, 0)
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	rateLimitRemaining.Set(float64(remain))

	switch {
	case state.IsExhausted():
		t.logger.Error().
			Int("remaining", remain).
			Dur("reset_in", state.TimeUntilReset()).
			Msg("API rate limit exhausted - requests will fail until reset")
	case state.NeedsWarning():
		rateLimitWarningsTotal.Inc()
		t.logger.Warn().
			Int("remaining", remain).
			Int("limit", state.Limit).
			Msg("API rate limit running low")
	default:
		t.logger.Debug().
			Int("remaining", remain).
			Int("limit", state.Limit).
			Msg("API rate limit state updated")
	}

	return nil
}
