// Package transport performs the HTTP exchanges with The One API: one GET per call,
// bearer authentication, envelope decoding and error classification.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/oneapi-client/pkg/cache"
	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oneapi_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "oneapi_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oneapi_errors_total",
		Help: "Total API errors by kind",
	}, []string{"kind"})
)

// HeaderObserver receives the headers of every API response.
type HeaderObserver interface {
	Observe(header http.Header)
}

// ResponseCache stores decoded-valid response bodies shared between clients.
type ResponseCache interface {
	Get(ctx context.Context, key cache.Key) (*cache.Entry, error)
	Set(ctx context.Context, key cache.Key, entry *cache.Entry) error
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// APIKey is sent as a bearer token on every request (REQUIRED).
	APIKey string

	// Route labels metrics and logs (e.g. "movie", "movie/{id}/quote").
	Route string

	// HTTPClient performs the requests. Defaults to a new client over http.DefaultTransport.
	HTTPClient *http.Client

	Logger zerolog.Logger

	// Optional collaborators
	RateLimiter   HeaderObserver
	ResponseCache ResponseCache
	CacheTTL      time.Duration
}

// Fetcher issues GET requests for one collection.
type Fetcher struct {
	apiKey     string
	route      string
	httpClient *http.Client
	logger     zerolog.Logger

	rateLimiter HeaderObserver
	cache       ResponseCache
	cacheTTL    time.Duration
	cacheScope  string
}

// NewFetcher creates a fetcher.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	f := &Fetcher{
		apiKey:      opts.APIKey,
		route:       opts.Route,
		httpClient:  httpClient,
		logger:      opts.Logger,
		rateLimiter: opts.RateLimiter,
		cache:       opts.ResponseCache,
		cacheTTL:    opts.CacheTTL,
	}
	if f.cache != nil {
		if f.cacheTTL <= 0 {
			f.cacheTTL = cache.DefaultTTL
		}
		f.cacheScope = cache.ScopeFor(opts.APIKey)
	}

	return f, nil
}

// Route returns the route label of the fetcher.
func (f *Fetcher) Route() string {
	return f.route
}

// Get performs a single authenticated GET and returns the body of a 2xx response.
func (f *Fetcher) Get(ctx context.Context, target *url.URL) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(f.route).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindRequestFailed, URL: target.String(), Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Accept", "application/json")

	f.logger.Debug().
		Str("route", f.route).
		Str("url", target.String()).
		Msg("Executing API request")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(f.route, "network_error").Inc()
		return nil, f.fail(f.transportError(ctx, target, err))
	}
	defer resp.Body.Close()

	if f.rateLimiter != nil {
		f.rateLimiter.Observe(resp.Header)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues(f.route, "network_error").Inc()
		return nil, f.fail(f.transportError(ctx, target, err))
	}

	requestsTotal.WithLabelValues(f.route, strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, f.fail(&Error{
			Kind:       KindAuthentication,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Message:    failureMessage(body),
		})
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, f.fail(&Error{
			Kind:       KindRequestFailed,
			URL:        target.String(),
			StatusCode: resp.StatusCode,
			Message:    failureMessage(body),
		})
	}

	return body, nil
}

// Fetch performs a GET and decodes the body as an envelope of T. When a response cache
// is configured it is consulted first and filled after a successful decode.
func Fetch[T models.Item](ctx context.Context, f *Fetcher, target *url.URL) (*Envelope[T], error) {
	if body, ok := f.cachedBody(ctx, target); ok {
		if env, err := DecodeEnvelope[T](body); err == nil {
			return env, nil
		}
		f.logger.Warn().Str("url", target.String()).Msg("Discarding undecodable cached response")
	}

	body, err := f.Get(ctx, target)
	if err != nil {
		return nil, err
	}

	env, err := DecodeEnvelope[T](body)
	if err != nil {
		return nil, f.fail(&Error{Kind: KindMalformedResponse, URL: target.String(), Err: err})
	}

	f.storeBody(ctx, target, body)
	return env, nil
}

// Close releases idle connections held by the fetcher's HTTP client.
func (f *Fetcher) Close() {
	f.httpClient.CloseIdleConnections()
}

func (f *Fetcher) cacheKey(target *url.URL) cache.Key {
	return cache.Key{
		Endpoint:    target.EscapedPath(),
		QueryParams: target.Query(),
		Scope:       f.cacheScope,
	}
}

func (f *Fetcher) cachedBody(ctx context.Context, target *url.URL) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}

	entry, err := f.cache.Get(ctx, f.cacheKey(target))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn().Err(err).Str("url", target.String()).Msg("Response cache get error")
		}
		return nil, false
	}

	f.logger.Debug().Str("route", f.route).Str("url", target.String()).Msg("Serving response from shared cache")
	return entry.Data, true
}

func (f *Fetcher) storeBody(ctx context.Context, target *url.URL, body []byte) {
	if f.cache == nil {
		return
	}

	entry := cache.NewEntry(body, http.StatusOK, f.cacheTTL)
	if err := f.cache.Set(ctx, f.cacheKey(target), entry); err != nil {
		f.logger.Warn().Err(err).Str("url", target.String()).Msg("Failed to cache response")
	}
}

// transportError classifies a failure that produced no HTTP status.
func (f *Fetcher) transportError(ctx context.Context, target *url.URL, err error) *Error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &Error{Kind: KindCancelled, URL: target.String(), Err: ctxErr}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, URL: target.String(), Err: err}
	}
	return &Error{Kind: KindRequestFailed, URL: target.String(), Err: err}
}

// fail records and logs a classified error.
func (f *Fetcher) fail(err *Error) error {
	errorsTotal.WithLabelValues(string(err.Kind)).Inc()

	event := f.logger.Warn()
	if err.Kind == KindAuthentication {
		event = f.logger.Error()
	}
	event.
		Str("route", f.route).
		Str("url", err.URL).
		Int("status", err.StatusCode).
		Str("kind", string(err.Kind)).
		Msg("API request error")

	return err
}

// failureMessage extracts the message of a failure envelope, if the body is one.
func failureMessage(body []byte) string {
	var failure struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &failure); err != nil {
		return ""
	}
	return failure.Message
}
