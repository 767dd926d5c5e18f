// Package metrics is the reference for the Prometheus metrics of the client.
// All metrics are defined in their respective packages (transport, pagination,
// cache, ratelimit, client) and registered there via promauto, which keeps
// this package free of imports from them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer every package of the client registers with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the registered metrics for exposition.
var Gatherer = prometheus.DefaultGatherer

// Names lists every metric the client exports.
var Names = []string{
	// pkg/transport
	"oneapi_requests_total",
	"oneapi_request_duration_seconds",
	"oneapi_errors_total",

	// pkg/pagination
	"oneapi_pages_loaded_total",
	"oneapi_lookups_total",

	// pkg/cache
	"oneapi_cache_hits_total",
	"oneapi_cache_misses_total",
	"oneapi_cache_size_bytes",
	"oneapi_cache_errors_total",

	// pkg/ratelimit
	"oneapi_ratelimit_remaining",
	"oneapi_ratelimit_warnings_total",

	// pkg/client
	"oneapi_movie_quote_collections",
}

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Request Metrics (pkg/transport):
//   - oneapi_requests_total{route, status} (Counter): Requests by route and HTTP status
//     (status "network_error" when no response arrived)
//   - oneapi_request_duration_seconds{route} (Histogram): Request duration by route
//   - oneapi_errors_total{kind} (Counter): Failed operations by error kind
//
// Enumeration Metrics (pkg/pagination):
//   - oneapi_pages_loaded_total{route} (Counter): Listing pages loaded
//   - oneapi_lookups_total{route, result} (Counter): Lookups by id, result one of
//     cache_hit, fetched, not_found, error
//
// Shared Cache Metrics (pkg/cache):
//   - oneapi_cache_hits_total (Counter): Shared cache hits
//   - oneapi_cache_misses_total (Counter): Shared cache misses
//   - oneapi_cache_size_bytes (Gauge): Bytes written to the shared cache
//   - oneapi_cache_errors_total{operation} (Counter): Redis errors by operation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - oneapi_ratelimit_remaining (Gauge): Requests left in the current window
//   - oneapi_ratelimit_warnings_total (Counter): Responses observed with a low quota
//
// Registry Metrics (pkg/client):
//   - oneapi_movie_quote_collections (Gauge): Per-movie quote collections held by open clients
//
// Example Prometheus Queries:
//
//   # Lookup cache hit rate
//   sum(rate(oneapi_lookups_total{result="cache_hit"}[5m])) /
//   sum(rate(oneapi_lookups_total[5m]))
//
//   # Quota nearly spent
//   oneapi_ratelimit_remaining < 10
//
//   # Authentication failures
//   rate(oneapi_errors_total{kind="authentication"}[5m])
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(oneapi_request_duration_seconds_bucket[5m]))
