package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks shared cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneapi_cache_hits_total",
			Help: "Total number of shared response cache hits",
		},
	)

	// CacheMisses tracks shared cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "oneapi_cache_misses_total",
			Help: "Total number of shared response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "oneapi_cache_size_bytes",
			Help: "Bytes written to the shared response cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oneapi_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge"
	)
)
