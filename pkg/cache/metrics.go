package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh entries served without a network call
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks absent or expired lookups
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CacheSize tracks the number of stored entries
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_cache_entries",
			Help: "Current number of response cache entries",
		},
	)

	// CacheInvalidations tracks explicit invalidations (e.g. after mutations)
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_cache_invalidations_total",
			Help: "Total number of explicit cache invalidations",
		},
	)
)
