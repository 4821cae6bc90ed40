// Package metrics provides the centralized Prometheus metrics registry for
// the API client. All metrics are defined in their respective packages
// (api, cache, inflight, cooldown, auth) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the API client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/api):
//   - api_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//     (HTTP status code, "cache_hit", "cooldown", "auth_error", "network_error")
//   - api_request_duration_seconds{endpoint} (Histogram): Dispatch duration by endpoint
//
// Cache Metrics (pkg/cache):
//   - api_cache_hits_total (Counter): Reads served from the response cache
//   - api_cache_misses_total (Counter): Reads that required a network dispatch
//   - api_cache_entries (Gauge): Entries currently held in the cache
//   - api_cache_invalidations_total (Counter): Entries removed by explicit invalidation
//
// In-Flight Metrics (pkg/inflight):
//   - api_inflight_starts_total (Counter): Calls that became the owner of a dispatch
//   - api_inflight_coalesced_total (Counter): Calls that joined an existing dispatch
//   - api_inflight_active (Gauge): Dispatches currently in flight
//
// Cooldown Metrics (pkg/cooldown):
//   - api_cooldown_blocks_total (Counter): Requests refused locally during a cooldown
//   - api_cooldowns_set_total (Counter): Cooldowns recorded after 429 responses
//   - api_cooldown_clears_total (Counter): Cooldowns cleared after a success
//
// Auth Metrics (pkg/auth):
//   - api_auth_refreshes_total (Counter): Token refresh attempts
//   - api_auth_refresh_failures_total (Counter): Refreshes that failed and cleared credentials
//   - api_auth_retries_total (Counter): Requests replayed after a successful refresh
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(api_cache_hits_total[5m])) /
//   (sum(rate(api_cache_hits_total[5m])) + sum(rate(api_cache_misses_total[5m])))
//
//   # Coalescing Effectiveness
//   rate(api_inflight_coalesced_total[5m]) / rate(api_inflight_starts_total[5m])
//
//   # Rate-Limit Pressure
//   rate(api_cooldown_blocks_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))
