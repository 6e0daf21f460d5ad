// Package metrics provides the centralized Prometheus metrics registry
// for the accession resolver. All metrics are defined in their respective
// packages (entrez, resolver, ratelimit, cache) to maintain modularity
// and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the resolver.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Lookup Metrics (pkg/entrez):
//   - entrez_requests_total{endpoint, status} (Counter): Total eutils requests by endpoint and HTTP status
//   - entrez_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - entrez_rate_limit_backoffs_total{endpoint} (Counter): Payload-level rate limit backoffs
//   - entrez_rate_limit_backoff_seconds (Histogram): Backoff durations for payload-level retries
//
// Resolution Metrics (pkg/resolver):
//   - resolver_terms_total{outcome} (Counter): Resolved terms by outcome (resolved, not_found, exhausted, aborted)
//   - resolver_retries_total (Counter): Term-level retry attempts
//   - resolver_retry_backoff_seconds (Histogram): Term-level backoff durations
//
// Concurrency Metrics (pkg/ratelimit):
//   - resolver_lookups_in_flight (Gauge): Lookup sequences currently holding a permit
//
// Cache Metrics (pkg/cache):
//   - resolver_cache_hits_total{layer="redis"} (Counter): Summary cache hits
//   - resolver_cache_misses_total (Counter): Summary cache misses
//   - resolver_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(resolver_cache_hits_total[5m])) /
//   (sum(rate(resolver_cache_hits_total[5m])) + sum(rate(resolver_cache_misses_total[5m])))
//
//   # Share of terms that resolved to an accession
//   rate(resolver_terms_total{outcome="resolved"}[5m]) /
//   sum(rate(resolver_terms_total[5m]))
//
//   # P95 Lookup Latency
//   histogram_quantile(0.95, rate(entrez_request_duration_seconds_bucket[5m]))
//
//   # Upstream rate limiting pressure
//   rate(entrez_rate_limit_backoffs_total[5m])
