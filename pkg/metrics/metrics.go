// Package metrics provides the centralized Prometheus registry
// reference for the MES edge client. All metrics are defined in their
// respective packages (edgecache, querycache, retry, mutate,
// connectivity) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the edge
// client. All metrics are automatically registered via promauto in
// their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Edge Cache Metrics (pkg/edgecache):
//   - mes_edge_cache_hits_total{cache} (Counter): Store hits by cache name
//   - mes_edge_cache_misses_total{cache} (Counter): Store misses by cache name
//   - mes_edge_cache_evictions_total{cache} (Counter): Entries evicted over the limit
//   - mes_edge_cache_fallbacks_total{cache} (Counter): Stale fallbacks served offline
//   - mes_edge_cache_errors_total{operation} (Counter): Store operation errors
//
// Query Cache Metrics (pkg/querycache):
//   - mes_query_fetches_total (Counter): Fetches issued
//   - mes_query_coalesced_total (Counter): Reads sharing an in-flight fetch
//   - mes_query_revalidations_total (Counter): Background revalidations
//   - mes_query_gc_evictions_total (Counter): Entries evicted past the GC window
//   - mes_query_entries (Gauge): Live entry count
//
// Retry Metrics (pkg/retry):
//   - mes_retries_total{scope} (Counter): Retry attempts by scope
//   - mes_retry_backoff_seconds{scope} (Histogram): Backoff duration by scope
//   - mes_retry_exhausted_total{scope} (Counter): Exhausted retry budgets
//
// Mutation Metrics (pkg/mutate):
//   - mes_mutation_failures_total{mutation} (Counter): Terminal mutation failures
//
// Connectivity Metrics (pkg/connectivity):
//   - mes_connectivity_online (Gauge): 1 online, 0 offline
//   - mes_connectivity_transitions_total{direction} (Counter): State transitions
//
// Example Prometheus Queries:
//
//	# Edge cache hit rate
//	sum(rate(mes_edge_cache_hits_total[5m])) /
//	(sum(rate(mes_edge_cache_hits_total[5m])) + sum(rate(mes_edge_cache_misses_total[5m])))
//
//	# Offline fallback rate
//	rate(mes_edge_cache_fallbacks_total[5m])
//
//	# Mutation failure rate
//	rate(mes_mutation_failures_total[5m])
//
//	# Coalescing effectiveness
//	rate(mes_query_coalesced_total[5m]) / rate(mes_query_fetches_total[5m])
