// Package edgecache implements the transport-level response cache for
// factory-floor tablets with unreliable connectivity.
//
// A static rule table declared at process start maps request URL
// patterns to cache behavior, first match wins:
//
//   - Static assets use a cache-first strategy: a valid cached entry is
//     served without a network call; misses fetch and store, bounded by
//     entry count and age (64 entries, 24h by default).
//   - API responses use a network-first strategy with a timeout: the
//     live call is preferred, and only when it fails or exceeds the
//     timeout is the newest non-expired entry served as a fallback
//     (32 entries, 60s by default — live manufacturing data must not be
//     served long past its fetch time).
//
// Eviction is least-recently-stored-first once a cache exceeds its
// entry limit. Responses are stored only when their status is in the
// rule's accepted set.
//
// # Usage
//
//	store, err := edgecache.NewFileStore("")
//	if err != nil {
//		return err
//	}
//
//	transport := edgecache.NewTransport(store, edgecache.DefaultRules(), nil, logger)
//	httpClient := &http.Client{Transport: transport}
//
//	// Hand httpClient to the gateway; requests matching a rule are
//	// now intercepted at the transport boundary.
//
// A Redis-backed store (NewRedisStore) is available where a shared,
// device-wide cache is wanted; both stores persist across process
// restarts, unlike the in-memory query cache layered above them. The
// two layers are independent safety nets, not one cache: the in-memory
// coordinator is consulted first, this layer is only reached on a
// coordinator miss or revalidation fetch.
//
// # Metrics
//
//   - mes_edge_cache_hits_total{cache} / mes_edge_cache_misses_total{cache}
//   - mes_edge_cache_evictions_total{cache}
//   - mes_edge_cache_fallbacks_total{cache} - stale fallbacks served offline
//   - mes_edge_cache_errors_total{operation}
package edgecache
