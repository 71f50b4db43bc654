package edgecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeHits tracks store hits by cache name.
	storeHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_edge_cache_hits_total",
		Help: "Total edge cache hits by cache name",
	}, []string{"cache"})

	// storeMisses tracks store misses by cache name.
	storeMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_edge_cache_misses_total",
		Help: "Total edge cache misses by cache name",
	}, []string{"cache"})

	// storeEvictions tracks entries evicted over the entry limit.
	storeEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_edge_cache_evictions_total",
		Help: "Total edge cache evictions by cache name",
	}, []string{"cache"})

	// storeErrors tracks store operation failures.
	storeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_edge_cache_errors_total",
		Help: "Total edge cache store errors by operation",
	}, []string{"operation"})

	// fallbackServed tracks stale entries served when the network-first
	// path timed out or failed.
	fallbackServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mes_edge_cache_fallbacks_total",
		Help: "Total cached fallbacks served during network outages by cache name",
	}, []string{"cache"})
)
