package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// fetchesTotal counts network fetches started by the coordinator.
	fetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_query_fetches_total",
		Help: "Total query fetches issued",
	})

	// coalescedTotal counts reads that shared an in-flight fetch.
	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_query_coalesced_total",
		Help: "Total reads that shared an in-flight fetch",
	})

	// revalidationsTotal counts background revalidations.
	revalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_query_revalidations_total",
		Help: "Total background revalidations triggered",
	})

	// gcEvictionsTotal counts entries evicted by the janitor.
	gcEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mes_query_gc_evictions_total",
		Help: "Total query entries evicted past the GC window",
	})

	// entriesGauge tracks the live entry count.
	entriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mes_query_entries",
		Help: "Current number of query cache entries",
	})
)
