package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStoreMetrics() {
	r.StoreQueriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaingraph_store_queries_total",
			Help: "Total search-store queries by method and outcome",
		},
		[]string{"method", "tier", "status"},
	)

	r.StoreQueryLatency = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaingraph_store_query_duration_seconds",
			Help:    "Search-store query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "tier"},
	)

	r.StoreFallbacks = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chaingraph_store_cold_tier_fallbacks_total",
			Help: "Number of times the cold-tier (S3) store was used after the primary store failed",
		},
	)
}
