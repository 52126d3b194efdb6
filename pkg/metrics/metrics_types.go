package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the chain-graph service.
type Registry struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Pipeline stage metrics (C1-C14)
	StageRunsTotal     *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	StageNodesEmitted  *prometheus.HistogramVec
	StageShortCircuits *prometheus.CounterVec

	// Orchestrator-level metrics
	PipelineRunsTotal      *prometheus.CounterVec
	PipelineDuration       *prometheus.HistogramVec
	PipelineResultNodes    prometheus.Histogram
	PipelineResultEdges    prometheus.Histogram
	PipelineForcePruned    prometheus.Counter
	PipelineExploreRoots   prometheus.Counter
	PipelineBridgesApplied prometheus.Counter

	// Search-store client metrics
	StoreQueriesTotal *prometheus.CounterVec
	StoreQueryLatency *prometheus.HistogramVec
	StoreFallbacks    prometheus.Counter

	// System metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge
	MemorySysBytes   prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	// defaultRegistry is the global metrics registry.
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initPipelineMetrics()
	r.initStoreMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
