package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPipelineMetrics() {
	r.StageRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaingraph_stage_runs_total",
			Help: "Total number of pipeline stage invocations",
		},
		[]string{"stage", "status"},
	)

	r.StageDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaingraph_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	r.StageNodesEmitted = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaingraph_stage_nodes_emitted",
			Help:    "Node count at the output of a pipeline stage",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"stage"},
	)

	r.StageShortCircuits = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaingraph_stage_short_circuits_total",
			Help: "Number of times a stage short-circuited to emit per spec.md §7",
		},
		[]string{"stage", "reason"},
	)

	r.PipelineRunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaingraph_pipeline_runs_total",
			Help: "Total orchestrator invocations (batch-generate/merge-chain)",
		},
		[]string{"operation", "status"},
	)

	r.PipelineDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chaingraph_pipeline_duration_seconds",
			Help:    "End-to-end orchestrator latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	r.PipelineResultNodes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaingraph_result_nodes",
			Help:    "Node count of the emitted Result graph",
			Buckets: []float64{1, 5, 10, 30, 50, 100, 200},
		},
	)

	r.PipelineResultEdges = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chaingraph_result_edges",
			Help:    "Edge count of the emitted Result graph",
			Buckets: []float64{1, 5, 10, 30, 50, 100, 200},
		},
	)

	r.PipelineForcePruned = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chaingraph_force_pruned_total",
			Help: "Number of pipeline runs that triggered the force pruner (C9)",
		},
	)

	r.PipelineExploreRoots = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chaingraph_explore_roots_total",
			Help: "Number of synthetic explore roots created (C10)",
		},
	)

	r.PipelineBridgesApplied = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chaingraph_bridges_applied_total",
			Help: "Number of network-to-endpoint bridge edges created (C12)",
		},
	)
}
