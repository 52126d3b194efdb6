package metrics

import (
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration.
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordStage records one pipeline stage's outcome and latency.
func (r *Registry) RecordStage(stage, status string, duration time.Duration, nodesOut int) {
	r.StageRunsTotal.WithLabelValues(stage, status).Inc()
	r.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	r.StageNodesEmitted.WithLabelValues(stage).Observe(float64(nodesOut))
}

// RecordShortCircuit records a stage short-circuiting to Emit per spec.md §7.
func (r *Registry) RecordShortCircuit(stage, reason string) {
	r.StageShortCircuits.WithLabelValues(stage, reason).Inc()
}

// RecordPipeline records one orchestrator invocation.
func (r *Registry) RecordPipeline(operation, status string, duration time.Duration) {
	r.PipelineRunsTotal.WithLabelValues(operation, status).Inc()
	r.PipelineDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordResult records the size of an emitted Result graph.
func (r *Registry) RecordResult(nodeCount, edgeCount int) {
	r.PipelineResultNodes.Observe(float64(nodeCount))
	r.PipelineResultEdges.Observe(float64(edgeCount))
}

// RecordStoreQuery records a single search-store call.
func (r *Registry) RecordStoreQuery(method, tier, status string, duration time.Duration) {
	r.StoreQueriesTotal.WithLabelValues(method, tier, status).Inc()
	r.StoreQueryLatency.WithLabelValues(method, tier).Observe(duration.Seconds())
}
