package api

import (
	"time"

	"github.com/cluso-security/chaingraph/pkg/metrics"
)

// metricsRecorderAdapter satisfies middleware.MetricsRecorder by delegating
// to the fields of a *metrics.Registry, which exposes Prometheus collectors
// directly rather than through method names matching the middleware
// package's interface.
type metricsRecorderAdapter struct {
	registry *metrics.Registry
}

func (a metricsRecorderAdapter) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	a.registry.RecordHTTPRequest(method, path, status, duration)
}

func (a metricsRecorderAdapter) RecordResponseSize(method, path string, size float64) {
	a.registry.HTTPResponseSizeBytes.WithLabelValues(method, path).Observe(size)
}

func (a metricsRecorderAdapter) IncHTTPRequestsInFlight() {
	a.registry.HTTPRequestsInFlight.Inc()
}

func (a metricsRecorderAdapter) DecHTTPRequestsInFlight() {
	a.registry.HTTPRequestsInFlight.Dec()
}
