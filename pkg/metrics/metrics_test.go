package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	require.NotNil(t, r.GetPrometheusRegistry())
}

func TestRecordHTTPRequest(t *testing.T) {
	r := NewRegistry()
	r.RecordHTTPRequest("POST", "/batch-generate", "200", 15*time.Millisecond)

	metricFamilies, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}

func TestRecordStage(t *testing.T) {
	r := NewRegistry()
	r.RecordStage("prune", "ok", 2*time.Millisecond, 42)
	r.RecordShortCircuit("election", "NoAlarmsForHost")

	mfs, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRecordPipelineAndResult(t *testing.T) {
	r := NewRegistry()
	r.RecordPipeline("batch-generate", "ok", 10*time.Millisecond)
	r.RecordResult(30, 29)
	r.PipelineForcePruned.Inc()
	r.PipelineExploreRoots.Inc()
	r.PipelineBridgesApplied.Inc()

	mfs, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestRecordStoreQuery(t *testing.T) {
	r := NewRegistry()
	r.RecordStoreQuery("queryAlarmsByHost", "primary", "ok", 5*time.Millisecond)
	r.StoreFallbacks.Inc()

	mfs, err := r.GetPrometheusRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestDefaultRegistrySingleton(t *testing.T) {
	a := DefaultRegistry()
	b := DefaultRegistry()
	assert.Same(t, a, b)
}
