package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/orchestrate"
)

type fakeStore struct {
	alarmsByHost map[string][]model.RawAlarm
	logsByTrace  map[string][]model.RawLog
}

func (f *fakeStore) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	return f.alarmsByHost[host], nil
}

func (f *fakeStore) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error) {
	return f.logsByTrace[traceID], nil
}

func (f *fakeStore) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error) {
	return nil, nil
}

func newTestServer() *Server {
	st := &fakeStore{
		alarmsByHost: map[string][]model.RawAlarm{
			"10.0.0.1": {
				{EventID: "E1", TraceID: "T1", HostAddress: "10.0.0.1", ProcessGuid: "T1", AlarmName: "mal", ThreatSeverity: model.SeverityHigh, StartTime: time.Unix(1, 0)},
			},
		},
		logsByTrace: map[string][]model.RawLog{
			"T1": {
				{TraceID: "T1", HostAddress: "10.0.0.1", ProcessGuid: "T1", ProcessName: "malware.exe", LogType: model.LogTypeProcess, StartTime: time.Unix(1, 0)},
			},
		},
	}
	return NewServer(orchestrate.New(st, nil))
}

func TestBatchGenerateReturnsResultForKnownHost(t *testing.T) {
	s := newTestServer()
	body := `{"ipAndAssociation":{"10.0.0.1":false},"alarmIps":{},"logs":{}}`
	req := httptest.NewRequest(http.MethodPost, "/batch-generate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.TraceIDs, "T1")
}

func TestBatchGenerateReturnsNullOnEmptyRelation(t *testing.T) {
	s := newTestServer()
	body := `{"ipAndAssociation":{},"alarmIps":{},"logs":{}}`
	req := httptest.NewRequest(http.MethodPost, "/batch-generate", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestBatchGenerateRejectsMalformedJSON(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/batch-generate", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeChainAcceptsNetworkStoryNodes(t *testing.T) {
	s := newTestServer()
	body := `{
		"networkNodes":[{"nodeId":"story-1","traceId":"T1","networkRole":"victim","storyNodeType":"srcNode","ip":"10.0.0.1"}],
		"networkEdges":[],
		"ipMappingRelation":{"ipAndAssociation":{"10.0.0.1":false},"alarmIps":{},"logs":{}}
	}`
	req := httptest.NewRequest(http.MethodPost, "/merge-chain", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.TraceIDs, "T1")
}

func TestHealthEndpointsServeWithoutRegisteredChecks(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
