package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cluso-security/chaingraph/pkg/metrics"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	alarms    []model.RawAlarm
	alarmsErr error
	logs      []model.RawLog
	logsErr   error
	calls     int
}

func (f *fakeStore) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	f.calls++
	return f.alarms, f.alarmsErr
}

func (f *fakeStore) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error) {
	f.calls++
	return f.logs, f.logsErr
}

func (f *fakeStore) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error) {
	f.calls++
	return f.logs, f.logsErr
}

func TestTieredFallsBackOnStoreUnavailable(t *testing.T) {
	primary := &fakeStore{alarmsErr: model.NewStageError("store.httpstore", model.KindStoreUnavailable, errors.New("boom"))}
	cold := &fakeStore{alarms: []model.RawAlarm{{EventID: "E1"}}}
	tiered := NewTiered(primary, cold, nil)

	alarms, err := tiered.QueryAlarmsByHost(context.Background(), "host-1")

	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, cold.calls)
	assert.Equal(t, "E1", alarms[0].EventID)
}

func TestTieredDoesNotFallBackOnInputInvalid(t *testing.T) {
	primary := &fakeStore{alarmsErr: model.NewStageError("store.httpstore", model.KindInputInvalid, errors.New("bad"))}
	cold := &fakeStore{}
	tiered := NewTiered(primary, cold, nil)

	_, err := tiered.QueryAlarmsByHost(context.Background(), "host-1")

	require.Error(t, err)
	assert.Equal(t, 0, cold.calls, "non store-availability errors must not trigger fallback")
}

func TestTieredReturnsPrimaryResultWhenPrimarySucceeds(t *testing.T) {
	primary := &fakeStore{alarms: []model.RawAlarm{{EventID: "PRIMARY"}}}
	cold := &fakeStore{alarms: []model.RawAlarm{{EventID: "COLD"}}}
	tiered := NewTiered(primary, cold, nil)

	alarms, err := tiered.QueryAlarmsByHost(context.Background(), "host-1")

	require.NoError(t, err)
	assert.Equal(t, "PRIMARY", alarms[0].EventID)
	assert.Equal(t, 0, cold.calls)
}

func TestTieredRecordsFallbackMetric(t *testing.T) {
	primary := &fakeStore{alarmsErr: model.NewStageError("store.httpstore", model.KindStoreUnavailable, errors.New("boom"))}
	cold := &fakeStore{alarms: []model.RawAlarm{{EventID: "E1"}}}
	tiered := NewTiered(primary, cold, nil)
	tiered.Metrics = metrics.NewRegistry()

	_, err := tiered.QueryAlarmsByHost(context.Background(), "host-1")
	require.NoError(t, err)

	mfs, err := tiered.Metrics.GetPrometheusRegistry().Gather()
	require.NoError(t, err)

	var sawFallback, sawStoreQuery bool
	for _, mf := range mfs {
		switch mf.GetName() {
		case "chaingraph_store_cold_tier_fallbacks_total":
			sawFallback = true
		case "chaingraph_store_queries_total":
			sawStoreQuery = true
		}
	}
	assert.True(t, sawFallback, "expected a cold-tier fallback to be recorded")
	assert.True(t, sawStoreQuery, "expected primary and cold queries to be recorded")
}
