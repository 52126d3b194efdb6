package store

import (
	"context"
	"errors"
	"time"

	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/metrics"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// Tiered composes a primary Store with a cold-tier fallback: every method
// tries primary first, and falls back only when primary fails with
// StoreUnavailable or StoreQueryFailed (spec §7), propagating the
// fallback's own error kind untouched if it fails too.
type Tiered struct {
	Primary Store
	Cold    Store
	Logger  logging.Logger
	Metrics *metrics.Registry
}

// NewTiered returns a Tiered store. logger may be nil.
func NewTiered(primary, cold Store, logger logging.Logger) *Tiered {
	return &Tiered{Primary: primary, Cold: cold, Logger: logger}
}

func (t *Tiered) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	start := time.Now()
	alarms, err := t.Primary.QueryAlarmsByHost(ctx, host)
	if !t.shouldFallBack(err) {
		t.recordQuery("queryAlarmsByHost", "primary", err, start)
		return alarms, err
	}
	t.recordQuery("queryAlarmsByHost", "primary", err, start)
	t.logFallback("queryAlarmsByHost", host, err)
	t.recordFallback()

	start = time.Now()
	alarms, err = t.Cold.QueryAlarmsByHost(ctx, host)
	t.recordQuery("queryAlarmsByHost", "cold", err, start)
	return alarms, err
}

func (t *Tiered) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error) {
	start := time.Now()
	logs, err := t.Primary.QueryLogsByTraceIDAndHost(ctx, traceID, host, alarmTime)
	if !t.shouldFallBack(err) {
		t.recordQuery("queryLogsByTraceIdAndHost", "primary", err, start)
		return logs, err
	}
	t.recordQuery("queryLogsByTraceIdAndHost", "primary", err, start)
	t.logFallback("queryLogsByTraceIdAndHost", host, err)
	t.recordFallback()

	start = time.Now()
	logs, err = t.Cold.QueryLogsByTraceIDAndHost(ctx, traceID, host, alarmTime)
	t.recordQuery("queryLogsByTraceIdAndHost", "cold", err, start)
	return logs, err
}

func (t *Tiered) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error) {
	start := time.Now()
	logs, err := t.Primary.QueryLogsByProcessGuids(ctx, host, parentGuids, maxDepth)
	if !t.shouldFallBack(err) {
		t.recordQuery("queryLogsByProcessGuids", "primary", err, start)
		return logs, err
	}
	t.recordQuery("queryLogsByProcessGuids", "primary", err, start)
	t.logFallback("queryLogsByProcessGuids", host, err)
	t.recordFallback()

	start = time.Now()
	logs, err = t.Cold.QueryLogsByProcessGuids(ctx, host, parentGuids, maxDepth)
	t.recordQuery("queryLogsByProcessGuids", "cold", err, start)
	return logs, err
}

func (t *Tiered) recordQuery(method, tier string, err error, start time.Time) {
	if t.Metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.Metrics.RecordStoreQuery(method, tier, status, time.Since(start))
}

func (t *Tiered) recordFallback() {
	if t.Metrics == nil {
		return
	}
	t.Metrics.StoreFallbacks.Inc()
}

func (t *Tiered) shouldFallBack(err error) bool {
	if err == nil || t.Cold == nil {
		return false
	}
	var stageErr *model.StageError
	if !errors.As(err, &stageErr) {
		return false
	}
	return stageErr.Kind == model.KindStoreUnavailable || stageErr.Kind == model.KindStoreQueryFailed
}

func (t *Tiered) logFallback(op, host string, err error) {
	if t.Logger == nil {
		return
	}
	t.Logger.Warn("【store】falling back to cold tier",
		logging.Field{Key: "op", Value: op},
		logging.Field{Key: "host", Value: host},
		logging.Field{Key: "error", Value: err.Error()},
	)
}
