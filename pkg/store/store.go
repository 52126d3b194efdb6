// Package store defines the read-only search-store collaborator the core
// pipeline consumes (spec §6) and its two concrete implementations:
// httpstore (primary) and s3store (cold-tier fallback), composed by
// Tiered.
package store

import (
	"context"
	"time"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// Store is the three-method read-only capability the core pipeline
// consumes from an external search-store collaborator (spec §6). No
// implementation here persists pipeline state; each method is a stateless
// query.
type Store interface {
	// QueryAlarmsByHost returns the relevant-time-window alarms for host.
	QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error)

	// QueryLogsByTraceIDAndHost returns the process/entity logs for a
	// trace on a host, scoped around alarmTime.
	QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error)

	// QueryLogsByProcessGuids returns ancestor logs for upward extension
	// (spec §4.9), up to maxDepth layers above parentGuids.
	QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error)
}
