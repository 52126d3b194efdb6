// Package audit records one Event per orchestrator invocation (spec.md §7:
// "Logs contain a consistent tag per stage... and sufficient ids... for
// post-mortem correlation"). It is an observability side-channel: nothing
// here is read back into the core transform, so the core stays stateless
// per spec.md §6.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Operation identifies which orchestrator entry point produced the event.
type Operation string

const (
	OpBatchGenerate Operation = "batch-generate"
	OpMergeChain    Operation = "merge-chain"
)

// Status is the outcome of a pipeline invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Event represents a single audit log entry for one API call (one
// orchestrator invocation, which may cover several hosts).
type Event struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Operation     Operation     `json:"operation"`
	HostAddress   string        `json:"host_address,omitempty"`
	TraceIDs      []string      `json:"trace_ids,omitempty"`
	Status        Status        `json:"status"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Duration      time.Duration `json:"duration"`
	ResultNodes   int           `json:"result_nodes"`
	ResultEdges   int           `json:"result_edges"`
	ForcePruned   bool          `json:"force_pruned"`
	ExploreRoots  int           `json:"explore_roots"`
}

// Filter represents filtering criteria for audit events.
type Filter struct {
	Operation   Operation
	HostAddress string
	Status      Status
	StartTime   *time.Time
	EndTime     *time.Time
}

// Sink is the interface for audit event sinks. The in-memory Logger below
// is always active; a Postgres-backed Sink (see store_pg.go) can be layered
// on top for durability across process restarts.
type Sink interface {
	Log(event *Event) error
}

// Logger manages audit events with a circular in-memory buffer.
type Logger struct {
	events     []*Event
	bufferSize int
	index      int
	count      int
	mu         sync.RWMutex

	// downstream is an optional durable sink; failures there are logged but
	// never fail the orchestrator call per spec.md §7's "no exceptions
	// propagate to the caller".
	downstream Sink
}

// NewLogger creates a new audit logger with the given ring-buffer size.
func NewLogger(bufferSize int) *Logger {
	return &Logger{
		events:     make([]*Event, bufferSize),
		bufferSize: bufferSize,
	}
}

// SetDownstream attaches a durable sink events are mirrored to.
func (l *Logger) SetDownstream(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.downstream = sink
}

// Log records an audit event.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	l.events[l.index] = event
	l.index = (l.index + 1) % l.bufferSize
	if l.count < l.bufferSize {
		l.count++
	}
	downstream := l.downstream
	l.mu.Unlock()

	if downstream != nil {
		// Best-effort: a durable-sink failure must not surface to the
		// pipeline caller.
		_ = downstream.Log(event)
	}
	return nil
}

// GetEvents retrieves audit events with optional filtering.
func (l *Logger) GetEvents(filter *Filter) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Event, 0, l.count)
	for i := 0; i < l.count; i++ {
		idx := (l.index - l.count + i + l.bufferSize) % l.bufferSize
		event := l.events[idx]
		if event == nil {
			continue
		}
		if filter != nil {
			if filter.Operation != "" && event.Operation != filter.Operation {
				continue
			}
			if filter.HostAddress != "" && event.HostAddress != filter.HostAddress {
				continue
			}
			if filter.Status != "" && event.Status != filter.Status {
				continue
			}
			if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
				continue
			}
			if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
				continue
			}
		}
		result = append(result, event)
	}
	return result
}

// GetRecentEvents returns the N most recent events.
func (l *Logger) GetRecentEvents(n int) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > l.count {
		n = l.count
	}
	result := make([]*Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.index - 1 - i + l.bufferSize) % l.bufferSize
		if l.events[idx] != nil {
			result = append(result, l.events[idx])
		}
	}
	return result
}

// GetEventCount returns the total number of events currently stored.
func (l *Logger) GetEventCount() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(l.count)
}

// NewSuccessEvent builds a successful-run audit event.
func NewSuccessEvent(op Operation, host string, traceIDs []string, duration time.Duration, nodes, edges int) *Event {
	return &Event{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Operation:   op,
		HostAddress: host,
		TraceIDs:    traceIDs,
		Status:      StatusSuccess,
		Duration:    duration,
		ResultNodes: nodes,
		ResultEdges: edges,
	}
}

// NewFailureEvent builds a failed-run audit event carrying the error kind
// from spec.md §7 (e.g. "NoAlarmsForHost", "StoreUnavailable").
func NewFailureEvent(op Operation, host string, errorKind string, duration time.Duration) *Event {
	return &Event{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		Operation:   op,
		HostAddress: host,
		Status:      StatusFailure,
		ErrorKind:   errorKind,
		Duration:    duration,
	}
}

// String returns a human-readable representation of an event.
func (e *Event) String() string {
	return fmt.Sprintf("[%s] %s host=%s status=%s traces=%v dur=%s",
		e.Timestamp.Format(time.RFC3339), e.Operation, e.HostAddress, e.Status, e.TraceIDs, e.Duration)
}
