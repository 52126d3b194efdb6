package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink persists audit events to PostgreSQL for durability across process
// restarts. It implements Sink and is meant to be attached to a Logger via
// Logger.SetDownstream, alongside the Logger's in-memory ring buffer. No
// HTTP route serves audit events.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink creates a new PostgreSQL-backed audit sink and ensures its
// table exists.
func NewPGSink(ctx context.Context, databaseURL string) (*PGSink, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	s := &PGSink{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *PGSink) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, strings.TrimSpace(`
CREATE TABLE IF NOT EXISTS chaingraph_audit_events (
	id            TEXT PRIMARY KEY,
	ts            TIMESTAMPTZ NOT NULL,
	operation     TEXT NOT NULL,
	host_address  TEXT,
	trace_ids     JSONB,
	status        TEXT NOT NULL,
	error_kind    TEXT,
	duration_ms   BIGINT NOT NULL,
	result_nodes  INT NOT NULL,
	result_edges  INT NOT NULL,
	force_pruned  BOOLEAN NOT NULL,
	explore_roots INT NOT NULL
)`))
	return err
}

// Log inserts one audit event row.
func (s *PGSink) Log(event *Event) error {
	traceIDs, err := json.Marshal(event.TraceIDs)
	if err != nil {
		return fmt.Errorf("marshal trace ids: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = s.pool.Exec(ctx, strings.TrimSpace(`
INSERT INTO chaingraph_audit_events
	(id, ts, operation, host_address, trace_ids, status, error_kind, duration_ms, result_nodes, result_edges, force_pruned, explore_roots)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO NOTHING`),
		event.ID, event.Timestamp, event.Operation, event.HostAddress, traceIDs, event.Status,
		event.ErrorKind, event.Duration.Milliseconds(), event.ResultNodes, event.ResultEdges,
		event.ForcePruned, event.ExploreRoots)
	return err
}

// Close releases the underlying connection pool.
func (s *PGSink) Close() {
	s.pool.Close()
}
