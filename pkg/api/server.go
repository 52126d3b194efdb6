// Package api exposes the orchestrator's two operations, plus health and
// metrics endpoints, over HTTP (spec.md §6's external interface). Route
// registration and the middleware chain follow the teacher's generic
// pkg/api/middleware building blocks; the handlers themselves are new,
// since the orchestrator's request/response shapes have nothing to do with
// the teacher's graph-database CRUD surface.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cluso-security/chaingraph/pkg/api/middleware"
	"github.com/cluso-security/chaingraph/pkg/audit"
	"github.com/cluso-security/chaingraph/pkg/graphqlapi"
	"github.com/cluso-security/chaingraph/pkg/health"
	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/metrics"
	"github.com/cluso-security/chaingraph/pkg/orchestrate"
	"github.com/cluso-security/chaingraph/pkg/pubsub"
)

// Server wires the orchestrator and its ambient collaborators to an
// http.Handler.
type Server struct {
	Orchestrator *orchestrate.Orchestrator
	Audit        *audit.Logger
	Metrics      *metrics.Registry
	Health       *health.HealthChecker
	PubSub       *pubsub.PubSub
	Logger       logging.Logger

	// GraphQL serves the read-only introspection endpoint (A5), backed by
	// GraphQLCache.
	GraphQL      http.Handler
	GraphQLCache *graphqlapi.Cache

	// CORS is applied if non-nil; nil disables CORS entirely, matching
	// middleware.DefaultCORSConfig's empty-origins "most secure default".
	CORS *middleware.CORSConfig

	// RateLimit is applied if non-nil.
	RateLimit func(http.Handler) http.Handler
}

// NewServer returns a Server with a no-op logger, an empty in-memory audit
// logger, and a fresh GraphQL cache/schema wired to /graphql.
func NewServer(orch *orchestrate.Orchestrator) *Server {
	cache := graphqlapi.NewCache()
	schema, err := graphqlapi.GenerateSchema(cache)
	s := &Server{
		Orchestrator: orch,
		Audit:        audit.NewLogger(1024),
		Metrics:      metrics.DefaultRegistry(),
		Health:       health.NewHealthChecker(),
		Logger:       logging.NewNopLogger(),
		GraphQLCache: cache,
	}
	if err == nil {
		s.GraphQL = graphqlapi.NewHandler(schema)
	}
	return s
}

// Handler assembles the full route table behind the standard middleware
// chain (recovery outermost, then request id, logging, CORS, metrics,
// optional rate limiting).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /batch-generate", s.handleBatchGenerate)
	mux.HandleFunc("POST /merge-chain", s.handleMergeChain)

	mux.HandleFunc("GET /health", s.Health.HTTPHandler())
	mux.HandleFunc("GET /health/live", s.Health.LivenessHandler())
	mux.HandleFunc("GET /health/ready", s.Health.ReadinessHandler())

	if s.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	}
	if s.GraphQL != nil {
		mux.Handle("POST /graphql", s.GraphQL)
	}

	var handler http.Handler = mux
	if s.RateLimit != nil {
		handler = s.RateLimit(handler)
	}
	if s.Metrics != nil {
		handler = middleware.Metrics(metricsRecorderAdapter{registry: s.Metrics})(handler)
	}
	if s.CORS != nil {
		handler = middleware.CORS(s.CORS)(handler)
	}
	handler = middleware.Logging(middleware.GetRequestID)(handler)
	handler = middleware.RequestID()(handler)
	handler = middleware.PanicRecovery()(handler)
	return handler
}

// logAndRecord writes one audit event and one metrics observation for a
// completed orchestrator call (spec.md §7's per-stage logging requirement,
// applied at the pipeline-invocation boundary).
func (s *Server) logAndRecord(op audit.Operation, host string, start time.Time, result *resultSummary) {
	duration := time.Since(start)
	if s.Metrics != nil {
		status := "success"
		if result == nil {
			status = "failure"
		}
		s.Metrics.RecordPipeline(string(op), status, duration)
		if result != nil {
			s.Metrics.RecordResult(result.nodes, result.edges)
		}
	}
	if s.Audit == nil {
		return
	}
	if result == nil {
		_ = s.Audit.Log(audit.NewFailureEvent(op, host, "", duration))
		return
	}
	_ = s.Audit.Log(audit.NewSuccessEvent(op, host, result.traceIDs, duration, result.nodes, result.edges))
}
