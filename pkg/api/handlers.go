package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cluso-security/chaingraph/pkg/audit"
	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/publish"
)

// resultSummary carries the fields logAndRecord needs without re-walking
// the full Result.
type resultSummary struct {
	traceIDs []string
	nodes    int
	edges    int
}

func summarize(r *model.Result) *resultSummary {
	if r == nil {
		return nil
	}
	return &resultSummary{traceIDs: r.TraceIDs, nodes: len(r.Nodes), edges: len(r.Edges)}
}

// requestHost is a best-effort label for logging/audit: a host marked as
// associated in the relation if there is one, else any host it names (map
// order), or "" if none. A request can name many hosts; only this one is
// recorded as the audit event's host.
func requestHost(rel model.IpMappingRelation) string {
	for ip, assoc := range rel.IPAndAssociation {
		if assoc {
			return ip
		}
	}
	for ip := range rel.IPAndAssociation {
		return ip
	}
	return ""
}

// writeResult writes result as JSON, or the literal JSON null on a nil
// result (spec.md §6/§7: failure is HTTP 200 + null, never an error
// status).
func writeResult(w http.ResponseWriter, result *model.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if result == nil {
		w.Write([]byte("null"))
		return
	}
	_ = json.NewEncoder(w).Encode(result)
}

func badRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

func (s *Server) handleBatchGenerate(w http.ResponseWriter, r *http.Request) {
	var rel batchGenerateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rel); err != nil {
		badRequest(w, "malformed request body: "+err.Error())
		return
	}

	start := time.Now()
	result := s.Orchestrator.BatchGenerate(r.Context(), rel)
	s.logAndRecord(audit.OpBatchGenerate, requestHost(rel), start, summarize(result))
	s.onResult(result)
	s.logRequestOutcome("batch-generate", result)
	writeResult(w, result)
}

func (s *Server) handleMergeChain(w http.ResponseWriter, r *http.Request) {
	var req mergeChainRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "malformed request body: "+err.Error())
		return
	}

	start := time.Now()
	result := s.Orchestrator.MergeChain(r.Context(), req.IpMappingRelation, req.nodes(), req.edges(), req.Incident.toModel())
	s.logAndRecord(audit.OpMergeChain, requestHost(req.IpMappingRelation), start, summarize(result))
	s.onResult(result)
	s.logRequestOutcome("merge-chain", result)
	writeResult(w, result)
}

// onResult fans a completed Result out to the broadcaster (A7) and the
// GraphQL cache (A5). A nil result (pipeline failure) reaches neither.
func (s *Server) onResult(result *model.Result) {
	if result == nil {
		return
	}
	if s.PubSub != nil {
		publish.Publish(s.PubSub, result)
	}
	if s.GraphQLCache != nil {
		s.GraphQLCache.Record(result)
	}
}

func (s *Server) logRequestOutcome(op string, result *model.Result) {
	if s.Logger == nil {
		return
	}
	if result == nil {
		s.Logger.Info("【api】"+op+" returned nil result", logging.Operation(op))
		return
	}
	s.Logger.Info("【api】"+op+" completed",
		logging.Operation(op),
		logging.Count(len(result.Nodes)),
		logging.Any("edges", len(result.Edges)))
}
