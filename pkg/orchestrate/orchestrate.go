// Package orchestrate implements the per-host pipeline state machine and
// the two public operations (spec §4.12, component C14): batch-generate
// (endpoint graph per host, unioned) and merge-chain (endpoint union plus
// a supplied network story graph).
package orchestrate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cluso-security/chaingraph/pkg/bridge"
	"github.com/cluso-security/chaingraph/pkg/classify"
	"github.com/cluso-security/chaingraph/pkg/election"
	"github.com/cluso-security/chaingraph/pkg/entity"
	"github.com/cluso-security/chaingraph/pkg/explore"
	"github.com/cluso-security/chaingraph/pkg/extension"
	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/ingest"
	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/metrics"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/prune"
	"github.com/cluso-security/chaingraph/pkg/store"
	"github.com/cluso-security/chaingraph/pkg/subgraph"
	"github.com/cluso-security/chaingraph/pkg/validate"
)

// DefaultMaxConcurrentHosts bounds the per-host worker pool (spec §5: "the
// orchestrator may process multiple hosts in parallel").
const DefaultMaxConcurrentHosts = 8

// Incident carries the network-side role-correction context for
// merge-chain (spec §4.10 step 2).
type Incident struct {
	FocusObject model.NetworkRole
	FocusIP     string
}

// Orchestrator runs the C14 state machine against a search-store
// collaborator.
type Orchestrator struct {
	Store              store.Store
	Logger             logging.Logger
	Metrics            *metrics.Registry
	MaxExtensionDepth  int
	MaxConcurrentHosts int
}

// New returns an Orchestrator. logger may be nil (defaults to a no-op
// logger).
func New(st store.Store, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Orchestrator{
		Store:              st,
		Logger:             logger,
		MaxExtensionDepth:  extension.DefaultMaxDepth,
		MaxConcurrentHosts: DefaultMaxConcurrentHosts,
	}
}

// hostOutcome is the per-host pipeline result up to (but not including)
// Validate, which the caller applies once to the merged graph.
type hostOutcome struct {
	host         string
	graph        *graph.Graph
	rootForTrace map[string]string
	electedTrace string
}

// BatchGenerate runs the per-host pipeline for every host named in rel and
// unions the results into one Result (spec §4.12 "batch-generate": endpoint
// graph per host union). Returns nil on InputInvalid (spec §7): an empty ip
// map carries no hosts to process.
func (o *Orchestrator) BatchGenerate(ctx context.Context, rel model.IpMappingRelation) *model.Result {
	if rel.IsEmpty() {
		o.Logger.Warn("【orchestrate】empty ip mapping relation, returning nil result")
		return nil
	}

	hosts := hostsFromRelation(rel)
	associatedEventIDs := AssociatedEventIDsOf(rel)
	outcomes := o.runHosts(ctx, hosts, associatedEventIDs)

	merged, _, _ := mergeOutcomes(outcomes)
	validate.Validate(merged)
	return buildResult(merged)
}

// MergeChain runs the same per-host pipeline as BatchGenerate, then merges
// in the supplied network story nodes/edges, bridges story victims onto
// endpoint roots, optionally applies role correction for incident, and
// validates once more (spec §4.12 "merge-chain": endpoint + supplied
// network story).
func (o *Orchestrator) MergeChain(ctx context.Context, rel model.IpMappingRelation, networkNodes []*model.Node, networkEdges []model.Edge, incident *Incident) *model.Result {
	if rel.IsEmpty() {
		o.Logger.Warn("【orchestrate】empty ip mapping relation, returning nil result")
		return nil
	}
	if incident != nil && incident.FocusObject != model.RoleAttacker && incident.FocusObject != model.RoleVictim {
		o.Logger.Warn("【orchestrate】unsupported focusObject, returning nil result",
			logging.Field{Key: "focusObject", Value: string(incident.FocusObject)})
		return nil
	}

	hosts := hostsFromRelation(rel)
	associatedEventIDs := AssociatedEventIDsOf(rel)
	outcomes := o.runHosts(ctx, hosts, associatedEventIDs)

	merged, rootForTrace, hostToTrace := mergeOutcomes(outcomes)

	for _, n := range networkNodes {
		merged.AddNode(n)
	}
	for _, e := range networkEdges {
		merged.AddEdge(e)
	}

	edgesBefore := merged.EdgeCount()
	bridge.BridgeVictims(merged, hostToTrace, rootForTrace, o.Logger)
	if o.Metrics != nil {
		for i := 0; i < merged.EdgeCount()-edgesBefore; i++ {
			o.Metrics.PipelineBridgesApplied.Inc()
		}
	}
	if incident != nil {
		bridge.CorrectRoles(merged, incident.FocusObject, incident.FocusIP)
	}

	// The validator only removes edges, never nodes, so there is nothing
	// to roll back here even though this runs after node-mutating bridge
	// steps.
	validate.Validate(merged)
	return buildResult(merged)
}

// AssociatedEventIDsOf is the public entry point pkg/orchestrate uses to
// derive the network-association event-id set from an IpMappingRelation
// (spec §4.6), exported so HTTP handlers can precompute it once per
// request if they need it outside the orchestrator too.
func AssociatedEventIDsOf(rel model.IpMappingRelation) map[string]struct{} {
	return ingest.AssociatedEventIDs(rel)
}

// runHosts fans the per-host pipeline out across a bounded worker pool
// (spec §5) and collects every host's outcome; a host whose pipeline
// short-circuits contributes an empty/nil graph entry rather than
// aborting the whole batch.
func (o *Orchestrator) runHosts(ctx context.Context, hosts []string, associatedEventIDs map[string]struct{}) []hostOutcome {
	limit := o.MaxConcurrentHosts
	if limit <= 0 {
		limit = DefaultMaxConcurrentHosts
	}

	sem := make(chan struct{}, limit)
	results := make([]hostOutcome, len(hosts))
	var wg sync.WaitGroup

	for i, host := range hosts {
		wg.Add(1)
		go func(i int, host string) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()
			results[i] = o.runHost(ctx, host, associatedEventIDs)
		}(i, host)
	}
	wg.Wait()

	return results
}

// runHost executes one host through the pipeline up to (and not
// including) Validate: QueryAlarms -> Elect -> QueryLogs -> BuildGraph ->
// Classify -> Subgraph -> Prune -> ExtractEntities -> FilterEntities ->
// ForcePrune -> ExploreSynth -> Extend (spec §4.12). Any stage
// returning empty short-circuits this host to an empty outcome; other
// hosts are unaffected (spec §7).
func (o *Orchestrator) runHost(ctx context.Context, host string, associatedEventIDs map[string]struct{}) hostOutcome {
	empty := hostOutcome{host: host}

	stageStart := time.Now()
	alarms, err := o.Store.QueryAlarmsByHost(ctx, host)
	if err != nil {
		o.recordStage("queryAlarmsByHost", "error", stageStart, 0)
		o.logStageError("queryAlarmsByHost", host, err)
		return empty
	}
	if len(alarms) == 0 {
		o.recordStage("queryAlarmsByHost", "empty", stageStart, 0)
		o.recordShortCircuit("queryAlarmsByHost", string(model.KindNoAlarmsForHost))
		o.logSkip("queryAlarmsByHost", host, model.KindNoAlarmsForHost)
		return empty
	}
	o.recordStage("queryAlarmsByHost", "ok", stageStart, len(alarms))

	candidates := make(map[string][]model.RawAlarm)
	for _, a := range alarms {
		candidates[a.TraceID] = append(candidates[a.TraceID], a)
	}
	stageStart = time.Now()
	traceID, ok := election.Elect(candidates)
	if !ok {
		o.recordStage("elect", "empty", stageStart, 0)
		o.recordShortCircuit("elect", string(model.KindElectionFailed))
		o.logSkip("elect", host, model.KindElectionFailed)
		return empty
	}
	o.recordStage("elect", "ok", stageStart, 0)

	electedAlarms := candidates[traceID]
	alarmTime := earliestAlarmTime(electedAlarms).StartTime

	stageStart = time.Now()
	logs, err := o.Store.QueryLogsByTraceIDAndHost(ctx, traceID, host, alarmTime)
	if err != nil {
		o.recordStage("queryLogsByTraceIdAndHost", "error", stageStart, 0)
		o.logStageError("queryLogsByTraceIdAndHost", host, err)
		return empty
	}
	o.recordStage("queryLogsByTraceIdAndHost", "ok", stageStart, len(logs))

	stageStart = time.Now()
	g := ingest.Build(electedAlarms, logs)
	ingest.MarkAssociations(g, associatedEventIDs)
	cls := classify.Classify(g)
	o.recordStage("classify", "ok", stageStart, g.NodeCount())

	starts := make([]subgraph.AlarmStart, 0, len(electedAlarms))
	for _, a := range electedAlarms {
		starts = append(starts, subgraph.AlarmStart{ProcessGuid: a.ProcessGuid, TraceID: a.TraceID, EventID: a.EventID})
	}
	stageStart = time.Now()
	g = subgraph.Select(g, starts, associatedEventIDs)
	o.recordStage("subgraph", "ok", stageStart, g.NodeCount())

	stageStart = time.Now()
	before := g.NodeCount()
	g = prune.SmartPrune(g)
	if before > prune.MaxNodeCount && g.NodeCount() > prune.MaxNodeCount {
		// SmartPrune's result is still over budget: the must-keep nodes
		// and their ancestor chains alone exceed MaxNodeCount, or its
		// post-check rolled back to the unpruned graph because a root
		// would have been dropped (spec §7 PruneInvariantViolation).
		// Continue with that graph rather than fail the host.
		o.Logger.Warn("【orchestrate】smart prune left graph over budget, continuing",
			logging.Field{Key: "host", Value: host}, logging.Field{Key: "trace", Value: traceID})
	}
	o.recordStage("smartPrune", "ok", stageStart, g.NodeCount())

	stageStart = time.Now()
	entity.Extract(g, associatedEventIDs)
	entity.Filter(g)
	o.recordStage("entity", "ok", stageStart, g.NodeCount())

	stageStart = time.Now()
	beforeForce := g.NodeCount()
	g = prune.ForcePrune(g, cls.RootForTrace)
	if g.NodeCount() < beforeForce && o.Metrics != nil {
		o.Metrics.PipelineForcePruned.Inc()
	}
	o.recordStage("forcePrune", "ok", stageStart, g.NodeCount())

	stageStart = time.Now()
	rootsBefore := len(cls.RootForTrace)
	explore.Synthesize(g, cls.RootForTrace, cls.BrokenToTrace)
	if o.Metrics != nil {
		for i := 0; i < len(cls.RootForTrace)-rootsBefore; i++ {
			o.Metrics.PipelineExploreRoots.Inc()
		}
	}
	o.recordStage("explore", "ok", stageStart, g.NodeCount())

	stageStart = time.Now()
	extension.Extend(ctx, g, o.Store, cls.RootForTrace, o.MaxExtensionDepth)
	o.recordStage("extend", "ok", stageStart, g.NodeCount())

	return hostOutcome{host: host, graph: g, rootForTrace: cls.RootForTrace, electedTrace: traceID}
}

// recordStage is a no-op when no metrics registry is configured.
func (o *Orchestrator) recordStage(stage, status string, start time.Time, nodesOut int) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordStage(stage, status, time.Since(start), nodesOut)
}

func (o *Orchestrator) recordShortCircuit(stage, reason string) {
	if o.Metrics == nil {
		return
	}
	o.Metrics.RecordShortCircuit(stage, reason)
}

func (o *Orchestrator) logStageError(stage, host string, err error) {
	var stageErr *model.StageError
	kind := model.KindInternal
	if errors.As(err, &stageErr) {
		kind = stageErr.Kind
	}
	o.Logger.Error("【orchestrate】stage failed, short-circuiting host",
		logging.Field{Key: "stage", Value: stage},
		logging.Field{Key: "host", Value: host},
		logging.Field{Key: "kind", Value: string(kind)},
		logging.Field{Key: "error", Value: err.Error()},
	)
}

func (o *Orchestrator) logSkip(stage, host string, kind model.ErrorKind) {
	o.Logger.Info("【orchestrate】host contributes no nodes",
		logging.Field{Key: "stage", Value: stage},
		logging.Field{Key: "host", Value: host},
		logging.Field{Key: "kind", Value: string(kind)},
	)
}

// hostsFromRelation derives the set of hosts to process from the ip
// mapping relation: every ip named anywhere in the relation is a host in
// this domain's endpoint/ip identification scheme (spec §4.10's
// victim.ip == host match relies on the same identification).
func hostsFromRelation(rel model.IpMappingRelation) []string {
	set := make(map[string]struct{})
	for ip := range rel.IPAndAssociation {
		set[ip] = struct{}{}
	}
	for ip := range rel.AlarmIPs {
		set[ip] = struct{}{}
	}
	for ip := range rel.Logs {
		set[ip] = struct{}{}
	}
	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

func earliestAlarmTime(alarms []model.RawAlarm) model.RawAlarm {
	var earliest model.RawAlarm
	for i, a := range alarms {
		if i == 0 || a.StartTime.Before(earliest.StartTime) {
			earliest = a
		}
	}
	return earliest
}

// mergeOutcomes unions every host's graph into one, and builds the
// combined rootForTrace and host->trace maps the later bridge/validate/
// emit stages need.
func mergeOutcomes(outcomes []hostOutcome) (*graph.Graph, map[string]string, map[string]string) {
	merged := graph.New()
	rootForTrace := make(map[string]string)
	hostToTrace := make(map[string]string)

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].host < outcomes[j].host })

	for _, o := range outcomes {
		if o.graph == nil {
			continue
		}
		for _, n := range o.graph.Nodes() {
			merged.AddNode(n)
		}
		for _, e := range o.graph.Edges() {
			merged.AddEdge(e)
		}
		for trace, root := range o.rootForTrace {
			if _, have := rootForTrace[trace]; !have {
				rootForTrace[trace] = root
			}
		}
		if o.electedTrace != "" {
			hostToTrace[o.host] = o.electedTrace
		}
	}

	return merged, rootForTrace, hostToTrace
}

// buildResult projects the assembled graph into the wire Result shape
// (spec §6.3). childrenCount is computed here, once, after any C12
// bridging has added its edges (spec §9 OQ2: bridging edges count toward
// childrenCount).
func buildResult(g *graph.Graph) *model.Result {
	nodes := g.Nodes()
	if len(nodes) == 0 {
		return nil
	}

	result := &model.Result{
		Nodes: make([]model.ResultNode, 0, len(nodes)),
		Edges: make([]model.ResultEdge, 0, g.EdgeCount()),
	}

	traceSet := make(map[string]struct{})
	hostSet := make(map[string]struct{})
	for _, n := range nodes {
		if n.TraceID != "" {
			traceSet[n.TraceID] = struct{}{}
		}
		if n.HostAddress != "" {
			hostSet[n.HostAddress] = struct{}{}
		}
		if n.IsRoot {
			result.FoundRootNode = true
		}
		if n.ThreatSeverity.Rank() > result.ThreatSeverity.Rank() {
			result.ThreatSeverity = n.ThreatSeverity
		}
		result.Nodes = append(result.Nodes, model.BuildResultNode(n, g.OutDegree(n.NodeID)))
	}

	for _, e := range g.Edges() {
		result.Edges = append(result.Edges, model.ResultEdge{Source: e.Source, Target: e.Target, Val: e.Label})
	}

	result.TraceIDs = sortedKeySet(traceSet)
	result.HostAddresses = sortedKeySet(hostSet)
	return result
}

func sortedKeySet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
