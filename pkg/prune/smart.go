// Package prune implements the smart pruner (spec §4.5, component C7) and
// the force pruner (spec §4.7, component C9): reducing a subgraph to a
// node-count budget while preserving attack paths, alarm nodes, and
// network-associated evidence.
package prune

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// MaxNodeCount is the smart pruner's target budget (spec §4.5).
const MaxNodeCount = 100

// SmartPrune reduces g to at most MaxNodeCount nodes without severing
// attack paths. If g is already within budget, or if pruning would drop a
// root node (PruneInvariantViolation, spec §7), the original graph is
// returned unchanged.
func SmartPrune(g *graph.Graph) *graph.Graph {
	if g.NodeCount() <= MaxNodeCount {
		return g
	}

	roots := g.Index().Roots()
	keep := make(map[string]struct{})

	for _, id := range mustKeepSet(g) {
		keep[id] = struct{}{}
		for _, ancestor := range g.AncestorChain(id, graph.MaxTraverseDepth) {
			keep[ancestor] = struct{}{}
		}
	}

	if len(keep) < MaxNodeCount {
		fillByScore(g, keep)
	}

	// Post-validate (spec §4.5 step 5, §7 PruneInvariantViolation): every
	// root must survive pruning, or we roll back to the unpruned graph.
	for _, r := range roots {
		if _, ok := keep[r]; !ok {
			return g
		}
	}

	return g.Subgraph(keep)
}

// mustKeepSet returns roots, network-associated alarm nodes, and HIGH/
// MEDIUM-severity alarm nodes, sorted for deterministic cascade order.
func mustKeepSet(g *graph.Graph) []string {
	set := make(map[string]struct{})
	for _, r := range g.Index().Roots() {
		set[r] = struct{}{}
	}
	for _, id := range g.Index().Alarms() {
		n := g.Node(id)
		if n.IsNetworkAssociated || n.ThreatSeverity == model.SeverityHigh || n.ThreatSeverity == model.SeverityMedium {
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fillByScore adds the highest-scoring remaining nodes to keep until the
// budget is reached (spec §4.5 step 3).
func fillByScore(g *graph.Graph, keep map[string]struct{}) {
	type scored struct {
		id    string
		score int
	}
	candidates := make([]scored, 0, g.NodeCount())
	for _, n := range g.Nodes() {
		if _, already := keep[n.NodeID]; already {
			continue
		}
		candidates = append(candidates, scored{n.NodeID, score(g, n)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].id < candidates[j].id
	})

	for _, c := range candidates {
		if len(keep) >= MaxNodeCount {
			return
		}
		keep[c.id] = struct{}{}
	}
}

func score(g *graph.Graph, n *model.Node) int {
	s := 0
	for _, a := range n.Alarms {
		switch a.ThreatSeverity {
		case model.SeverityHigh:
			s += 100
		case model.SeverityMedium:
			s += 50
		default:
			s += 20
		}
	}
	if n.IsNetworkAssociated {
		s += 1000
	}
	if n.IsRoot {
		s += 80
	}
	degree := g.InDegree(n.NodeID) + g.OutDegree(n.NodeID)
	if bonus := 2 * degree; bonus < 30 {
		s += bonus
	} else {
		s += 30
	}
	if len(n.Logs) > 0 {
		s += 10
	}
	for _, l := range n.Logs {
		if l.LogType == model.LogTypeProcess {
			s += 5
			break
		}
	}
	return s
}
