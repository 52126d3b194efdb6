// Package validate implements the final-pass graph validator (spec §4.11,
// component C13): it removes structurally invalid edges and breaks any
// remaining simple 2-cycle by a fixed priority rule.
package validate

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// edgePriority ranks an edge's source node for 2-cycle resolution: higher
// wins and its edge survives (spec §4.11 "alarm-source > root-source >
// net-to-endpoint-bridge > else").
func edgePriority(g *graph.Graph, e model.Edge) int {
	src := g.Node(e.Source)
	switch {
	case e.Label == model.EdgeNetToEndpoint:
		return 1
	case src != nil && src.IsAlarm:
		return 3
	case src != nil && src.IsRoot:
		return 2
	default:
		return 0
	}
}

// Validate removes edges with empty or absent endpoints and self-loops on
// non-virtual/non-explore nodes (duplicate (source,target) pairs cannot
// reach it: pkg/graph.AddEdge replaces an existing edge for the same pair
// at insert time, so the last one wins), then detects and
// breaks every simple 2-cycle (A->B and B->A) by removing the
// lower-priority edge (spec §4.11). It is idempotent: running it again
// on its own output is a no-op (spec §8).
func Validate(g *graph.Graph) {
	removeDangling(g)
	removeInvalidSelfLoops(g)
	breakTwoCycles(g)
}

func removeDangling(g *graph.Graph) {
	for _, e := range g.Edges() {
		if e.Source == "" || e.Target == "" {
			g.RemoveEdge(e.Source, e.Target)
			continue
		}
		if !g.HasNode(e.Source) || !g.HasNode(e.Target) {
			g.RemoveEdge(e.Source, e.Target)
		}
	}
}

func removeInvalidSelfLoops(g *graph.Graph) {
	for _, e := range g.Edges() {
		if e.Source != e.Target {
			continue
		}
		n := g.Node(e.Source)
		if n != nil && (n.Virtual || n.NodeType == model.NodeTypeExplore) {
			continue
		}
		g.RemoveEdge(e.Source, e.Target)
	}
}

// breakTwoCycles finds every pair (A,B) with both A->B and B->A present
// and drops the lower-priority edge. Ties (equal priority) are broken by
// dropping the edge whose source has the larger id (spec §4.11 final
// tiebreak).
func breakTwoCycles(g *graph.Graph) {
	seen := make(map[string]struct{})
	for _, e := range g.Edges() {
		if e.Source >= e.Target {
			continue // visit each unordered pair once, from the lexicographically smaller side
		}
		if !g.HasEdge(e.Target, e.Source) {
			continue
		}
		key := e.Source + "|" + e.Target
		if _, done := seen[key]; done {
			continue
		}
		seen[key] = struct{}{}

		forward := e
		backward := findEdge(g, e.Target, e.Source)
		drop := lowerPriority(g, forward, backward)
		g.RemoveEdge(drop.Source, drop.Target)
	}
}

func findEdge(g *graph.Graph, source, target string) model.Edge {
	for _, e := range g.OutEdges(source) {
		if e.Target == target {
			return e
		}
	}
	return model.Edge{Source: source, Target: target}
}

func lowerPriority(g *graph.Graph, a, b model.Edge) model.Edge {
	pa, pb := edgePriority(g, a), edgePriority(g, b)
	if pa != pb {
		if pa < pb {
			return a
		}
		return b
	}
	// final tiebreak: drop the edge whose source has the larger id.
	sources := []string{a.Source, b.Source}
	sort.Strings(sources)
	if a.Source == sources[1] {
		return a
	}
	return b
}
