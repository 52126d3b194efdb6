// Package subgraph implements the subgraph selector (spec §4.4, component
// C6): from the alarm process-guids (optionally filtered by a network-
// association event-id set), traverse the full connected tree containing
// each start and emit the induced subgraph.
package subgraph

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
)

// AlarmStart is the minimal alarm shape the selector needs: which process
// raised it, which trace it belongs to, and its event id (for association
// filtering).
type AlarmStart struct {
	ProcessGuid string
	TraceID     string
	EventID     string
}

// Select computes the start-node set per spec §4.4 and returns the induced
// subgraph of every node reachable from those starts within
// graph.MaxTraverseDepth. associatedEventIDs may be nil/empty, meaning no
// filtering is applied.
//
// Invariant: every trace id present in alarms has at least one start node
// in the result. If association filtering removes every candidate for a
// trace, the lexicographically smallest alarm of that trace is backfilled
// as a start so the trace is never silently dropped (spec §9 OQ1).
func Select(g *graph.Graph, alarms []AlarmStart, associatedEventIDs map[string]struct{}) *graph.Graph {
	byTrace := make(map[string][]AlarmStart)
	for _, a := range alarms {
		byTrace[a.TraceID] = append(byTrace[a.TraceID], a)
	}

	traces := make([]string, 0, len(byTrace))
	for t := range byTrace {
		traces = append(traces, t)
	}
	sort.Strings(traces)

	starts := make(map[string]struct{})
	for _, trace := range traces {
		candidates := byTrace[trace]
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].ProcessGuid < candidates[j].ProcessGuid })

		filtered := candidates
		if len(associatedEventIDs) > 0 {
			filtered = filtered[:0]
			for _, a := range candidates {
				if _, ok := associatedEventIDs[a.EventID]; ok {
					filtered = append(filtered, a)
				}
			}
		}
		if len(filtered) == 0 && len(candidates) > 0 {
			// Backfill: association filtering must never silently drop a
			// trace's subgraph (spec §9 OQ1).
			filtered = candidates[:1]
		}
		for _, a := range filtered {
			starts[a.ProcessGuid] = struct{}{}
		}
	}

	collected := make(map[string]struct{})
	startIDs := make([]string, 0, len(starts))
	for s := range starts {
		startIDs = append(startIDs, s)
	}
	sort.Strings(startIDs)

	for _, s := range startIDs {
		if !g.HasNode(s) {
			continue
		}
		for id := range g.ConnectedTree(s, graph.MaxTraverseDepth) {
			collected[id] = struct{}{}
		}
	}

	return g.Subgraph(collected)
}
