// Package explore implements the explore synthesizer (spec §4.8, component
// C10): one synthetic root per trace that has broken nodes but no real
// root, wiring every broken node of that trace underneath it.
package explore

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// Synthesize creates an EXPLORE_ROOT_<traceId> node for every trace present
// in brokenToTrace that has no entry in rootForTrace, connects it to every
// broken node of that trace, and updates rootForTrace in place.
func Synthesize(g *graph.Graph, rootForTrace map[string]string, brokenToTrace map[string]string) {
	tracesNeedingRoot := make(map[string]struct{})
	for _, traceID := range brokenToTrace {
		if _, hasRoot := rootForTrace[traceID]; !hasRoot {
			tracesNeedingRoot[traceID] = struct{}{}
		}
	}

	traces := make([]string, 0, len(tracesNeedingRoot))
	for t := range tracesNeedingRoot {
		traces = append(traces, t)
	}
	sort.Strings(traces)

	for _, traceID := range traces {
		rootID := model.ExploreRootID(traceID)
		root := model.NewProcessNode(rootID)
		root.NodeType = model.NodeTypeExplore
		root.TraceID = traceID
		root.IsRoot = true
		g.AddNode(root)
		rootForTrace[traceID] = rootID

		brokenNodes := brokenNodesForTrace(brokenToTrace, traceID)
		if len(brokenNodes) > 0 {
			if first := g.Node(brokenNodes[0]); first != nil {
				root.HostAddress = first.HostAddress
			}
		}
		for _, brokenID := range brokenNodes {
			g.AddEdge(model.Edge{Source: rootID, Target: brokenID, Label: model.EdgeProcessCreate})
		}
	}
}

func brokenNodesForTrace(brokenToTrace map[string]string, traceID string) []string {
	var ids []string
	for nodeID, t := range brokenToTrace {
		if t == traceID {
			ids = append(ids, nodeID)
		}
	}
	sort.Strings(ids)
	return ids
}
