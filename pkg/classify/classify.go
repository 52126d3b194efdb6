// Package classify implements the root/broken identifier (spec §4.3,
// component C5): classifying every in-degree-zero node as a virtual-root,
// real-root, broken, or plain root, and building the traceId->root map.
package classify

import (
	"strings"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

const virtualRootParentPrefix = "VIRTUAL_ROOT_PARENT_"

// Result is the outcome of classifying one graph: the first-encountered
// root per trace, and the trace each broken node belongs to.
type Result struct {
	RootForTrace  map[string]string
	BrokenToTrace map[string]string
}

// Classify walks every in-degree-zero node in deterministic (sorted-id)
// order and applies spec §4.3's four-way rule, mutating each node's
// IsRoot/IsBroken flags in place and reindexing it. Multiple roots can
// exist per trace; RootForTrace keeps the first one encountered, but
// every qualifying node still gets IsRoot=true.
func Classify(g *graph.Graph) Result {
	res := Result{RootForTrace: make(map[string]string), BrokenToTrace: make(map[string]string)}

	for _, n := range g.Nodes() {
		if g.InDegree(n.NodeID) != 0 {
			continue
		}

		switch {
		case strings.HasPrefix(n.NodeID, virtualRootParentPrefix):
			markRoot(g, n, res.RootForTrace)

		case n.NodeID == n.TraceID:
			// A processGuid equal to its own traceId is authoritative as
			// a root even if it carries a (self-referencing) parent.
			markRoot(g, n, res.RootForTrace)

		case n.ParentProcessGuid != "" && !g.HasNode(n.ParentProcessGuid):
			n.IsBroken = true
			g.Reindex(n.NodeID)
			res.BrokenToTrace[n.NodeID] = n.TraceID

		default:
			markRoot(g, n, res.RootForTrace)
		}
	}

	return res
}

func markRoot(g *graph.Graph, n *model.Node, rootForTrace map[string]string) {
	n.IsRoot = true
	g.Reindex(n.NodeID)
	if _, have := rootForTrace[n.TraceID]; !have {
		rootForTrace[n.TraceID] = n.NodeID
	}
}
