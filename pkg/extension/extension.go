// Package extension implements upward extension (spec §4.9, component
// C11): from each eligible root, query the store for ancestor layers and
// prepend them as extension process nodes.
package extension

import (
	"context"
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/store"
)

// DefaultMaxDepth is the default number of ancestor layers queried above a
// root (spec §4.9).
const DefaultMaxDepth = 2

// Extend walks every root in g that is not an explore node and not broken,
// querying st for up to maxDepth ancestor layers (one store round-trip per
// layer) and prepending each discovered layer as an isExtensionNode process
// node. rootForTrace is updated in place so the topmost extension node
// becomes the new root for its trace, per spec §4.9's "transfer isRoot to
// the topmost extension node".
func Extend(ctx context.Context, g *graph.Graph, st store.Store, rootForTrace map[string]string, maxDepth int) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	roots := g.Index().Roots()
	for _, rootID := range roots {
		root := g.Node(rootID)
		if root == nil || root.NodeType == model.NodeTypeExplore || root.IsBroken {
			continue
		}
		extendRoot(ctx, g, st, rootForTrace, root, maxDepth)
	}
}

func extendRoot(ctx context.Context, g *graph.Graph, st store.Store, rootForTrace map[string]string, root *model.Node, maxDepth int) {
	current := root
	topmost := root

	// One store round-trip per layer: the remaining-depth budget is still
	// passed through so a backend capable of resolving several hops at
	// once can do so, but this loop only consumes the nearest ancestor
	// from each response, keeping layer construction and determinism in
	// our hands rather than depending on response ordering.
	for depth := 1; depth <= maxDepth; depth++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		logs, err := st.QueryLogsByProcessGuids(ctx, current.HostAddress, []string{current.NodeID}, maxDepth-depth+1)
		if err != nil || len(logs) == 0 {
			// Skip when the store returns no ancestors (spec §4.9).
			return
		}

		sort.Slice(logs, func(i, j int) bool { return logs[i].ProcessGuid < logs[j].ProcessGuid })
		ancestorLog := logs[0]
		if ancestorLog.ProcessGuid == "" || g.HasNode(ancestorLog.ProcessGuid) {
			return
		}

		ancestor := model.NewProcessNode(ancestorLog.ProcessGuid)
		ancestor.TraceID = current.TraceID
		ancestor.HostAddress = current.HostAddress
		ancestor.IsExtensionNode = true
		ancestor.ExtensionDepth = depth
		ancestor.AddLog(ancestorLog)
		g.AddNode(ancestor)
		g.AddEdge(model.Edge{Source: ancestor.NodeID, Target: current.NodeID, Label: model.EdgeProcessCreate})

		topmost = ancestor
		current = ancestor
	}

	if topmost != root {
		root.IsRoot = false
		g.Reindex(root.NodeID)
		topmost.IsRoot = true
		g.Reindex(topmost.NodeID)
		rootForTrace[root.TraceID] = topmost.NodeID
	}
}
