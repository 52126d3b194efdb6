package prune

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
)

// ForceTarget is the force pruner's hard cap (spec §4.7).
const ForceTarget = 30

// ForceThreshold is the node count above which the force pruner runs
// after entity extraction (spec §2 data flow: "(C9 if still >100)").
const ForceThreshold = 100

// MaxTraceIDs bounds how many traces the force pruner keeps (spec §4.7).
const MaxTraceIDs = 3

// ForcePrune deterministically caps g to at most ForceTarget nodes when
// its node count exceeds ForceThreshold. rootForTrace supplies each
// trace's canonical root (from pkg/classify/pkg/explore) for the root-down
// DFS step. Output forms single chains per trace — no branching — per
// spec §4.7.
func ForcePrune(g *graph.Graph, rootForTrace map[string]string) *graph.Graph {
	if g.NodeCount() <= ForceThreshold {
		return g
	}

	traces := tracesByAscendingID(g)
	if len(traces) > MaxTraceIDs {
		traces = traces[:MaxTraceIDs]
	}
	quotas := splitQuota(len(traces))

	keep := make(map[string]struct{})
	for i, trace := range traces {
		ids := g.Index().ByTrace(trace)
		selected := forcePruneTrace(g, trace, quotas[i], ids, rootForTrace[trace])
		for id := range selected {
			keep[id] = struct{}{}
		}
	}

	return g.Subgraph(keep)
}

func tracesByAscendingID(g *graph.Graph) []string {
	traces := g.Index().Traces() // already sorted ascending
	return traces
}

// splitQuota divides ForceTarget evenly across n traces, with the
// remainder assigned to the first trace (spec §4.7 step 2).
func splitQuota(n int) []int {
	if n == 0 {
		return nil
	}
	base := ForceTarget / n
	rem := ForceTarget % n
	quotas := make([]int, n)
	for i := range quotas {
		quotas[i] = base
	}
	quotas[0] += rem
	return quotas
}

func forcePruneTrace(g *graph.Graph, traceID string, quota int, nodeIDs []string, root string) map[string]struct{} {
	selected := make(map[string]struct{}, quota)

	add := func(id string) bool {
		if _, ok := selected[id]; ok {
			return true
		}
		if len(selected) >= quota {
			return false
		}
		selected[id] = struct{}{}
		return true
	}

	// addChain keeps a root-ward prefix of a leaf-to-root path when it
	// would exceed the remaining budget (spec §4.7 step 3a: "If the chain
	// exceeds quota, keep the root-ward prefix").
	addChain := func(path []string) {
		remaining := quota - len(selected)
		if remaining <= 0 {
			return
		}
		if len(path) > remaining {
			path = path[len(path)-remaining:]
		}
		for _, id := range path {
			add(id)
		}
	}

	var processNodes, entityNodes []string
	for _, id := range nodeIDs {
		n := g.Node(id)
		if n == nil {
			continue
		}
		if n.NodeType.IsEntity() {
			entityNodes = append(entityNodes, id)
		} else {
			processNodes = append(processNodes, id)
		}
	}
	sort.Strings(processNodes)
	sort.Strings(entityNodes)

	// 3a. lexicographically smallest network-associated process node,
	// plus its ancestor chain up to the root — a single chain, no forks.
	for _, id := range processNodes {
		if g.Node(id).IsNetworkAssociated {
			addChain(append([]string{id}, g.AncestorChain(id, graph.MaxTraverseDepth)...))
			break
		}
	}

	// 3b. every network-associated entity node, sorted by id, plus its
	// owning process's ancestor chain.
	for _, id := range entityNodes {
		if len(selected) >= quota {
			break
		}
		if !g.Node(id).IsNetworkAssociated {
			continue
		}
		add(id)
		if parents := g.Parents(id); len(parents) > 0 {
			addChain(append([]string{parents[0]}, g.AncestorChain(parents[0], graph.MaxTraverseDepth)...))
		}
	}

	// 3c. root-down DFS following only the lexicographically smallest
	// process child at each step.
	if root != "" && g.HasNode(root) {
		add(root)
		isProcessLike := func(id string) bool {
			n := g.Node(id)
			return n != nil && !n.NodeType.IsEntity()
		}
		for _, id := range g.DescendSmallestChild(root, graph.MaxTraverseDepth, isProcessLike) {
			if !add(id) {
				break
			}
		}
	}

	// 3d. fill residual slots with entity nodes in id order.
	for _, id := range entityNodes {
		if !add(id) {
			break
		}
	}

	return selected
}
