package prune

import (
	"fmt"
	"testing"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/stretchr/testify/assert"
)

func chainProcess(id, traceID string, isRoot bool) *model.Node {
	n := model.NewProcessNode(id)
	n.TraceID = traceID
	n.IsRoot = isRoot
	return n
}

// TestSmartPruneKeepsRootsAndNetworkAssociatedAlarmNodes covers spec
// scenario S5: must-keep nodes and their ancestor chains survive even
// when the fill-by-score pass never reaches them.
func TestSmartPruneKeepsRootsAndNetworkAssociatedAlarmNodes(t *testing.T) {
	g := graph.New()
	root := chainProcess("ROOT", "T1", true)
	g.AddNode(root)

	prev := "ROOT"
	for i := 0; i < MaxNodeCount+10; i++ {
		id := fmt.Sprintf("N%03d", i)
		n := chainProcess(id, "T1", false)
		g.AddNode(n)
		g.AddEdge(model.Edge{Source: prev, Target: id})
		prev = id
	}

	associated := chainProcess("ASSOC", "T1", false)
	associated.IsNetworkAssociated = true
	associated.AddAlarm(model.RawAlarm{EventID: "E1", ProcessGuid: "ASSOC", TraceID: "T1", ThreatSeverity: model.SeverityLow})
	g.AddNode(associated)
	g.AddEdge(model.Edge{Source: "ROOT", Target: "ASSOC"})
	g.Reindex("ASSOC")

	out := SmartPrune(g)

	assert.LessOrEqual(t, out.NodeCount(), MaxNodeCount)
	assert.True(t, out.HasNode("ROOT"), "root must survive smart pruning")
	assert.True(t, out.HasNode("ASSOC"), "network-associated alarm node must survive smart pruning")
}

func TestSmartPruneNoOpUnderBudget(t *testing.T) {
	g := graph.New()
	g.AddNode(chainProcess("A", "T1", true))
	g.AddNode(chainProcess("B", "T1", false))
	g.AddEdge(model.Edge{Source: "A", Target: "B"})

	out := SmartPrune(g)
	assert.Equal(t, g, out, "graph within budget is returned unchanged")
}

func TestSmartPruneRollsBackOnInvariantViolation(t *testing.T) {
	g := graph.New()
	root := chainProcess("ROOT", "T1", true)
	g.AddNode(root)

	for i := 0; i < MaxNodeCount+10; i++ {
		id := fmt.Sprintf("N%03d", i)
		n := chainProcess(id, "T1", false)
		n.AddAlarm(model.RawAlarm{EventID: fmt.Sprintf("E%03d", i), ProcessGuid: id, TraceID: "T1", ThreatSeverity: model.SeverityHigh})
		g.AddNode(n)
		g.Reindex(id)
		// Deliberately never edge ROOT into the graph's must-keep cascade:
		// ROOT stays disconnected from every alarm node, so the
		// ancestor-chain cascade from must-keep ids never reaches it and
		// fillByScore has no reason to pick a node with zero score.
	}

	out := SmartPrune(g)
	assert.Equal(t, g, out, "rollback returns the original graph when a root would be dropped")
}

// TestForcePruneBuildsSingleChainPerTrace covers spec scenario S6: output
// forms single chains per trace, never branching subtrees.
func TestForcePruneBuildsSingleChainPerTrace(t *testing.T) {
	g := graph.New()
	root := chainProcess("ROOT", "T1", true)
	g.AddNode(root)

	prev := "ROOT"
	for i := 0; i < ForceThreshold+5; i++ {
		id := fmt.Sprintf("N%03d", i)
		n := chainProcess(id, "T1", false)
		g.AddNode(n)
		g.AddEdge(model.Edge{Source: prev, Target: id})
		prev = id
	}

	out := ForcePrune(g, map[string]string{"T1": "ROOT"})

	assert.LessOrEqual(t, out.NodeCount(), ForceTarget)
	assert.True(t, out.HasNode("ROOT"))
	for _, id := range out.Nodes() {
		assert.LessOrEqual(t, out.InDegree(id.NodeID), 1, "force-pruned output must be single chains, no branching")
	}
}

func TestForcePruneKeepsNetworkAssociatedProcessChain(t *testing.T) {
	g := graph.New()
	root := chainProcess("ROOT", "T1", true)
	g.AddNode(root)

	prev := "ROOT"
	for i := 0; i < ForceThreshold+5; i++ {
		id := fmt.Sprintf("N%03d", i)
		n := chainProcess(id, "T1", false)
		g.AddNode(n)
		g.AddEdge(model.Edge{Source: prev, Target: id})
		prev = id
	}

	leaf := g.Node(prev)
	leaf.IsNetworkAssociated = true
	g.Reindex(leaf.NodeID)

	out := ForcePrune(g, map[string]string{"T1": "ROOT"})

	assert.False(t, out.HasNode(leaf.NodeID), "a chain longer than the quota keeps only its root-ward prefix, so the leaf end is dropped")
	assert.True(t, out.HasNode("ROOT"), "its ancestor chain reaches the root")
}

func TestForcePruneLimitsToThreeTracesWithRemainderOnFirst(t *testing.T) {
	g := graph.New()
	rootForTrace := make(map[string]string)
	for t := 0; t < 5; t++ {
		traceID := fmt.Sprintf("T%d", t)
		rootID := fmt.Sprintf("R%d", t)
		root := chainProcess(rootID, traceID, true)
		g.AddNode(root)
		rootForTrace[traceID] = rootID

		prev := rootID
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("%s-N%d", traceID, i)
			n := chainProcess(id, traceID, false)
			g.AddNode(n)
			g.AddEdge(model.Edge{Source: prev, Target: id})
			prev = id
		}
	}
	for i := 0; i < ForceThreshold; i++ {
		g.AddNode(chainProcess(fmt.Sprintf("PAD%03d", i), "T0", false))
	}

	out := ForcePrune(g, rootForTrace)

	assert.LessOrEqual(t, out.NodeCount(), ForceTarget)
	assert.False(t, out.HasNode("R4"), "only the first three traces by ascending id are kept")
}

func TestSplitQuotaGivesRemainderToFirstTrace(t *testing.T) {
	quotas := splitQuota(3)
	assert.Equal(t, []int{10, 10, 10}, quotas)

	quotas = splitQuota(2)
	assert.Equal(t, 30, quotas[0]+quotas[1])
	assert.GreaterOrEqual(t, quotas[0], quotas[1])
}
