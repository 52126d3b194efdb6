// Package bridge implements the network bridge and role corrector
// (spec §4.10, component C12): wiring network-side story nodes onto
// endpoint roots, and re-labeling mislabeled attacker/victim story nodes
// around a declared focus object.
package bridge

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// BridgeVictims wires every story victim node whose ip matches a known
// host onto that host's endpoint root: host -> traceId via hostToTrace,
// traceId -> root via rootForTrace, then an edge victim -> root labeled
// "net-to-endpoint bridge" (spec §4.10 step 1). A victim with no
// resolvable host or root is skipped and logged as BridgeTargetMissing
// (spec §7); other bridges still proceed.
func BridgeVictims(g *graph.Graph, hostToTrace, rootForTrace map[string]string, logger logging.Logger) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	for _, id := range storyNodeIDs(g) {
		n := g.Node(id)
		if n.Story == nil || n.Story.NetworkRole != model.RoleVictim {
			continue
		}
		traceID, ok := hostToTrace[n.Story.IP]
		if !ok {
			logMissing(logger, n.NodeID, n.Story.IP, "no host match for victim ip")
			continue
		}
		rootID, ok := rootForTrace[traceID]
		if !ok {
			logMissing(logger, n.NodeID, n.Story.IP, "no endpoint root for trace "+traceID)
			continue
		}
		g.AddEdge(model.Edge{Source: n.NodeID, Target: rootID, Label: model.EdgeNetToEndpoint})
	}
}

func logMissing(logger logging.Logger, nodeID, ip, reason string) {
	logger.Warn("【bridge】skipping net-to-endpoint bridge",
		logging.Field{Key: "nodeId", Value: nodeID},
		logging.Field{Key: "ip", Value: ip},
		logging.Field{Key: "reason", Value: reason},
	)
}

// CorrectRoles implements spec §4.10 step 2. Among source-typed story
// nodes (storyNodeType == "srcNode") whose ip equals targetIP, any node
// whose current role differs from focusObject is relabeled to
// focusObject; if its id was a role-literal string it is renamed to the
// new role's literal, otherwise (e.g. the id is an ip) the id is left alone.
// From there, role is propagated along incident edges: every
// attacker/victim node with an ip different from targetIP that is
// reachable flips to the opposite role. Finally, isolated
// assetAddress-typed nodes (no incident edges) holding the opposite role
// are flipped too.
func CorrectRoles(g *graph.Graph, focusObject model.NetworkRole, targetIP string) {
	if focusObject != model.RoleAttacker && focusObject != model.RoleVictim {
		return
	}

	relabeled := make(map[string]struct{})
	for _, id := range storyNodeIDs(g) {
		n := g.Node(id)
		if n.Story == nil || n.Story.StoryNodeType != "srcNode" || n.Story.IP != targetIP {
			continue
		}
		if n.Story.NetworkRole == focusObject {
			continue
		}
		finalID := relabel(g, n, focusObject)
		relabeled[finalID] = struct{}{}
	}

	propagateFlips(g, relabeled, targetIP)
	flipIsolatedAssetAddresses(g, focusObject)
}

// relabel sets n's role to newRole and, if n's id is a role-literal
// string, renames the node to the new role's literal; any other id (such
// as its ip) is kept. It returns the node's id after any rename.
func relabel(g *graph.Graph, n *model.Node, newRole model.NetworkRole) string {
	n.Story.NetworkRole = newRole
	switch model.NetworkRole(n.NodeID) {
	case model.RoleAttacker, model.RoleVictim, model.RoleServer, model.RoleRelay:
		return renameNode(g, n.NodeID, string(newRole))
	}
	g.Reindex(n.NodeID)
	return n.NodeID
}

// propagateFlips flips every attacker/victim node reachable (in either
// direction) from a relabeled node, as long as its ip differs from
// targetIP — relabeled nodes and nodes matching targetIP are excluded,
// matching spec §4.10's "has a different ip than targetIp" condition.
func propagateFlips(g *graph.Graph, relabeled map[string]struct{}, targetIP string) {
	visited := make(map[string]struct{}, len(relabeled))
	queue := make([]string, 0, len(relabeled))
	for id := range relabeled {
		queue = append(queue, id)
		visited[id] = struct{}{}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		neighbors := append(append([]string{}, g.Children(id)...), g.Parents(id)...)
		sort.Strings(neighbors)
		for _, nb := range neighbors {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			n := g.Node(nb)
			if n == nil || n.Story == nil || n.Story.IP == targetIP {
				continue
			}
			if n.Story.NetworkRole == model.RoleAttacker {
				n.Story.NetworkRole = model.RoleVictim
				queue = append(queue, nb)
			} else if n.Story.NetworkRole == model.RoleVictim {
				n.Story.NetworkRole = model.RoleAttacker
				queue = append(queue, nb)
			}
		}
	}
}

// flipIsolatedAssetAddresses flips any assetAddress-typed story node with
// no incident edges that holds the role opposite focusObject.
func flipIsolatedAssetAddresses(g *graph.Graph, focusObject model.NetworkRole) {
	opposite := model.RoleVictim
	if focusObject == model.RoleVictim {
		opposite = model.RoleAttacker
	}
	for _, id := range storyNodeIDs(g) {
		n := g.Node(id)
		if n.Story == nil || n.Story.StoryNodeType != "assetAddress" {
			continue
		}
		if n.Story.NetworkRole != opposite {
			continue
		}
		if g.OutDegree(id) != 0 || g.InDegree(id) != 0 {
			continue
		}
		n.Story.NetworkRole = focusObject
	}
}

// renameNode gives n a new id, rewiring every incident edge's
// source/target to match (spec §4.10 "update all edges' source/target
// under the id rewrites"). Returns newID.
func renameNode(g *graph.Graph, oldID, newID string) string {
	if oldID == newID || !g.HasNode(oldID) {
		return oldID
	}

	n := g.Node(oldID)
	outEdges := g.OutEdges(oldID)

	var inEdges []model.Edge
	for _, src := range g.Parents(oldID) {
		for _, e := range g.OutEdges(src) {
			if e.Target == oldID {
				inEdges = append(inEdges, e)
			}
		}
	}

	g.RemoveNode(oldID)
	n.NodeID = newID
	g.AddNode(n)

	for _, e := range outEdges {
		g.AddEdge(model.Edge{Source: newID, Target: e.Target, Label: e.Label})
	}
	for _, e := range inEdges {
		g.AddEdge(model.Edge{Source: e.Source, Target: newID, Label: e.Label})
	}
	return newID
}

func storyNodeIDs(g *graph.Graph) []string {
	ids := make([]string, 0)
	for _, n := range g.Nodes() {
		if n.NodeType == model.NodeTypeStory {
			ids = append(ids, n.NodeID)
		}
	}
	return ids
}
