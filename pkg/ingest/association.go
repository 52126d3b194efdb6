package ingest

import (
	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// AssociatedEventIDs collects the set of alarm/log event ids the supplied
// IpMappingRelation marks as network-associated (the union of its
// AlarmIPs and Logs value sets). This set drives both the subgraph
// selector's start-node filter (spec §4.4) and MarkAssociations below.
func AssociatedEventIDs(rel model.IpMappingRelation) map[string]struct{} {
	ids := make(map[string]struct{}, len(rel.AlarmIPs)+len(rel.Logs))
	for _, id := range rel.AlarmIPs {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	for _, id := range rel.Logs {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// MarkAssociations flags every node carrying an alarm or log whose event
// id is network-associated, so the smart pruner's must-keep rule (spec
// §4.5) and the entity extractor's association propagation (spec §4.6)
// see a consistent IsNetworkAssociated/AssociatedEventID on process nodes
// before they run.
func MarkAssociations(g *graph.Graph, associatedEventIDs map[string]struct{}) {
	if len(associatedEventIDs) == 0 {
		return
	}
	for _, n := range g.Nodes() {
		if n.IsNetworkAssociated {
			continue
		}
		if id, ok := firstAssociatedEvent(n, associatedEventIDs); ok {
			n.IsNetworkAssociated = true
			n.AssociatedEventID = id
			g.Reindex(n.NodeID)
		}
	}
}

func firstAssociatedEvent(n *model.Node, associatedEventIDs map[string]struct{}) (string, bool) {
	for _, a := range n.Alarms {
		if _, ok := associatedEventIDs[a.EventID]; ok {
			return a.EventID, true
		}
	}
	for _, l := range n.Logs {
		if _, ok := associatedEventIDs[l.EventID]; ok {
			return l.EventID, true
		}
	}
	return "", false
}
