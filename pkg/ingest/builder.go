// Package ingest implements the graph builder (spec §4.2, component C4):
// assembling a process-only DAG from raw alarms and logs, with late entity
// extraction deferred to pkg/entity and virtual-parent synthesis for
// referenced-but-unobserved parents.
package ingest

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// Build assembles a process graph from a host's elected alarms and logs.
// Entity-typed logs (file/domain/network/registry) are retained on their
// owning process node's Logs list but do not become nodes here; pkg/entity
// materializes them later (spec §4.2).
func Build(alarms []model.RawAlarm, logs []model.RawLog) *graph.Graph {
	g := graph.New()
	parentOf := make(map[string]string)

	ensureNode := func(guid string) *model.Node {
		if n := g.Node(guid); n != nil {
			return n
		}
		n := model.NewProcessNode(guid)
		g.AddNode(n)
		return n
	}

	recordParent := func(guid, parentGuid string) {
		if parentGuid == "" {
			return
		}
		if _, have := parentOf[guid]; !have {
			parentOf[guid] = parentGuid
		}
	}

	for _, a := range alarms {
		if a.ProcessGuid == "" {
			continue
		}
		ensureNode(a.ProcessGuid).AddAlarm(a)
		recordParent(a.ProcessGuid, a.ParentProcessGuid)
	}
	for _, l := range logs {
		if l.ProcessGuid == "" {
			continue
		}
		ensureNode(l.ProcessGuid).AddLog(l)
		recordParent(l.ProcessGuid, l.ParentProcessGuid)
	}

	guids := make([]string, 0, len(parentOf))
	for guid := range parentOf {
		guids = append(guids, guid)
	}
	sort.Strings(guids)

	for _, guid := range guids {
		child := g.Node(guid)
		parentGuid := parentOf[guid]
		child.ParentProcessGuid = parentGuid

		if parentGuid == guid {
			// Root self-reference (spec §4.2, §9 "naming-collision edge
			// cases"): the child names itself as its own parent, which
			// would otherwise collapse the parent node into the child on
			// upsert. Synthesize a distinct virtual-parent id and wire it
			// in directly; this is the only case where the builder
			// fabricates a parent it never observed.
			virtualID := model.VirtualRootParentID(parentGuid)
			if !g.HasNode(virtualID) {
				g.AddNode(synthesizeVirtualParent(virtualID, child))
			}
			g.AddEdge(model.Edge{Source: virtualID, Target: guid, Label: model.EdgeProcessCreate})
			continue
		}

		if g.HasNode(parentGuid) {
			// A real record for the parent already exists elsewhere in
			// this batch; link to it.
			g.AddEdge(model.Edge{Source: parentGuid, Target: guid, Label: model.EdgeProcessCreate})
			continue
		}

		// parentGuid names a process this host's alarms/logs never
		// observed. The builder does not fabricate a stand-in for it:
		// leaving guid parentless here lets pkg/classify mark it broken
		// (spec §4.3) and pkg/explore root it under a synthetic explore
		// node (spec §4.8) — see spec scenario S2.
	}

	return g
}

func synthesizeVirtualParent(nodeID string, child *model.Node) *model.Node {
	vp := model.NewProcessNode(nodeID)
	vp.Virtual = true
	vp.Synthetic = true
	vp.TraceID = child.TraceID
	vp.HostAddress = child.HostAddress
	vp.AddLog(model.NewVirtualParentLog(nodeID, child.TraceID, child.HostAddress))
	return vp
}
