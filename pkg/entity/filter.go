package entity

import (
	"path"
	"sort"
	"strings"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

const (
	domainCap   = 5
	networkCap  = 5
	registryCap = 3
	fileOpCap   = 3
)

var priorityExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".bat": {}, ".ps1": {}, ".vbs": {}, ".msi": {},
	".jsp": {}, ".php": {}, ".asp": {}, ".sh": {}, ".so": {},
}

// Filter applies the per-(processGuid, entityType) caps described in spec
// §4.6, removing dropped nodes and their incident edges. Must run after
// Extract.
func Filter(g *graph.Graph) {
	groups := groupByProcessAndType(g)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		group := groups[key]
		var kept []string
		switch group.nodeType {
		case model.NodeTypeFileEntity:
			kept = filterFiles(group.ids, g)
		case model.NodeTypeDomainEntity:
			kept = filterCapped(group.ids, g, domainCap)
		case model.NodeTypeNetworkEntity:
			kept = filterCapped(group.ids, g, networkCap)
		case model.NodeTypeRegistryEntity:
			kept = filterCapped(group.ids, g, registryCap)
		default:
			kept = group.ids
		}
		dropExcept(g, group.ids, kept)
	}
}

type processTypeGroup struct {
	nodeType model.NodeType
	ids      []string
}

func groupByProcessAndType(g *graph.Graph) map[string]processTypeGroup {
	groups := make(map[string]processTypeGroup)
	for _, n := range g.Nodes() {
		if !n.NodeType.IsEntity() {
			continue
		}
		parents := g.Parents(n.NodeID)
		if len(parents) == 0 {
			continue
		}
		key := parents[0] + "\x1f" + string(n.NodeType)
		g2 := groups[key]
		g2.nodeType = n.NodeType
		g2.ids = append(g2.ids, n.NodeID)
		groups[key] = g2
	}
	return groups
}

// filterFiles keeps priority-extension create files in full; remaining
// files are grouped by opType and each group capped at fileOpCap, ordered
// time ascending (spec §4.6 "file" filter rule).
func filterFiles(ids []string, g *graph.Graph) []string {
	var kept []string
	byOpType := make(map[string][]string)

	for _, id := range ids {
		n := g.Node(id)
		if isPriorityExtensionCreate(n) {
			kept = append(kept, id)
			continue
		}
		op := strings.ToLower(n.Entity.OpType)
		byOpType[op] = append(byOpType[op], id)
	}

	ops := make([]string, 0, len(byOpType))
	for op := range byOpType {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		kept = append(kept, capGroup(byOpType[op], g, fileOpCap)...)
	}
	return kept
}

func isPriorityExtensionCreate(n *model.Node) bool {
	if n.Entity == nil || !strings.EqualFold(n.Entity.OpType, "create") {
		return false
	}
	name := n.Entity.TargetFilename
	if name == "" {
		name = n.Entity.Filename
	}
	_, ok := priorityExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// filterCapped applies the common domain/network/registry rule: cap at n,
// network-associated nodes fill the quota first, remainder ordered time
// ascending (spec §4.6).
func filterCapped(ids []string, g *graph.Graph, limit int) []string {
	return capGroup(ids, g, limit)
}

// capGroup sorts ids network-associated-first, then by earliest-occurrence
// time ascending, then by id for determinism, and keeps the first cap.
func capGroup(ids []string, g *graph.Graph, limit int) []string {
	sorted := append([]string(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := g.Node(sorted[i]), g.Node(sorted[j])
		if a.IsNetworkAssociated != b.IsNetworkAssociated {
			return a.IsNetworkAssociated
		}
		at, bt := earliestOccurrence(a), earliestOccurrence(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.NodeID < b.NodeID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func dropExcept(g *graph.Graph, all, kept []string) {
	keepSet := make(map[string]struct{}, len(kept))
	for _, id := range kept {
		keepSet[id] = struct{}{}
	}
	for _, id := range all {
		if _, ok := keepSet[id]; !ok {
			g.RemoveNode(id)
		}
	}
}
