package graph

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// NodeIndex provides O(1) lookup by guid (via the owning Graph's node map),
// traceId, hostAddress, and the root/broken/alarm category sets (spec §3).
// Only the owning Graph mutates it.
type NodeIndex struct {
	byTrace map[string][]string
	byHost  map[string][]string
	roots   map[string]struct{}
	broken  map[string]struct{}
	alarms  map[string]struct{}
}

func newNodeIndex() *NodeIndex {
	return &NodeIndex{
		byTrace: make(map[string][]string),
		byHost:  make(map[string][]string),
		roots:   make(map[string]struct{}),
		broken:  make(map[string]struct{}),
		alarms:  make(map[string]struct{}),
	}
}

func (idx *NodeIndex) add(n *model.Node) {
	if n.TraceID != "" {
		idx.byTrace[n.TraceID] = append(idx.byTrace[n.TraceID], n.NodeID)
	}
	if n.HostAddress != "" {
		idx.byHost[n.HostAddress] = append(idx.byHost[n.HostAddress], n.NodeID)
	}
	if n.IsRoot {
		idx.roots[n.NodeID] = struct{}{}
	}
	if n.IsBroken {
		idx.broken[n.NodeID] = struct{}{}
	}
	if n.IsAlarm {
		idx.alarms[n.NodeID] = struct{}{}
	}
}

func (idx *NodeIndex) remove(n *model.Node) {
	if n.TraceID != "" {
		idx.byTrace[n.TraceID] = removeValue(idx.byTrace[n.TraceID], n.NodeID)
		if len(idx.byTrace[n.TraceID]) == 0 {
			delete(idx.byTrace, n.TraceID)
		}
	}
	if n.HostAddress != "" {
		idx.byHost[n.HostAddress] = removeValue(idx.byHost[n.HostAddress], n.NodeID)
		if len(idx.byHost[n.HostAddress]) == 0 {
			delete(idx.byHost, n.HostAddress)
		}
	}
	delete(idx.roots, n.NodeID)
	delete(idx.broken, n.NodeID)
	delete(idx.alarms, n.NodeID)
}

func removeValue(slice []string, v string) []string {
	for i, s := range slice {
		if s == v {
			slice[i] = slice[len(slice)-1]
			return slice[:len(slice)-1]
		}
	}
	return slice
}

// ByTrace returns the sorted node ids belonging to a trace.
func (idx *NodeIndex) ByTrace(traceID string) []string {
	return sortedCopy(idx.byTrace[traceID])
}

// ByHost returns the sorted node ids belonging to a host.
func (idx *NodeIndex) ByHost(host string) []string {
	return sortedCopy(idx.byHost[host])
}

// Roots returns the sorted ids of all nodes currently flagged IsRoot.
func (idx *NodeIndex) Roots() []string { return sortedSet(idx.roots) }

// Broken returns the sorted ids of all nodes currently flagged IsBroken.
func (idx *NodeIndex) Broken() []string { return sortedSet(idx.broken) }

// Alarms returns the sorted ids of all nodes currently flagged IsAlarm.
func (idx *NodeIndex) Alarms() []string { return sortedSet(idx.alarms) }

// Traces returns every distinct trace id currently indexed, sorted.
func (idx *NodeIndex) Traces() []string {
	traces := make([]string, 0, len(idx.byTrace))
	for t := range idx.byTrace {
		traces = append(traces, t)
	}
	sort.Strings(traces)
	return traces
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
