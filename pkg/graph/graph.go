// Package graph implements the directed graph primitive the pipeline
// builds, prunes, and validates: adjacency maps, a multi-dimensional
// NodeIndex, subgraph extraction, and bounded cycle-safe traversal
// (spec §2 C2, §3 "Graph").
package graph

import (
	"sort"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// MaxTraverseDepth bounds every traversal so a cyclic or pathological
// parent chain cannot recurse unbounded (spec §4.4, §9 "cyclic risk").
const MaxTraverseDepth = 50

// Graph is a set of nodes keyed by id, with outgoing/incoming adjacency
// maps and a NodeIndex kept consistent on every mutation.
type Graph struct {
	nodes map[string]*model.Node
	out   map[string]map[string]*model.Edge // source -> target -> edge
	in    map[string]map[string]*model.Edge // target -> source -> edge
	index *NodeIndex
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*model.Node),
		out:   make(map[string]map[string]*model.Edge),
		in:    make(map[string]map[string]*model.Edge),
		index: newNodeIndex(),
	}
}

// AddNode inserts or replaces a node and indexes it. Replacing a node that
// already has incident edges preserves those edges.
func (g *Graph) AddNode(n *model.Node) {
	if _, exists := g.nodes[n.NodeID]; exists {
		g.index.remove(g.nodes[n.NodeID])
	}
	g.nodes[n.NodeID] = n
	g.index.add(n)
}

// Node returns a node by id, or nil if absent.
func (g *Graph) Node(id string) *model.Node {
	return g.nodes[id]
}

// HasNode reports whether a node id is present.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// RemoveNode deletes a node and cascades removal of every incident edge
// (spec §3 "removing a node cascades removal of incident edges").
func (g *Graph) RemoveNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for target := range g.out[id] {
		g.removeEdgeUnindexed(id, target)
	}
	for source := range g.in[id] {
		g.removeEdgeUnindexed(source, id)
	}
	delete(g.out, id)
	delete(g.in, id)
	delete(g.nodes, id)
	g.index.remove(n)
}

// Reindex refreshes this node's position in the category indexes
// (roots/broken/alarms) after a pipeline stage flips one of its flags in
// place. Callers that mutate IsRoot/IsBroken/IsAlarm after AddNode must
// call this to keep the index consistent.
func (g *Graph) Reindex(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	g.index.remove(n)
	g.index.add(n)
}

// AddEdge adds a directed edge. Self-loops on non-virtual, non-explore
// nodes are rejected per spec §3; duplicate (source,target) pairs replace
// the prior edge rather than creating a second one (at most one edge per
// pair).
func (g *Graph) AddEdge(e model.Edge) bool {
	if e.Source == "" || e.Target == "" {
		return false
	}
	if e.Source == e.Target {
		src := g.nodes[e.Source]
		if src == nil || !(src.Virtual || src.NodeType == model.NodeTypeExplore) {
			return false
		}
	}
	if g.out[e.Source] == nil {
		g.out[e.Source] = make(map[string]*model.Edge)
	}
	if g.in[e.Target] == nil {
		g.in[e.Target] = make(map[string]*model.Edge)
	}
	edge := e
	g.out[e.Source][e.Target] = &edge
	g.in[e.Target][e.Source] = &edge
	return true
}

// RemoveEdge deletes a single directed edge if present.
func (g *Graph) RemoveEdge(source, target string) {
	g.removeEdgeUnindexed(source, target)
}

func (g *Graph) removeEdgeUnindexed(source, target string) {
	if m, ok := g.out[source]; ok {
		delete(m, target)
	}
	if m, ok := g.in[target]; ok {
		delete(m, source)
	}
}

// HasEdge reports whether a direct edge source->target exists.
func (g *Graph) HasEdge(source, target string) bool {
	m, ok := g.out[source]
	if !ok {
		return false
	}
	_, ok = m[target]
	return ok
}

// OutDegree returns the number of outgoing edges from a node.
func (g *Graph) OutDegree(id string) int {
	return len(g.out[id])
}

// InDegree returns the number of incoming edges to a node.
func (g *Graph) InDegree(id string) int {
	return len(g.in[id])
}

// Children returns the sorted ids of id's direct successors.
func (g *Graph) Children(id string) []string {
	return sortedKeys(g.out[id])
}

// Parents returns the sorted ids of id's direct predecessors.
func (g *Graph) Parents(id string) []string {
	return sortedKeys(g.in[id])
}

// OutEdges returns id's outgoing edges, ordered by target id.
func (g *Graph) OutEdges(id string) []model.Edge {
	children := g.Children(id)
	edges := make([]model.Edge, 0, len(children))
	for _, c := range children {
		edges = append(edges, *g.out[id][c])
	}
	return edges
}

// NodeCount returns the number of nodes currently in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges currently in the graph.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, m := range g.out {
		n += len(m)
	}
	return n
}

// Nodes returns every node, ordered by id for deterministic output
// (spec §9 "determinism under ties").
func (g *Graph) Nodes() []*model.Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*model.Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Edges returns every edge, ordered by (source,target) for deterministic
// output.
func (g *Graph) Edges() []model.Edge {
	edges := make([]model.Edge, 0, g.EdgeCount())
	sources := sortedKeysOfMapSet(g.out)
	for _, s := range sources {
		for _, t := range sortedKeys(g.out[s]) {
			edges = append(edges, *g.out[s][t])
		}
	}
	return edges
}

// Index returns the graph's NodeIndex.
func (g *Graph) Index() *NodeIndex { return g.index }

// Subgraph returns a new Graph containing exactly the given node ids and
// the induced edges between them (spec §3 "subgraph extraction on a
// node-id set retains exactly the induced edges").
func (g *Graph) Subgraph(ids map[string]struct{}) *Graph {
	sub := New()
	for id := range ids {
		if n, ok := g.nodes[id]; ok {
			sub.AddNode(n)
		}
	}
	for id := range ids {
		for target := range g.out[id] {
			if _, keep := ids[target]; keep {
				sub.AddEdge(*g.out[id][target])
			}
		}
	}
	return sub
}

func sortedKeys(m map[string]*model.Edge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysOfMapSet(m map[string]map[string]*model.Edge) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
