package api

import (
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/orchestrate"
)

// batchGenerateRequest is the POST /batch-generate body: an IpMappingRelation
// verbatim (spec §6).
type batchGenerateRequest = model.IpMappingRelation

// networkNodeRequest is the wire shape of one merge-chain story node. Node
// carries no JSON tags by design (it is an internal working type mutated
// in place by role correction); this DTO is the narrow decode target that
// gets converted into a *model.Node before reaching the orchestrator.
type networkNodeRequest struct {
	NodeID        string `json:"nodeId"`
	TraceID       string `json:"traceId"`
	HostAddress   string `json:"hostAddress,omitempty"`
	NetworkRole   string `json:"networkRole"`
	StoryNodeType string `json:"storyNodeType"`
	IP            string `json:"ip"`
}

func (n networkNodeRequest) toModel() *model.Node {
	return &model.Node{
		NodeID:      n.NodeID,
		NodeType:    model.NodeTypeStory,
		TraceID:     n.TraceID,
		HostAddress: n.HostAddress,
		Story: &model.StoryDetail{
			NetworkRole:   model.NetworkRole(n.NetworkRole),
			StoryNodeType: n.StoryNodeType,
			IP:            n.IP,
		},
	}
}

// networkEdgeRequest is the wire shape of one merge-chain story edge.
type networkEdgeRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

func (e networkEdgeRequest) toModel() model.Edge {
	return model.Edge{Source: e.Source, Target: e.Target, Label: model.EdgeLabel(e.Label)}
}

// incidentRequest is the wire shape of merge-chain's optional role-correction
// context (spec §4.10 step 2).
type incidentRequest struct {
	FocusObject string `json:"focusObject"`
	FocusIP     string `json:"focusIp"`
}

func (i *incidentRequest) toModel() *orchestrate.Incident {
	if i == nil {
		return nil
	}
	return &orchestrate.Incident{
		FocusObject: model.NetworkRole(i.FocusObject),
		FocusIP:     i.FocusIP,
	}
}

// mergeChainRequest is the POST /merge-chain body (spec §6).
type mergeChainRequest struct {
	NetworkNodes      []networkNodeRequest    `json:"networkNodes"`
	NetworkEdges      []networkEdgeRequest    `json:"networkEdges"`
	IpMappingRelation model.IpMappingRelation `json:"ipMappingRelation"`
	Incident          *incidentRequest        `json:"incident,omitempty"`
}

func (r mergeChainRequest) nodes() []*model.Node {
	nodes := make([]*model.Node, 0, len(r.NetworkNodes))
	for _, n := range r.NetworkNodes {
		nodes = append(nodes, n.toModel())
	}
	return nodes
}

func (r mergeChainRequest) edges() []model.Edge {
	edges := make([]model.Edge, 0, len(r.NetworkEdges))
	for _, e := range r.NetworkEdges {
		edges = append(edges, e.toModel())
	}
	return edges
}
