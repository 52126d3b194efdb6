package model

// Result is the emitted shape of one orchestrator invocation (spec §3,
// §6.3). It is the only type the HTTP/GraphQL surfaces serialize.
type Result struct {
	TraceIDs       []string       `json:"traceIds"`
	HostAddresses  []string       `json:"hostAddresses"`
	ThreatSeverity ThreatSeverity `json:"threatSeverity"`
	FoundRootNode  bool           `json:"foundRootNode"`
	Nodes          []ResultNode   `json:"nodes"`
	Edges          []ResultEdge   `json:"edges"`
}

// ResultNode is the wire projection of a Node (spec §6.3).
type ResultNode struct {
	NodeID             string         `json:"nodeId"`
	LogType            string         `json:"logType,omitempty"`
	OpType             string         `json:"opType,omitempty"`
	NodeThreatSeverity ThreatSeverity `json:"nodeThreatSeverity"`
	IsChainNode        bool           `json:"isChainNode"`
	HostAddress        string         `json:"hostAddress,omitempty"`
	NodeColor          string         `json:"nodeColor,omitempty"`
	ChainNode          *ChainNodeInfo `json:"chainNode,omitempty"`
	StoryNode          *StoryNodeInfo `json:"storyNode,omitempty"`
	ChildrenCount      int            `json:"childrenCount"`
}

// ChainNodeInfo carries process-chain-specific flags and the tagged
// processEntity/entity union (spec §6.3, §9 "polymorphic node content").
type ChainNodeInfo struct {
	IsRoot              bool               `json:"isRoot"`
	IsBroken            bool               `json:"isBroken"`
	IsAlarm             bool               `json:"isAlarm"`
	IsExtensionNode     bool               `json:"isExtensionNode"`
	ExtensionDepth      *int               `json:"extensionDepth,omitempty"`
	IsNetworkAssociated bool               `json:"isNetworkAssociated"`
	AssociatedEventID   string             `json:"associatedEventId,omitempty"`
	AlarmNodeInfo       *AlarmNodeInfo     `json:"alarmNodeInfo,omitempty"`
	ProcessEntity       *ProcessEntityInfo `json:"processEntity,omitempty"`
	Entity              *EntityInfo        `json:"entity,omitempty"`
}

// AlarmNodeInfo summarizes the alarms attached to a node.
type AlarmNodeInfo struct {
	AlarmNames     []string       `json:"alarmNames,omitempty"`
	ThreatSeverity ThreatSeverity `json:"threatSeverity"`
}

// ProcessEntityInfo is present when ChainNodeInfo describes a process node.
type ProcessEntityInfo struct {
	ProcessGuid       string `json:"processGuid"`
	ParentProcessGuid string `json:"parentProcessGuid,omitempty"`
}

// EntityInfo is present when ChainNodeInfo describes a file/domain/network/
// registry node. Exactly one of ProcessEntity/Entity is set per node.
type EntityInfo struct {
	Kind          NodeType `json:"kind"`
	FileMd5       string   `json:"fileMd5,omitempty"`
	Filename      string   `json:"filename,omitempty"`
	RequestDomain string   `json:"requestDomain,omitempty"`
	DestAddress   string   `json:"destAddress,omitempty"`
	TargetObject  string   `json:"targetObject,omitempty"`
	OpType        string   `json:"opType,omitempty"`
}

// StoryNodeInfo is present when a node originated from a network-side story
// graph (spec §4.10).
type StoryNodeInfo struct {
	NetworkRole   NetworkRole `json:"networkRole"`
	StoryNodeType string      `json:"storyNodeType,omitempty"`
	IP            string      `json:"ip,omitempty"`
}

// ResultEdge is the wire projection of an Edge.
type ResultEdge struct {
	Source string    `json:"source"`
	Target string    `json:"target"`
	Val    EdgeLabel `json:"val"`
}

// BuildResultNode projects an internal Node into its wire shape.
// childrenCount is supplied by the caller (pkg/orchestrate), computed once
// after C12 bridging per spec §9 OQ2.
func BuildResultNode(n *Node, childrenCount int) ResultNode {
	rn := ResultNode{
		NodeID:             n.NodeID,
		NodeThreatSeverity: n.ThreatSeverity,
		IsChainNode:        n.NodeType != NodeTypeStory,
		HostAddress:        n.HostAddress,
		ChildrenCount:      childrenCount,
	}

	if n.NodeType == NodeTypeStory {
		if n.Story != nil {
			rn.StoryNode = &StoryNodeInfo{
				NetworkRole:   n.Story.NetworkRole,
				StoryNodeType: n.Story.StoryNodeType,
				IP:            n.Story.IP,
			}
		}
		return rn
	}

	chain := &ChainNodeInfo{
		IsRoot:              n.IsRoot,
		IsBroken:            n.IsBroken,
		IsAlarm:             n.IsAlarm,
		IsExtensionNode:     n.IsExtensionNode,
		IsNetworkAssociated: n.IsNetworkAssociated,
		AssociatedEventID:   n.AssociatedEventID,
	}
	if n.IsExtensionNode {
		depth := n.ExtensionDepth
		chain.ExtensionDepth = &depth
	}
	if n.IsAlarm {
		chain.AlarmNodeInfo = alarmNodeInfo(n)
	}

	if l := n.LatestLog(); l != nil {
		rn.LogType = string(l.LogType)
		rn.OpType = l.OpType
	} else if len(n.Alarms) > 0 {
		rn.LogType = string(n.Alarms[0].LogType)
		rn.OpType = n.Alarms[0].OpType
	}

	if n.NodeType.IsEntity() {
		chain.Entity = entityInfo(n)
	} else if n.NodeType == NodeTypeProcess {
		chain.ProcessEntity = &ProcessEntityInfo{
			ProcessGuid:       n.NodeID,
			ParentProcessGuid: n.ParentProcessGuid,
		}
	}

	rn.ChainNode = chain
	return rn
}

func alarmNodeInfo(n *Node) *AlarmNodeInfo {
	names := make([]string, 0, len(n.Alarms))
	for _, a := range n.Alarms {
		if a.AlarmName != "" {
			names = append(names, a.AlarmName)
		}
	}
	return &AlarmNodeInfo{AlarmNames: names, ThreatSeverity: n.ThreatSeverity}
}

func entityInfo(n *Node) *EntityInfo {
	if n.Entity == nil {
		return &EntityInfo{Kind: n.NodeType}
	}
	return &EntityInfo{
		Kind:          n.NodeType,
		FileMd5:       n.Entity.FileMd5,
		Filename:      n.Entity.Filename,
		RequestDomain: n.Entity.RequestDomain,
		DestAddress:   n.Entity.DestAddress,
		TargetObject:  n.Entity.TargetObject,
		OpType:        n.Entity.OpType,
	}
}
