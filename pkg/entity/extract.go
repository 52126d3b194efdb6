// Package entity implements the entity extractor and filter (spec §4.6,
// component C8): late-phase creation of file/domain/network/registry nodes
// from retained process nodes, with dedup by content hash and per-type
// caps.
package entity

import (
	"strings"
	"time"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
)

// Extract scans every retained process node's logs and alarms and
// materializes file/domain/network/registry entity nodes, wired with a
// "connect" edge from the owning process. associatedEventIDs upgrades an
// entity's association to network-associated when the originating
// alarm/log qualifies (spec §4.6 "upgrade to a network-associated id ...
// highest priority").
func Extract(g *graph.Graph, associatedEventIDs map[string]struct{}) {
	for _, n := range g.Nodes() {
		if n.NodeType != model.NodeTypeProcess {
			continue
		}
		extractFromNode(g, n, associatedEventIDs)
	}
}

func extractFromNode(g *graph.Graph, proc *model.Node, associatedEventIDs map[string]struct{}) {
	hasLogs := false
	for _, l := range proc.Logs {
		if l.Synthetic {
			continue
		}
		hasLogs = true
		if detail, nodeType, opType, ok := classifyLog(l); ok {
			attach(g, proc, nodeType, detail, opType, l.EventID, l.Time(), associatedEventIDs)
		}
	}
	if hasLogs {
		return
	}
	for _, a := range proc.Alarms {
		if detail, nodeType, opType, ok := classifyAlarmEntity(a, proc.HostAddress); ok {
			attach(g, proc, nodeType, detail, opType, a.EventID, a.Time(), associatedEventIDs)
		}
	}
}

// classifyLog applies the per-category op-type predicate (spec §4.6: file
// ∈ {create, write, delete}; network ∈ {connect}; domain ∈ {connect};
// registry ∈ {setvalue}) and returns the entity detail and key to
// materialize, or ok=false if the log doesn't qualify.
func classifyLog(l model.RawLog) (model.EntityDetail, model.NodeType, string, bool) {
	switch l.LogType {
	case model.LogTypeFile:
		if !isFileOp(l.OpType) {
			return model.EntityDetail{}, "", "", false
		}
		return model.EntityDetail{FileMd5: l.FileMd5, Filename: l.Filename, TargetFilename: l.TargetFilename}, model.NodeTypeFileEntity, l.OpType, true
	case model.LogTypeDomain:
		if !strings.EqualFold(l.OpType, "connect") {
			return model.EntityDetail{}, "", "", false
		}
		return model.EntityDetail{RequestDomain: l.RequestDomain}, model.NodeTypeDomainEntity, l.OpType, true
	case model.LogTypeNetwork:
		if !strings.EqualFold(l.OpType, "connect") {
			return model.EntityDetail{}, "", "", false
		}
		return model.EntityDetail{DestAddress: l.DestAddress}, model.NodeTypeNetworkEntity, l.OpType, true
	case model.LogTypeRegistry:
		if !strings.EqualFold(l.OpType, "setvalue") {
			return model.EntityDetail{}, "", "", false
		}
		return model.EntityDetail{TargetObject: l.TargetObject}, model.NodeTypeRegistryEntity, l.OpType, true
	default:
		return model.EntityDetail{}, "", "", false
	}
}

// classifyAlarmEntity derives an entity from alarm fields when the owning
// process node has no logs (spec §4.6 second bullet).
func classifyAlarmEntity(a model.RawAlarm, hostAddress string) (model.EntityDetail, model.NodeType, string, bool) {
	switch {
	case a.FileMd5 != "" && a.TargetFilename != "" && a.Filename != a.TargetFilename:
		return model.EntityDetail{FileMd5: a.FileMd5, Filename: a.Filename, TargetFilename: a.TargetFilename}, model.NodeTypeFileEntity, "create", true
	case a.RequestDomain != "":
		return model.EntityDetail{RequestDomain: a.RequestDomain}, model.NodeTypeDomainEntity, "connect", true
	case a.DestAddress != "" && a.DestAddress != hostAddress:
		return model.EntityDetail{DestAddress: a.DestAddress}, model.NodeTypeNetworkEntity, "connect", true
	case a.TargetObject != "":
		return model.EntityDetail{TargetObject: a.TargetObject}, model.NodeTypeRegistryEntity, "setvalue", true
	default:
		return model.EntityDetail{}, "", "", false
	}
}

func isFileOp(opType string) bool {
	switch strings.ToLower(opType) {
	case "create", "write", "delete":
		return true
	default:
		return false
	}
}

func entityKey(nodeType model.NodeType, detail model.EntityDetail) string {
	switch nodeType {
	case model.NodeTypeFileEntity:
		return detail.FileMd5 + "\x1f" + detail.Filename
	case model.NodeTypeDomainEntity:
		return detail.RequestDomain
	case model.NodeTypeNetworkEntity:
		return detail.DestAddress
	case model.NodeTypeRegistryEntity:
		return detail.TargetObject
	default:
		return ""
	}
}

// attach materializes (or merges into) the entity node keyed by
// (proc.NodeID, nodeType, entityKey(detail)), recording occurredAt as a
// synthetic log so the filter stage can order by time ascending without a
// dedicated timestamp field on Node.
func attach(g *graph.Graph, proc *model.Node, nodeType model.NodeType, detail model.EntityDetail, opType, eventID string, occurredAt time.Time, associatedEventIDs map[string]struct{}) {
	detail.OpType = opType
	key := entityKey(nodeType, detail)
	if key == "" {
		return
	}
	nodeID := model.EntityNodeID(proc.NodeID, nodeType, key)
	occurrence := model.RawLog{EventID: eventID, StartTime: occurredAt, OpType: opType}

	if existing := g.Node(nodeID); existing != nil {
		mergeDetail(existing, detail)
		existing.Logs = append(existing.Logs, occurrence)
		if isAssociated(eventID, associatedEventIDs) {
			existing.CreatedByEventID = eventID
		}
		propagateAssociation(existing, proc, associatedEventIDs)
		return
	}

	n := &model.Node{
		NodeID:           nodeID,
		NodeType:         nodeType,
		TraceID:          proc.TraceID,
		HostAddress:      proc.HostAddress,
		CreatedByEventID: eventID,
		ThreatSeverity:   model.SeverityUnknown,
		Entity:           &detail,
		Logs:             []model.RawLog{occurrence},
	}
	n.Alarms = append(n.Alarms, proc.Alarms...)
	propagateAssociation(n, proc, associatedEventIDs)
	g.AddNode(n)
	g.AddEdge(model.Edge{Source: proc.NodeID, Target: nodeID, Label: model.EdgeConnect})
}

func mergeDetail(existing *model.Node, detail model.EntityDetail) {
	if existing.Entity == nil {
		existing.Entity = &detail
		return
	}
	if existing.Entity.TargetFilename == "" {
		existing.Entity.TargetFilename = detail.TargetFilename
	}
}

func isAssociated(eventID string, associatedEventIDs map[string]struct{}) bool {
	if eventID == "" {
		return false
	}
	_, ok := associatedEventIDs[eventID]
	return ok
}

// propagateAssociation upgrades an entity to network-associated from
// either its owning process (already-marked association) or its own
// originating event id, never downgrading (spec §4.6 "highest priority").
func propagateAssociation(entityNode, proc *model.Node, associatedEventIDs map[string]struct{}) {
	if proc.IsNetworkAssociated && !entityNode.IsNetworkAssociated {
		entityNode.IsNetworkAssociated = true
		entityNode.AssociatedEventID = proc.AssociatedEventID
	}
	if isAssociated(entityNode.CreatedByEventID, associatedEventIDs) {
		entityNode.IsNetworkAssociated = true
		entityNode.AssociatedEventID = entityNode.CreatedByEventID
	}
}

// earliestOccurrence returns the time of an entity node's first recorded
// occurrence, used by the filter stage's time-ascending ordering.
func earliestOccurrence(n *model.Node) time.Time {
	if len(n.Logs) == 0 {
		return time.Time{}
	}
	earliest := n.Logs[0].StartTime
	for _, l := range n.Logs[1:] {
		if l.StartTime.Before(earliest) {
			earliest = l.StartTime
		}
	}
	return earliest
}
