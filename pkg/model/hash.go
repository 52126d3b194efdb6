package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// contentHash returns a short hex digest of the given parts, joined with a
// separator unlikely to collide across field boundaries. Used for entity
// node ids and virtual-parent ids, where identity is defined by content
// rather than an assigned guid.
func contentHash(parts ...string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// VirtualRootParentID computes the synthetic parent id used when a process
// record names itself as its own parent (processGuid == parentProcessGuid).
// See spec §4.2 and §9 "naming-collision edge cases".
func VirtualRootParentID(parentProcessGuid string) string {
	return "VIRTUAL_ROOT_PARENT_" + contentHash(parentProcessGuid+"_ROOT_PARENT")
}

// ExploreRootID computes the synthetic root id for a trace with broken
// chains and no real root (spec §4.8).
func ExploreRootID(traceID string) string {
	return "EXPLORE_ROOT_" + traceID
}

// EntityNodeID computes an entity node's id per spec §3: a process-scoped
// hash of the entity's identifying key.
func EntityNodeID(processGuid string, nodeType NodeType, key string) string {
	return processGuid + "_" + string(nodeType) + "_" + contentHash(key)
}

// VirtualLogEventID marks a synthetic process record created to back a
// virtual parent node, so the latest-log selector can deprioritize it
// (spec §4.2, §9 "virtual-log marker").
func VirtualLogEventID(nodeID string) string {
	return "VIRTUAL_LOG_" + nodeID
}
