package extension

import (
	"context"
	"testing"
	"time"

	"github.com/cluso-security/chaingraph/pkg/graph"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	byGuid map[string][]model.RawLog
	calls  int
}

func (f *fakeStore) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	return nil, nil
}

func (f *fakeStore) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error) {
	return nil, nil
}

func (f *fakeStore) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error) {
	f.calls++
	var out []model.RawLog
	for _, g := range parentGuids {
		out = append(out, f.byGuid[g]...)
	}
	return out, nil
}

func rootNode(id, traceID, host string) *model.Node {
	n := model.NewProcessNode(id)
	n.TraceID = traceID
	n.HostAddress = host
	n.IsRoot = true
	return n
}

func TestExtendPrependsTwoLayersAndTransfersRoot(t *testing.T) {
	g := graph.New()
	root := rootNode("R1", "T1", "10.0.0.1")
	g.AddNode(root)

	st := &fakeStore{byGuid: map[string][]model.RawLog{
		"R1":         {{ProcessGuid: "ANCESTOR1", ParentProcessGuid: "ANCESTOR2"}},
		"ANCESTOR1":  {{ProcessGuid: "ANCESTOR2"}},
	}}

	rootForTrace := map[string]string{"T1": "R1"}
	Extend(context.Background(), g, st, rootForTrace, 2)

	assert.True(t, g.HasNode("ANCESTOR1"))
	assert.True(t, g.HasNode("ANCESTOR2"))
	assert.True(t, g.HasEdge("ANCESTOR1", "R1"))
	assert.True(t, g.HasEdge("ANCESTOR2", "ANCESTOR1"))

	assert.False(t, g.Node("R1").IsRoot, "prior root's isRoot is cleared after extension")
	assert.True(t, g.Node("ANCESTOR2").IsRoot, "topmost extension node becomes the new root")
	assert.Equal(t, 1, g.Node("ANCESTOR1").ExtensionDepth)
	assert.Equal(t, 2, g.Node("ANCESTOR2").ExtensionDepth)
	assert.Equal(t, "ANCESTOR2", rootForTrace["T1"])
}

func TestExtendSkipsWhenStoreReturnsNoAncestors(t *testing.T) {
	g := graph.New()
	root := rootNode("R1", "T1", "10.0.0.1")
	g.AddNode(root)

	st := &fakeStore{byGuid: map[string][]model.RawLog{}}
	rootForTrace := map[string]string{"T1": "R1"}
	Extend(context.Background(), g, st, rootForTrace, 2)

	assert.Equal(t, 1, g.NodeCount())
	assert.True(t, g.Node("R1").IsRoot)
}

func TestExtendSkipsExploreAndBrokenRoots(t *testing.T) {
	g := graph.New()
	explore := rootNode("EXPLORE_ROOT_T1", "T1", "10.0.0.1")
	explore.NodeType = model.NodeTypeExplore
	g.AddNode(explore)

	broken := rootNode("R2", "T2", "10.0.0.1")
	broken.IsBroken = true
	g.AddNode(broken)

	st := &fakeStore{byGuid: map[string][]model.RawLog{
		"EXPLORE_ROOT_T1": {{ProcessGuid: "SHOULD_NOT_APPEAR"}},
		"R2":              {{ProcessGuid: "SHOULD_NOT_APPEAR"}},
	}}
	rootForTrace := map[string]string{"T1": "EXPLORE_ROOT_T1", "T2": "R2"}
	Extend(context.Background(), g, st, rootForTrace, 2)

	assert.Equal(t, 0, st.calls)
	assert.False(t, g.HasNode("SHOULD_NOT_APPEAR"))
}
