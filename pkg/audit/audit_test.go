package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLogAndGetRecent(t *testing.T) {
	l := NewLogger(4)

	l.Log(NewSuccessEvent(OpBatchGenerate, "10.0.0.1", []string{"T1"}, 5*time.Millisecond, 3, 2))
	l.Log(NewFailureEvent(OpMergeChain, "10.0.0.2", "StoreUnavailable", time.Millisecond))

	assert.EqualValues(t, 2, l.GetEventCount())

	recent := l.GetRecentEvents(10)
	require.Len(t, recent, 2)
	assert.Equal(t, OpMergeChain, recent[0].Operation, "most recent event first")
	assert.Equal(t, StatusFailure, recent[0].Status)
}

func TestLoggerRingBufferWraps(t *testing.T) {
	l := NewLogger(2)

	for i := 0; i < 5; i++ {
		l.Log(NewSuccessEvent(OpBatchGenerate, "h", nil, 0, 0, 0))
	}

	assert.EqualValues(t, 2, l.GetEventCount(), "ring buffer caps at its size")
}

func TestLoggerFilter(t *testing.T) {
	l := NewLogger(10)
	l.Log(NewSuccessEvent(OpBatchGenerate, "host-a", []string{"T1"}, 0, 1, 1))
	l.Log(NewFailureEvent(OpMergeChain, "host-b", "ElectionFailed", 0))

	filtered := l.GetEvents(&Filter{HostAddress: "host-b"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "ElectionFailed", filtered[0].ErrorKind)
}

func TestLoggerDownstreamFailureDoesNotPropagate(t *testing.T) {
	l := NewLogger(4)
	l.SetDownstream(failingSink{})

	err := l.Log(NewSuccessEvent(OpBatchGenerate, "h", nil, 0, 0, 0))
	assert.NoError(t, err, "a downstream sink failure must not surface to the caller")
}

type failingSink struct{}

func (failingSink) Log(*Event) error { return assert.AnError }
