package s3store

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, assertErr{key: *params.Key}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

type assertErr struct{ key string }

func (e assertErr) Error() string { return "no such key: " + e.key }

func snappyNDJSON(lines ...string) []byte {
	joined := []byte{}
	for _, l := range lines {
		joined = append(joined, []byte(l)...)
		joined = append(joined, '\n')
	}
	return snappy.Encode(nil, joined)
}

func TestQueryAlarmsByHostDecodesSnappyNDJSON(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{
		"alarms/host-1.ndjson.snz": snappyNDJSON(
			`{"eventId":"E1","processGuid":"P1"}`,
			`{"eventId":"E2","processGuid":"P2"}`,
		),
	}}
	c := New(api, "bucket")

	alarms, err := c.QueryAlarmsByHost(context.Background(), "host-1")

	require.NoError(t, err)
	require.Len(t, alarms, 2)
	assert.Equal(t, "P1", alarms[0].ProcessGuid)
	assert.Equal(t, "P2", alarms[1].ProcessGuid)
}

func TestQueryLogsByProcessGuidsFiltersByGuid(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{
		"logs/host-1.ndjson.snz": snappyNDJSON(
			`{"processGuid":"ANCESTOR"}`,
			`{"processGuid":"UNRELATED"}`,
		),
	}}
	c := New(api, "bucket")

	logs, err := c.QueryLogsByProcessGuids(context.Background(), "host-1", []string{"ANCESTOR"}, 1)

	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "ANCESTOR", logs[0].ProcessGuid)
}

func TestQueryAlarmsByHostWrapsMissingObjectAsStoreQueryFailed(t *testing.T) {
	api := &fakeS3{objects: map[string][]byte{}}
	c := New(api, "bucket")

	_, err := c.QueryAlarmsByHost(context.Background(), "missing-host")
	require.Error(t, err)
}
