// Package s3store is the cold-tier store.Store fallback: newline-delimited
// JSON alarm/log archives, snappy-compressed, read from S3 (spec §1 "search
// store", used only when the primary httpstore reports StoreUnavailable/
// StoreQueryFailed per spec §7).
package s3store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/golang/snappy"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// s3API is the subset of *s3.Client this package needs, so tests can stub it.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client reads archived alarm/log records from an S3 bucket.
type Client struct {
	api    s3API
	bucket string
}

// New returns a Client reading archives from bucket via api.
func New(api s3API, bucket string) *Client {
	return &Client{api: api, bucket: bucket}
}

// QueryAlarmsByHost implements store.Store by scanning the host's archived
// alarm object.
func (c *Client) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	key := fmt.Sprintf("alarms/%s.ndjson.snz", host)
	var alarms []model.RawAlarm
	err := c.scan(ctx, key, func(line []byte) error {
		var a model.RawAlarm
		if err := json.Unmarshal(line, &a); err != nil {
			return err
		}
		alarms = append(alarms, a)
		return nil
	})
	if err != nil {
		return nil, model.NewStageError("store.s3store", model.KindStoreQueryFailed, err).WithHost(host)
	}
	return alarms, nil
}

// QueryLogsByTraceIDAndHost implements store.Store by scanning the host's
// archived log object and filtering by trace id. alarmTime narrows nothing
// further here — the archive has no secondary time index — but is accepted
// to satisfy store.Store.
func (c *Client) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, _ time.Time) ([]model.RawLog, error) {
	logs, err := c.scanHostLogs(ctx, host)
	if err != nil {
		return nil, model.NewStageError("store.s3store", model.KindStoreQueryFailed, err).WithHost(host).WithTrace(traceID)
	}
	out := logs[:0:0]
	for _, l := range logs {
		if l.TraceID == traceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// QueryLogsByProcessGuids implements store.Store by scanning the host's
// archived log object and filtering by process guid. The archive has no
// ancestor-layer structure, so each call returns a single hop; pkg/extension
// walks layers by re-querying with the discovered parent guids.
func (c *Client) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, _ int) ([]model.RawLog, error) {
	logs, err := c.scanHostLogs(ctx, host)
	if err != nil {
		return nil, model.NewStageError("store.s3store", model.KindStoreQueryFailed, err).WithHost(host)
	}
	want := make(map[string]struct{}, len(parentGuids))
	for _, g := range parentGuids {
		want[g] = struct{}{}
	}
	out := logs[:0:0]
	for _, l := range logs {
		if _, ok := want[l.ProcessGuid]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (c *Client) scanHostLogs(ctx context.Context, host string) ([]model.RawLog, error) {
	key := fmt.Sprintf("logs/%s.ndjson.snz", host)
	var logs []model.RawLog
	err := c.scan(ctx, key, func(line []byte) error {
		var l model.RawLog
		if err := json.Unmarshal(line, &l); err != nil {
			return err
		}
		logs = append(logs, l)
		return nil
	})
	return logs, err
}

// scan downloads key, snappy-decompresses it, and calls onLine for each
// newline-delimited record.
func (c *Client) scan(ctx context.Context, key string, onLine func([]byte) error) error {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	compressed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	decompressed, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("decompress object %s: %w", key, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(decompressed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := onLine(line); err != nil {
			return fmt.Errorf("decode line in %s: %w", key, err)
		}
	}
	return scanner.Err()
}
