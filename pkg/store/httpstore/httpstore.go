// Package httpstore is the primary store.Store implementation: it queries
// an external HTTP search-store endpoint (spec §1's "external search
// store", spec §6).
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// wrapErr preserves a transport-level StageError's kind (StoreUnavailable)
// and only classifies as StoreQueryFailed the errors post() didn't already
// tag — malformed request/response bodies and unexpected status codes.
func wrapErr(err error) *model.StageError {
	var stageErr *model.StageError
	if errors.As(err, &stageErr) {
		return stageErr
	}
	return model.NewStageError("store.httpstore", model.KindStoreQueryFailed, err)
}

const defaultTimeout = 10 * time.Second

// Client queries an external search-store HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client pointed at baseURL, using the given http.Client
// (nil uses a default 10s-timeout client).
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type alarmsRequest struct {
	Host string `json:"host"`
}

type alarmsResponse struct {
	Alarms []model.RawAlarm `json:"alarms"`
}

// QueryAlarmsByHost implements store.Store.
func (c *Client) QueryAlarmsByHost(ctx context.Context, host string) ([]model.RawAlarm, error) {
	var out alarmsResponse
	if err := c.post(ctx, "/alarms", alarmsRequest{Host: host}, &out); err != nil {
		return nil, wrapErr(err).WithHost(host)
	}
	return out.Alarms, nil
}

type logsByTraceRequest struct {
	TraceID   string    `json:"traceId"`
	Host      string    `json:"host"`
	AlarmTime time.Time `json:"alarmTime"`
}

type logsResponse struct {
	Logs []model.RawLog `json:"logs"`
}

// QueryLogsByTraceIDAndHost implements store.Store.
func (c *Client) QueryLogsByTraceIDAndHost(ctx context.Context, traceID, host string, alarmTime time.Time) ([]model.RawLog, error) {
	var out logsResponse
	req := logsByTraceRequest{TraceID: traceID, Host: host, AlarmTime: alarmTime}
	if err := c.post(ctx, "/logs/by-trace", req, &out); err != nil {
		return nil, wrapErr(err).WithHost(host).WithTrace(traceID)
	}
	return out.Logs, nil
}

type logsByGuidsRequest struct {
	Host        string   `json:"host"`
	ParentGuids []string `json:"parentGuids"`
	MaxDepth    int      `json:"maxDepth"`
}

// QueryLogsByProcessGuids implements store.Store.
func (c *Client) QueryLogsByProcessGuids(ctx context.Context, host string, parentGuids []string, maxDepth int) ([]model.RawLog, error) {
	var out logsResponse
	req := logsByGuidsRequest{Host: host, ParentGuids: parentGuids, MaxDepth: maxDepth}
	if err := c.post(ctx, "/logs/by-process-guids", req, &out); err != nil {
		return nil, wrapErr(err).WithHost(host)
	}
	return out.Logs, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return model.NewStageError("store.httpstore", model.KindStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
