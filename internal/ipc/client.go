package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running platterd over its unix control socket.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient builds a client for the daemon socket at socketPath.
func NewClient(socketPath string) (*Client, error) {
	socketPath = strings.TrimSpace(socketPath)
	if socketPath == "" {
		return nil, errors.New("socket path is required")
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{
		socketPath: socketPath,
		http:       &http.Client{Transport: transport, Timeout: 2 * time.Minute},
	}, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	return out, err
}

// QueueList fetches queue items, optionally filtered by status names.
func (c *Client) QueueList(ctx context.Context, statuses ...string) (QueueListResponse, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var out QueueListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// QueueRetry requeues failed items; empty ids retries all failed items.
func (c *Client) QueueRetry(ctx context.Context, ids []int64) (int64, error) {
	var out CountResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/retry", RetryRequest{IDs: ids}, &out)
	return out.Count, err
}

// QueueClear removes queue items within the given scope: all, completed, or failed.
func (c *Client) QueueClear(ctx context.Context, scope string) (int64, error) {
	path := "/api/queue/clear"
	if scope = strings.TrimSpace(scope); scope != "" {
		path += "?scope=" + url.QueryEscape(scope)
	}
	var out CountResponse
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out.Count, err
}

// Health fetches aggregated queue and stage health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

// TestNotify asks the daemon to send a test notification.
func (c *Client) TestNotify(ctx context.Context) (NotifyResponse, error) {
	var out NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/notify/test", nil, &out)
	return out, err
}

// Detect triggers disc detection for the given device (empty uses the
// configured drive).
func (c *Client) Detect(ctx context.Context, device string) (DetectResponse, error) {
	path := "/api/detect"
	if device = strings.TrimSpace(device); device != "" {
		path += "?device=" + url.QueryEscape(device)
	}
	var out DetectResponse
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	// Host is ignored; the transport always dials the unix socket.
	req, err := http.NewRequestWithContext(ctx, method, "http://platterd"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Error != "" {
			return errors.New(payload.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
