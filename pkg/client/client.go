// Package client is a hand-written HTTP/WebSocket client for the
// queuectl admin surface, for Go programs that reach queuectl over HTTP.
// The queuectl CLI does not use it; it opens the Store directly.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maumercado/queuectl/internal/job"
	"github.com/maumercado/queuectl/internal/queue"
)

// Client talks to a running "queuectl admin serve" instance.
type Client struct {
	baseURL string
	opts    *options
}

// New creates a Client pointed at baseURL (e.g. "http://127.0.0.1:7850").
func New(baseURL string, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), opts: o}
}

// ListJobs returns jobs, optionally filtered by state, capped at limit
// (0 uses the server default).
func (c *Client) ListJobs(ctx context.Context, state job.State, limit int) ([]*job.Job, error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", string(state))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Jobs []*job.Job `json:"jobs"`
	}
	if err := c.get(ctx, "/api/v1/jobs?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Jobs, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id string) (*job.Job, error) {
	var j job.Job
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(id), &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Status fetches the queue health summary.
func (c *Client) Status(ctx context.Context) (*queue.Status, error) {
	var s queue.Status
	if err := c.get(ctx, "/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListDLQ returns jobs currently in the dead letter queue.
func (c *Client) ListDLQ(ctx context.Context, limit int) ([]*job.Job, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var body struct {
		Jobs []*job.Job `json:"jobs"`
	}
	if err := c.get(ctx, "/api/v1/dlq?"+q.Encode(), &body); err != nil {
		return nil, err
	}
	return body.Jobs, nil
}

// RetryDLQ requeues a dead-lettered job. Requires WithBearerToken.
func (c *Client) RetryDLQ(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/dlq/"+url.PathEscape(id)+"/retry", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("retry dlq job %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("retry dlq job %s: %s", id, statusError(resp))
	}
	return nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: %s", statusError(resp))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, statusError(resp))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(req *http.Request) {
	if c.opts.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.bearerToken)
	}
}

func statusError(resp *http.Response) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error != "" {
		return fmt.Sprintf("%d %s", resp.StatusCode, body.Error)
	}
	return resp.Status
}
