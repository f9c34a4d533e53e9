package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/idlelock/idlelock/internal/domain"
)

// Client reads the status API of a running guard.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at host:port.
func NewClient(host string, port int) *Client {
	return &Client{
		base: fmt.Sprintf("http://%s:%d", host, port),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (domain.Status, error) {
	var st domain.Status
	err := c.get(ctx, "/api/status", &st)
	return st, err
}

// History fetches GET /api/history.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	var h HistoryResponse
	err := c.get(ctx, fmt.Sprintf("/api/history?limit=%d", limit), &h)
	return h, err
}

// Health fetches GET /health. A degraded guard is not an error.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var h HealthResponse
	err := c.get(ctx, "/health", &h, http.StatusServiceUnavailable)
	return h, err
}

func (c *Client) get(ctx context.Context, path string, v interface{}, okStatus ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is idlelock running? %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && !containsStatus(okStatus, resp.StatusCode) {
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) == nil && body.Error.Message != "" {
			return fmt.Errorf("%s: %s", path, body.Error.Message)
		}
		return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func containsStatus(list []int, code int) bool {
	for _, c := range list {
		if c == code {
			return true
		}
	}
	return false
}
