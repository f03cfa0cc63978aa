// Package health reads the liveness endpoint of a stager daemon for the
// status commands.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Response is the liveness envelope served at /health.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Healthy reports whether the daemon declared itself healthy.
func (r *Response) Healthy() bool {
	return r.Status == "healthy"
}

// DefaultTimeout bounds a status probe.
const DefaultTimeout = 2 * time.Second

// Fetch queries /health on baseURL, e.g. "http://localhost:8080".
func Fetch(ctx context.Context, baseURL string) (*Response, error) {
	url := strings.TrimSuffix(baseURL, "/") + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: DefaultTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid health response: %w", err)
	}
	return &out, nil
}
