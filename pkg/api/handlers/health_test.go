package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/backend/memory"
)

// pingCoordinator only answers Healthcheck.
type pingCoordinator struct {
	Coordinator
	err error
}

func (c *pingCoordinator) Healthcheck(context.Context) error { return c.err }

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", resp.Status)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "stager" {
		t.Errorf("Expected service 'stager', got '%s'", data["service"])
	}
	if _, ok := data["started_at"].(string); !ok {
		t.Errorf("Expected started_at in liveness data, got %v", data["started_at"])
	}
	if _, ok := data["uptime"].(string); !ok {
		t.Errorf("Expected uptime in liveness data, got %v", data["uptime"])
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		coord  Coordinator
		status int
	}{
		{"no coordinator", nil, http.StatusServiceUnavailable},
		{"database down", &pingCoordinator{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
		{"database up", &pingCoordinator{}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.coord, nil).Readiness(w, httptest.NewRequest("GET", "/health/ready", nil))
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestBackends(t *testing.T) {
	t.Run("no registry", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHealthHandler(nil, nil).Backends(w, httptest.NewRequest("GET", "/health/backends", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
	})

	reg := backend.NewRegistry()
	healthy := memory.New(memory.Config{})
	closed := memory.New(memory.Config{})
	if err := reg.Register("DISK", healthy); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("TAPE", closed); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	NewHealthHandler(nil, reg).Backends(w, httptest.NewRequest("GET", "/health/backends", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	_ = closed.Close()
	w = httptest.NewRecorder()
	NewHealthHandler(nil, reg).Backends(w, httptest.NewRequest("GET", "/health/backends", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	var resp struct {
		Status string          `json:"status"`
		Data   []BackendHealth `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("Expected 2 backends, got %d", len(resp.Data))
	}
	if resp.Data[0].Status != "healthy" || resp.Data[1].Status != "unhealthy" {
		t.Errorf("Unexpected backend health: %+v", resp.Data)
	}
	if resp.Data[1].Type != "memory" {
		t.Errorf("Expected memory backend type, got %q", resp.Data[1].Type)
	}
}
