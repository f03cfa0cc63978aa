package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/marmos91/stager/pkg/stager/backend"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Can the coordinator reach its database?
//   - Backend health: status of every storage element backend
type HealthHandler struct {
	coord     Coordinator
	backends  *backend.Registry
	startedAt time.Time
}

// NewHealthHandler creates a new health handler. backends may be nil when
// no agents run in this process.
func NewHealthHandler(coord Coordinator, backends *backend.Registry) *HealthHandler {
	return &HealthHandler{coord: coord, backends: backends, startedAt: time.Now()}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt).Round(time.Second)
	WriteJSONOK(w, healthyResponse(map[string]any{
		"service":    "stager",
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. It pings the database.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("coordinator not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := h.coord.Healthcheck(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("database: "+err.Error()))
		return
	}

	WriteJSONOK(w, healthyResponse(map[string]any{
		"database_latency": time.Since(start).String(),
	}))
}

// BackendHealth is the health of one storage element backend.
type BackendHealth struct {
	StorageElement string `json:"storage_element"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// Backends handles GET /health/backends.
func (h *HealthHandler) Backends(w http.ResponseWriter, r *http.Request) {
	if h.backends == nil {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no backends configured"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	results := h.backends.HealthCheck(ctx)
	response := make([]BackendHealth, 0, len(results))
	allHealthy := true
	for _, se := range h.backends.StorageElements() {
		health := BackendHealth{StorageElement: se, Status: "healthy"}
		if b, err := h.backends.Get(se); err == nil {
			health.Type = b.Type()
		}
		if err := results[se]; err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		}
		response = append(response, health)
	}

	if allHealthy {
		WriteJSONOK(w, healthyResponse(response))
	} else {
		WriteJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}
