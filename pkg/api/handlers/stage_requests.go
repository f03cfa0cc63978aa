package handlers

import (
	"net/http"
	"time"

	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// StageHandler handles stage request and pin endpoints.
type StageHandler struct {
	coord Coordinator
	stats AgentStats
}

// NewStageHandler creates a stage handler over coord. stats may be nil.
func NewStageHandler(coord Coordinator, stats AgentStats) *StageHandler {
	return &StageHandler{coord: coord, stats: stats}
}

// SubmitStageRequest records recalls issued to the archive.
type SubmitStageRequest struct {
	// Requests maps an external request id to the replicas recalled by it.
	Requests map[string][]string `json:"requests"`

	// PinLifetime is the requested pin lifetime in seconds. Zero uses the
	// server default.
	PinLifetime int64 `json:"pin_lifetime,omitempty"`
}

// CompleteStageRequest carries the replicas whose recall finished.
type CompleteStageRequest struct {
	ReplicaIDs []string `json:"replica_ids"`
}

// List handles GET /stage-requests.
func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	filter := store.StageRequestFilter{
		ReplicaIDs: queryList(r, "replica_id"),
		RequestID:  q.Get("request_id"),
		TaskID:     q.Get("task_id"),
		Window:     win,
	}
	for _, name := range queryList(r, "status") {
		status, err := models.ParseStageStatus(name)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	requests, err := h.coord.ListStageRequests(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, requests)
}

// Submit handles POST /stage-requests.
func (h *StageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitStageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.PinLifetime < 0 {
		BadRequest(w, "pin_lifetime must not be negative")
		return
	}

	ids, err := h.coord.MarkStageSubmitted(r.Context(), req.Requests, time.Duration(req.PinLifetime)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, updated(ids))
}

// Complete handles POST /stage-requests/complete.
func (h *StageHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteStageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ids, err := h.coord.MarkStageComplete(r.Context(), req.ReplicaIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, updated(ids))
}

// Pins handles GET /pins.
func (h *StageHandler) Pins(w http.ResponseWriter, r *http.Request) {
	usage, err := h.coord.SubmittedPins(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, usage)
}

// Agents handles GET /agents: cycle statistics of the agents running in
// this process.
func (h *StageHandler) Agents(w http.ResponseWriter, r *http.Request) {
	stats := map[string]agents.Stats{}
	if h.stats != nil {
		stats = h.stats.Stats()
	}
	WriteJSONOK(w, stats)
}
