package handlers

import (
	"net/http"

	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// ReplicaHandler handles cache replica endpoints.
type ReplicaHandler struct {
	coord Coordinator
}

// NewReplicaHandler creates a replica handler over coord.
func NewReplicaHandler(coord Coordinator) *ReplicaHandler {
	return &ReplicaHandler{coord: coord}
}

// ResolveRequest carries catalog results for New replicas.
type ResolveRequest struct {
	Resolutions []models.ReplicaResolution `json:"resolutions"`
}

// FailRequest carries a failure reason per replica id.
type FailRequest struct {
	Reasons map[string]string `json:"reasons"`
}

// List handles GET /replicas.
func (h *ReplicaHandler) List(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	filter := store.ReplicaFilter{
		IDs:            queryList(r, "id"),
		StorageElement: q.Get("storage_element"),
		TaskID:         q.Get("task_id"),
		Window:         win,
	}
	for _, name := range queryList(r, "status") {
		status, err := models.ParseReplicaStatus(name)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	listing, err := h.coord.ListReplicas(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, listing)
}

// Waiting handles GET /replicas/waiting.
func (h *ReplicaHandler) Waiting(w http.ResponseWriter, r *http.Request) {
	waiting, err := h.coord.ListWaitingReplicas(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, waiting)
}

// Resolved handles POST /replicas/resolved.
func (h *ReplicaHandler) Resolved(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ids, err := h.coord.MarkReplicasResolved(r.Context(), req.Resolutions)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, updated(ids))
}

// Failed handles POST /replicas/failed.
func (h *ReplicaHandler) Failed(w http.ResponseWriter, r *http.Request) {
	var req FailRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ids, err := h.coord.MarkReplicasFailed(r.Context(), req.Reasons)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, updated(ids))
}
