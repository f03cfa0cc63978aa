package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// TaskHandler handles task endpoints.
type TaskHandler struct {
	coord Coordinator
}

// NewTaskHandler creates a task handler over coord.
func NewTaskHandler(coord Coordinator) *TaskHandler {
	return &TaskHandler{coord: coord}
}

// SubmitTaskResponse is the body of a successful submission.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskStatusResponse is the body of GET /tasks/{id}/status.
type TaskStatusResponse struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// TaskIDsRequest carries a batch of task ids.
type TaskIDsRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// Submit handles POST /tasks.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.TaskRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	taskID, err := h.coord.SubmitTask(r.Context(), req.Source, req.CallbackID, req.SourceTaskID, req.Files)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONCreated(w, SubmitTaskResponse{TaskID: taskID})
}

// List handles GET /tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	filter := store.TaskFilter{
		IDs:    queryList(r, "id"),
		Source: r.URL.Query().Get("source"),
		Window: win,
	}
	for _, name := range queryList(r, "status") {
		status, err := models.ParseTaskStatus(name)
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	tasks, err := h.coord.ListTasks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, tasks)
}

// ByStatus handles GET /tasks/by-status/{status}: the tasks in one status,
// oldest first, with their callback identities.
func (h *TaskHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := models.ParseTaskStatus(chi.URLParam(r, "status"))
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	refs, err := h.coord.TasksByStatus(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, refs)
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.coord.TaskInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, info)
}

// Summary handles GET /tasks/{id}/summary.
func (h *TaskHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coord.TaskSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, summary)
}

// Status handles GET /tasks/{id}/status.
func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := h.coord.TaskStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, TaskStatusResponse{TaskID: id, Status: status})
}

// Remove handles DELETE /tasks/{id}.
func (h *TaskHandler) Remove(w http.ResponseWriter, r *http.Request) {
	result, err := h.coord.RemoveTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, result)
}

// Done handles POST /tasks/done.
func (h *TaskHandler) Done(w http.ResponseWriter, r *http.Request) {
	var req TaskIDsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ids, err := h.coord.SetTasksDone(r.Context(), req.TaskIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, updated(ids))
}
