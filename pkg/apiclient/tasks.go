package apiclient

import (
	"net/url"

	"github.com/marmos91/stager/pkg/stager/models"
)

// GCResult reports what removing a task released.
type GCResult struct {
	TaskID               string   `json:"task_id"`
	Unlinked             []string `json:"unlinked"`
	RemovedReplicas      []string `json:"removed_replicas"`
	RemovedStageRequests int64    `json:"removed_stage_requests"`
}

// TaskFilter selects tasks for ListTasks.
type TaskFilter struct {
	IDs      []string
	Statuses []string
	Source   string
	Window
}

type submitTaskResponse struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	TaskID string            `json:"task_id"`
	Status models.TaskStatus `json:"status"`
}

// SubmitTask creates a task staging files grouped by storage element and
// returns its id.
func (c *Client) SubmitTask(req models.TaskRequest) (string, error) {
	resp, err := createResource[submitTaskResponse](c, "/api/v1/tasks", req)
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// ListTasks returns tasks matching filter.
func (c *Client) ListTasks(filter TaskFilter) ([]models.Task, error) {
	q := url.Values{}
	setList(q, "id", filter.IDs)
	setList(q, "status", filter.Statuses)
	if filter.Source != "" {
		q.Set("source", filter.Source)
	}
	filter.Window.encode(q)
	return listResources[models.Task](c, withQuery("/api/v1/tasks", q))
}

// TasksByStatus returns the tasks in status, oldest first.
func (c *Client) TasksByStatus(status string) ([]models.TaskRef, error) {
	return listResources[models.TaskRef](c, resourcePath("/api/v1/tasks/by-status/%s", status))
}

// GetTask returns a task with its replicas.
func (c *Client) GetTask(id string) (*models.TaskInfo, error) {
	return getResource[models.TaskInfo](c, resourcePath("/api/v1/tasks/%s", id))
}

// GetTaskSummary returns the per-file view of a task.
func (c *Client) GetTaskSummary(id string) (*models.TaskSummary, error) {
	return getResource[models.TaskSummary](c, resourcePath("/api/v1/tasks/%s/summary", id))
}

// GetTaskStatus returns the status of a task.
func (c *Client) GetTaskStatus(id string) (models.TaskStatus, error) {
	resp, err := getResource[taskStatusResponse](c, resourcePath("/api/v1/tasks/%s/status", id))
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// SetTasksDone moves StageCompleting tasks to Done and returns those moved.
func (c *Client) SetTasksDone(ids []string) ([]string, error) {
	return updateIDs(c, "/api/v1/tasks/done", map[string][]string{"task_ids": ids})
}

// RemoveTask deletes a task and garbage-collects replicas nothing else uses.
func (c *Client) RemoveTask(id string) (*GCResult, error) {
	var result GCResult
	if err := c.delete(resourcePath("/api/v1/tasks/%s", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
