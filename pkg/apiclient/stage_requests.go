package apiclient

import (
	"net/url"
	"time"

	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/models"
)

// StageRequestFilter selects stage requests for ListStageRequests.
type StageRequestFilter struct {
	ReplicaIDs []string
	Statuses   []string
	RequestID  string
	TaskID     string
	Window
}

// ListStageRequests returns stage requests matching filter.
func (c *Client) ListStageRequests(filter StageRequestFilter) ([]models.StageRequest, error) {
	q := url.Values{}
	setList(q, "replica_id", filter.ReplicaIDs)
	setList(q, "status", filter.Statuses)
	if filter.RequestID != "" {
		q.Set("request_id", filter.RequestID)
	}
	if filter.TaskID != "" {
		q.Set("task_id", filter.TaskID)
	}
	filter.Window.encode(q)
	return listResources[models.StageRequest](c, withQuery("/api/v1/stage-requests", q))
}

// MarkStageSubmitted records recalls keyed by external request id. A zero
// pinLifetime uses the server default.
func (c *Client) MarkStageSubmitted(requests map[string][]string, pinLifetime time.Duration) ([]string, error) {
	return updateIDs(c, "/api/v1/stage-requests", map[string]any{
		"requests":     requests,
		"pin_lifetime": int64(pinLifetime / time.Second),
	})
}

// MarkStageComplete completes the recalls of replicaIDs.
func (c *Client) MarkStageComplete(replicaIDs []string) ([]string, error) {
	return updateIDs(c, "/api/v1/stage-requests/complete", map[string]any{"replica_ids": replicaIDs})
}

// SubmittedPins reports pinned replicas and bytes per storage element.
func (c *Client) SubmittedPins() ([]models.PinUsage, error) {
	return listResources[models.PinUsage](c, "/api/v1/pins")
}

// AgentStats returns the cycle statistics of the server's agents.
func (c *Client) AgentStats() (map[string]agents.Stats, error) {
	var stats map[string]agents.Stats
	if err := c.get("/api/v1/agents", &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
