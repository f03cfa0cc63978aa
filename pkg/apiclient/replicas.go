package apiclient

import (
	"net/url"

	"github.com/marmos91/stager/pkg/stager/models"
)

// ReplicaFilter selects replicas for ListReplicas.
type ReplicaFilter struct {
	IDs            []string
	Statuses       []string
	StorageElement string
	TaskID         string
	Window
}

// ReplicaListing is a page of replicas with the tasks linked to each.
type ReplicaListing struct {
	Replicas []models.CacheReplica `json:"replicas"`
	TaskIDs  map[string][]string   `json:"task_ids"`
}

// ListReplicas returns replicas matching filter.
func (c *Client) ListReplicas(filter ReplicaFilter) (*ReplicaListing, error) {
	q := url.Values{}
	setList(q, "id", filter.IDs)
	setList(q, "status", filter.Statuses)
	if filter.StorageElement != "" {
		q.Set("storage_element", filter.StorageElement)
	}
	if filter.TaskID != "" {
		q.Set("task_id", filter.TaskID)
	}
	filter.Window.encode(q)
	return getResource[ReplicaListing](c, withQuery("/api/v1/replicas", q))
}

// ListWaitingReplicas returns the replicas ready for stage submission.
func (c *Client) ListWaitingReplicas() ([]models.WaitingReplica, error) {
	return listResources[models.WaitingReplica](c, "/api/v1/replicas/waiting")
}

// MarkReplicasResolved records catalog information for New replicas.
func (c *Client) MarkReplicasResolved(resolutions []models.ReplicaResolution) ([]string, error) {
	return updateIDs(c, "/api/v1/replicas/resolved", map[string]any{"resolutions": resolutions})
}

// MarkReplicasFailed fails replicas with a reason each.
func (c *Client) MarkReplicasFailed(reasons map[string]string) ([]string, error) {
	return updateIDs(c, "/api/v1/replicas/failed", map[string]any{"reasons": reasons})
}
