package store

import (
	"time"

	"github.com/marmos91/stager/pkg/stager/models"
)

// Window bounds a listing by time, order and size. The time column depends
// on the record: submit time for tasks and replicas, submit time for stage
// requests.
type Window struct {
	// Newer keeps records at or after this instant.
	Newer *time.Time

	// Older keeps records strictly before this instant.
	Older *time.Time

	// Descending lists the most recent records first.
	Descending bool

	// Limit caps the number of records. Zero means no limit.
	Limit int
}

// TaskFilter selects tasks for ListTasks.
type TaskFilter struct {
	IDs      []string
	Statuses []models.TaskStatus
	Source   string
	Window
}

// ReplicaFilter selects cache replicas for ListReplicas.
type ReplicaFilter struct {
	IDs            []string
	Statuses       []models.ReplicaStatus
	StorageElement string
	TaskID         string
	Window
}

// StageRequestFilter selects stage requests for ListStageRequests.
type StageRequestFilter struct {
	ReplicaIDs []string
	Statuses   []models.StageStatus
	RequestID  string
	TaskID     string
	Window
}

// ReplicaListing is a page of replicas together with the tasks that
// currently depend on each of them.
type ReplicaListing struct {
	Replicas []models.CacheReplica `json:"replicas"`

	// TaskIDs maps a replica id to the ids of the tasks linked to it.
	TaskIDs map[string][]string `json:"task_ids"`
}

// GCResult reports what removing a task released.
type GCResult struct {
	TaskID string `json:"task_id"`

	// Unlinked lists replicas that lost a reference.
	Unlinked []string `json:"unlinked"`

	// RemovedReplicas lists replicas deleted because nothing references them.
	RemovedReplicas []string `json:"removed_replicas"`

	// RemovedStageRequests counts stage requests deleted with them.
	RemovedStageRequests int64 `json:"removed_stage_requests"`
}
