// Package store persists the staging state machine.
//
// GORMStore owns every record of the coordinator: tasks, cache replicas, the
// associations between them and stage requests. Each mutating method runs in
// its own database transaction; the transition precondition (current status
// is a permitted predecessor of the target) is part of that transaction, so
// concurrent callers racing on the same ids converge on one ordering.
//
// Methods that apply a transition return the ids that actually changed. Ids
// in a state that does not permit the transition are skipped silently.
package store

import (
	"context"
	"time"

	"github.com/marmos91/stager/pkg/stager/models"
)

// Store is the persistence contract of the staging coordinator.
type Store interface {
	// ============================================
	// REPLICA REGISTRY
	// ============================================

	// ResolveReplicas returns the existing replicas of storageElement among
	// lfns, keyed by logical file name. Missing names are absent from the map.
	ResolveReplicas(ctx context.Context, storageElement string, lfns []string) (map[string]models.ReplicaRef, error)

	// GetReplica returns a replica by id.
	GetReplica(ctx context.Context, id string) (*models.CacheReplica, error)

	// ListReplicas returns replicas matching filter with their task links.
	ListReplicas(ctx context.Context, filter ReplicaFilter) (*ReplicaListing, error)

	// UpdateReplicaStatus applies a replica transition and propagates the
	// change to every dependent task. Returns the ids that changed.
	UpdateReplicaStatus(ctx context.Context, replicaIDs []string, status models.ReplicaStatus) ([]string, error)

	// ============================================
	// TASK LEDGER
	// ============================================

	// GetTask returns a task by id.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)

	// GetTaskStatus returns the current status of a task.
	GetTaskStatus(ctx context.Context, taskID string) (models.TaskStatus, error)

	// GetTaskInfo returns a task with every replica it depends on.
	GetTaskInfo(ctx context.Context, taskID string) (*models.TaskInfo, error)

	// GetTaskSummary returns the per-file view of a task.
	GetTaskSummary(ctx context.Context, taskID string) (*models.TaskSummary, error)

	// TasksByStatus returns the tasks currently in status, oldest first.
	TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.TaskRef, error)

	// ListTasks returns tasks matching filter.
	ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// UpdateTaskStatus applies a task transition. Returns the ids that changed.
	UpdateTaskStatus(ctx context.Context, taskIDs []string, status models.TaskStatus) ([]string, error)

	// SetTasksDone completes tasks that are StageCompleting.
	SetTasksDone(ctx context.Context, taskIDs []string) ([]string, error)

	// ============================================
	// STAGE REQUEST TRACKER
	// ============================================

	// SubmittedPins aggregates, per storage element, the replicas past
	// submission whose pin has not expired.
	SubmittedPins(ctx context.Context) ([]models.PinUsage, error)

	// ListStageRequests returns stage requests matching filter.
	ListStageRequests(ctx context.Context, filter StageRequestFilter) ([]models.StageRequest, error)

	// ============================================
	// LIFECYCLE COORDINATOR
	// ============================================

	// SubmitTask creates a task for req, deduplicating its files against
	// existing replicas. Nothing is persisted if it fails.
	SubmitTask(ctx context.Context, req models.TaskRequest) (string, error)

	// WaitingReplicas returns the Waiting replicas of tasks that have no
	// unresolved or failed replica.
	WaitingReplicas(ctx context.Context) ([]models.WaitingReplica, error)

	// MarkReplicasResolved records catalog information and moves the
	// replicas to Waiting.
	MarkReplicasResolved(ctx context.Context, resolutions []models.ReplicaResolution) ([]string, error)

	// MarkStageSubmitted records one stage request per replica, keyed by
	// request id, and moves the replicas to StageSubmitted.
	MarkStageSubmitted(ctx context.Context, requests map[string][]string, pinLifetime time.Duration) ([]string, error)

	// MarkStageComplete completes the stage requests of replicaIDs, pins
	// them for retention and moves the replicas to Staged.
	MarkStageComplete(ctx context.Context, replicaIDs []string, retention time.Duration) ([]string, error)

	// MarkReplicasFailed fails replicas with the given reasons.
	MarkReplicasFailed(ctx context.Context, reasons map[string]string) ([]string, error)

	// RemoveTask deletes a task and its links, then garbage-collects every
	// replica no longer referenced by any task.
	RemoveTask(ctx context.Context, taskID string) (*GCResult, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	Healthcheck(ctx context.Context) error
	Close() error
}
