package handlers

import (
	"context"
	"time"

	"github.com/marmos91/stager/pkg/stager/agents"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// Coordinator is the call contract the REST handlers map onto.
// *service.Coordinator implements it.
type Coordinator interface {
	SubmitTask(ctx context.Context, source, callbackID string, sourceTaskID *string, files map[string][]string) (string, error)
	TaskStatus(ctx context.Context, taskID string) (models.TaskStatus, error)
	TaskInfo(ctx context.Context, taskID string) (*models.TaskInfo, error)
	TaskSummary(ctx context.Context, taskID string) (*models.TaskSummary, error)
	TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.TaskRef, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]models.Task, error)
	SetTasksDone(ctx context.Context, taskIDs []string) ([]string, error)
	RemoveTask(ctx context.Context, taskID string) (*store.GCResult, error)

	ListReplicas(ctx context.Context, filter store.ReplicaFilter) (*store.ReplicaListing, error)
	ListWaitingReplicas(ctx context.Context) ([]models.WaitingReplica, error)
	MarkReplicasResolved(ctx context.Context, resolutions []models.ReplicaResolution) ([]string, error)
	MarkReplicasFailed(ctx context.Context, reasons map[string]string) ([]string, error)

	MarkStageSubmitted(ctx context.Context, requests map[string][]string, pinLifetime time.Duration) ([]string, error)
	MarkStageComplete(ctx context.Context, replicaIDs []string) ([]string, error)
	ListStageRequests(ctx context.Context, filter store.StageRequestFilter) ([]models.StageRequest, error)
	SubmittedPins(ctx context.Context) ([]models.PinUsage, error)

	Healthcheck(ctx context.Context) error
}

// AgentStats reports the cycles of the agents running in this process.
// *agents.Runner implements it.
type AgentStats interface {
	Stats() map[string]agents.Stats
}
