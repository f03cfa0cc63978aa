// Package agents drives replicas through the staging lifecycle.
//
// Four agents poll the coordinator on their own interval:
//
//   - resolve looks New replicas up in the catalog and moves them to Waiting
//   - submit issues recalls for eligible Waiting replicas within pin quotas
//   - monitor polls outstanding recalls and completes or fails them
//   - finalize notifies callers of finished tasks and removes the tasks
//
// Every cycle is a sequence of synchronous coordinator calls. The database
// stays the only authority; an agent that crashes mid-cycle resumes from
// whatever state the coordinator last committed.
package agents

import (
	"context"
	"time"

	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/service"
	"github.com/marmos91/stager/pkg/stager/store"
)

// Coordinator is the part of the coordinator the agents use.
type Coordinator interface {
	TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.TaskRef, error)
	TaskSummary(ctx context.Context, taskID string) (*models.TaskSummary, error)
	RemoveTask(ctx context.Context, taskID string) (*store.GCResult, error)

	ListReplicas(ctx context.Context, filter store.ReplicaFilter) (*store.ReplicaListing, error)
	ListWaitingReplicas(ctx context.Context) ([]models.WaitingReplica, error)
	MarkReplicasResolved(ctx context.Context, resolutions []models.ReplicaResolution) ([]string, error)
	MarkReplicasFailed(ctx context.Context, reasons map[string]string) ([]string, error)

	ListStageRequests(ctx context.Context, filter store.StageRequestFilter) ([]models.StageRequest, error)
	MarkStageSubmitted(ctx context.Context, requests map[string][]string, pinLifetime time.Duration) ([]string, error)
	MarkStageComplete(ctx context.Context, replicaIDs []string) ([]string, error)
	SubmittedPins(ctx context.Context) ([]models.PinUsage, error)
}

var _ Coordinator = (*service.Coordinator)(nil)

// Agent performs one polling cycle at a time.
type Agent interface {
	// Name identifies the agent in logs, metrics and stats.
	Name() string

	// RunOnce performs one cycle and returns how many records it moved
	// forward. An empty cycle is not an error.
	RunOnce(ctx context.Context) (int, error)
}

// Metrics records agent activity. A nil Metrics disables recording.
type Metrics interface {
	ObserveCycle(agent string, duration time.Duration, processed int, err error)
	SetPinnedBytes(storageElement string, bytes int64)
	RecordNotification(notifier string, err error)
}

// AgentConfig holds the settings every agent shares.
type AgentConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between cycles.
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// BatchSize caps the records handled per cycle. Zero means no cap.
	BatchSize int `mapstructure:"batch_size" validate:"gte=0" yaml:"batch_size"`
}

// SubmitConfig configures the submit agent.
type SubmitConfig struct {
	AgentConfig `mapstructure:",squash" yaml:",inline"`

	// MaxFilesPerRequest splits recalls into requests of at most this many
	// files. Zero means one request per storage element and cycle.
	MaxFilesPerRequest int `mapstructure:"max_files_per_request" validate:"gte=0" yaml:"max_files_per_request"`
}

// MonitorConfig configures the monitor agent.
type MonitorConfig struct {
	AgentConfig `mapstructure:",squash" yaml:",inline"`

	// StageTimeout fails recalls outstanding for longer than this.
	// Zero disables the timeout.
	StageTimeout time.Duration `mapstructure:"stage_timeout" yaml:"stage_timeout"`
}

// Config configures all agents.
type Config struct {
	Resolve  AgentConfig   `mapstructure:"resolve" yaml:"resolve"`
	Submit   SubmitConfig  `mapstructure:"submit" yaml:"submit"`
	Monitor  MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	Finalize AgentConfig   `mapstructure:"finalize" yaml:"finalize"`
}

// DefaultConfig enables every agent with conservative intervals.
func DefaultConfig() Config {
	return Config{
		Resolve: AgentConfig{Enabled: true, Interval: 30 * time.Second, BatchSize: 500},
		Submit: SubmitConfig{
			AgentConfig:        AgentConfig{Enabled: true, Interval: time.Minute, BatchSize: 1000},
			MaxFilesPerRequest: 100,
		},
		Monitor: MonitorConfig{
			AgentConfig: AgentConfig{Enabled: true, Interval: 2 * time.Minute, BatchSize: 1000},
		},
		Finalize: AgentConfig{Enabled: true, Interval: time.Minute, BatchSize: 200},
	}
}

// groupBySE groups replicas by storage element.
func groupBySE(replicas []models.CacheReplica) (map[string][]models.CacheReplica, []string) {
	groups := make(map[string][]models.CacheReplica)
	var order []string
	for _, r := range replicas {
		if _, ok := groups[r.StorageElement]; !ok {
			order = append(order, r.StorageElement)
		}
		groups[r.StorageElement] = append(groups[r.StorageElement], r)
	}
	return groups, order
}

// failAll builds a failure reason map for replicas.
func failAll(replicas []models.CacheReplica, reason string) map[string]string {
	reasons := make(map[string]string, len(replicas))
	for _, r := range replicas {
		reasons[r.ID] = reason
	}
	return reasons
}
