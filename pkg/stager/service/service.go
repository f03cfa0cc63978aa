// Package service exposes the staging coordinator to callers: the REST API,
// the agents and the CLI. Every operation delegates to the store and adds a
// trace span, a duration metric and a log line.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// Metrics records coordinator activity. A nil Metrics disables recording.
type Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	RecordSubmission(files int)
	RecordTransition(record, status string, requested, updated int)
	RecordGC(removedReplicas int, removedStageRequests int64)
}

// Options tunes pin bookkeeping.
type Options struct {
	// PinLifetime is requested from the archive when a caller does not
	// specify one. Default: 24h
	PinLifetime time.Duration

	// PinRetention is how long a staged replica stays pinned after its
	// recall completes. Default: 24h
	PinRetention time.Duration
}

func (o *Options) applyDefaults() {
	if o.PinLifetime == 0 {
		o.PinLifetime = 24 * time.Hour
	}
	if o.PinRetention == 0 {
		o.PinRetention = 24 * time.Hour
	}
}

// Coordinator is the exposed call contract of the staging coordinator.
type Coordinator struct {
	store   store.Store
	metrics Metrics
	opts    Options
}

// New creates a Coordinator over st. metrics may be nil.
func New(st store.Store, metrics Metrics, opts Options) *Coordinator {
	opts.applyDefaults()
	return &Coordinator{store: st, metrics: metrics, opts: opts}
}

// Options returns the effective options.
func (c *Coordinator) Options() Options {
	return c.opts
}

// begin opens the span and log context of one operation. The returned
// function must be called with the operation's error.
func (c *Coordinator) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := telemetry.StartCoordinatorSpan(ctx, operation, attrs...)

	lc := logger.FromContext(ctx)
	if lc == nil {
		lc = logger.NewLogContext("")
	}
	lc = lc.WithOperation(operation).WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)
	if lc.ClientIP != "" {
		span.SetAttributes(telemetry.ClientIP(lc.ClientIP))
	}

	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		if c.metrics != nil {
			c.metrics.ObserveOperation(operation, time.Since(start), err)
		}
		if err == nil {
			return
		}
		telemetry.RecordError(ctx, err)
		switch {
		case models.IsValidationError(err), isNotFound(err):
			logger.DebugCtx(ctx, "Operation rejected", logger.KeyError, err)
		default:
			logger.ErrorCtx(ctx, "Operation failed", logger.KeyError, err)
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrTaskNotFound) || errors.Is(err, models.ErrReplicaNotFound)
}

// transitioned records a transition outcome on the span and in metrics.
func (c *Coordinator) transitioned(ctx context.Context, record, status string, requested, updated int) {
	telemetry.SetAttributes(ctx, telemetry.Requested(requested), telemetry.Updated(updated))
	if c.metrics != nil {
		c.metrics.RecordTransition(record, status, requested, updated)
	}
}

// ============================================
// TASKS
// ============================================

// SubmitTask creates a task staging files, grouped by storage element.
func (c *Coordinator) SubmitTask(ctx context.Context, source, callbackID string, sourceTaskID *string, files map[string][]string) (taskID string, err error) {
	req := models.TaskRequest{
		Source:       source,
		CallbackID:   callbackID,
		SourceTaskID: sourceTaskID,
		Files:        files,
	}
	ctx, end := c.begin(ctx, "SubmitTask", telemetry.Source(source), telemetry.Requested(req.FileCount()))
	defer func() { end(err) }()

	taskID, err = c.store.SubmitTask(ctx, req)
	if err != nil {
		return "", err
	}

	telemetry.SetAttributes(ctx, telemetry.TaskID(taskID))
	if c.metrics != nil {
		c.metrics.RecordSubmission(req.FileCount())
	}
	return taskID, nil
}

// TaskStatus returns the current status of a task.
func (c *Coordinator) TaskStatus(ctx context.Context, taskID string) (status models.TaskStatus, err error) {
	ctx, end := c.begin(ctx, "TaskStatus", telemetry.TaskID(taskID))
	defer func() { end(err) }()
	return c.store.GetTaskStatus(ctx, taskID)
}

// TaskInfo returns a task with its replicas.
func (c *Coordinator) TaskInfo(ctx context.Context, taskID string) (info *models.TaskInfo, err error) {
	ctx, end := c.begin(ctx, "TaskInfo", telemetry.TaskID(taskID))
	defer func() { end(err) }()
	return c.store.GetTaskInfo(ctx, taskID)
}

// TaskSummary returns the per-file view of a task.
func (c *Coordinator) TaskSummary(ctx context.Context, taskID string) (summary *models.TaskSummary, err error) {
	ctx, end := c.begin(ctx, "TaskSummary", telemetry.TaskID(taskID))
	defer func() { end(err) }()
	return c.store.GetTaskSummary(ctx, taskID)
}

// TasksByStatus returns the tasks in status, oldest first.
func (c *Coordinator) TasksByStatus(ctx context.Context, status models.TaskStatus) (refs []models.TaskRef, err error) {
	ctx, end := c.begin(ctx, "TasksByStatus", attribute.String(telemetry.AttrTaskStatus, string(status)))
	defer func() { end(err) }()
	return c.store.TasksByStatus(ctx, status)
}

// ListTasks returns tasks matching filter.
func (c *Coordinator) ListTasks(ctx context.Context, filter store.TaskFilter) (tasks []models.Task, err error) {
	ctx, end := c.begin(ctx, "ListTasks")
	defer func() { end(err) }()
	return c.store.ListTasks(ctx, filter)
}

// SetTasksDone walks StageCompleting tasks to Done.
func (c *Coordinator) SetTasksDone(ctx context.Context, taskIDs []string) (updated []string, err error) {
	ctx, end := c.begin(ctx, "SetTasksDone", telemetry.Requested(len(taskIDs)))
	defer func() { end(err) }()

	updated, err = c.store.SetTasksDone(ctx, taskIDs)
	if err != nil {
		return nil, err
	}
	c.transitioned(ctx, "task", string(models.TaskDone), len(taskIDs), len(updated))
	return updated, nil
}

// RemoveTask deletes a task and garbage-collects the replicas only it used.
func (c *Coordinator) RemoveTask(ctx context.Context, taskID string) (result *store.GCResult, err error) {
	ctx, end := c.begin(ctx, "RemoveTask", telemetry.TaskID(taskID))
	defer func() { end(err) }()

	result, err = c.store.RemoveTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordGC(len(result.RemovedReplicas), result.RemovedStageRequests)
	}
	return result, nil
}

// ============================================
// REPLICAS
// ============================================

// ListReplicas returns replicas matching filter with their task links.
func (c *Coordinator) ListReplicas(ctx context.Context, filter store.ReplicaFilter) (listing *store.ReplicaListing, err error) {
	ctx, end := c.begin(ctx, "ListReplicas")
	defer func() { end(err) }()
	return c.store.ListReplicas(ctx, filter)
}

// ListWaitingReplicas returns the replicas ready for stage submission.
func (c *Coordinator) ListWaitingReplicas(ctx context.Context) (waiting []models.WaitingReplica, err error) {
	ctx, end := c.begin(ctx, "ListWaitingReplicas")
	defer func() { end(err) }()

	waiting, err = c.store.WaitingReplicas(ctx)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(ctx, telemetry.Updated(len(waiting)))
	return waiting, nil
}

// MarkReplicasResolved records catalog information for New replicas.
func (c *Coordinator) MarkReplicasResolved(ctx context.Context, resolutions []models.ReplicaResolution) (updated []string, err error) {
	ctx, end := c.begin(ctx, "MarkReplicasResolved", telemetry.Requested(len(resolutions)))
	defer func() { end(err) }()

	updated, err = c.store.MarkReplicasResolved(ctx, resolutions)
	if err != nil {
		return nil, err
	}
	c.transitioned(ctx, "replica", string(models.ReplicaWaiting), len(resolutions), len(updated))
	return updated, nil
}

// MarkReplicasFailed fails replicas with a reason each.
func (c *Coordinator) MarkReplicasFailed(ctx context.Context, reasons map[string]string) (updated []string, err error) {
	ctx, end := c.begin(ctx, "MarkReplicasFailed", telemetry.Requested(len(reasons)))
	defer func() { end(err) }()

	updated, err = c.store.MarkReplicasFailed(ctx, reasons)
	if err != nil {
		return nil, err
	}
	c.transitioned(ctx, "replica", string(models.ReplicaFailed), len(reasons), len(updated))
	return updated, nil
}

// ============================================
// STAGE REQUESTS
// ============================================

// MarkStageSubmitted records the recalls issued for replicas, keyed by
// external request id. A zero pinLifetime uses the configured default.
func (c *Coordinator) MarkStageSubmitted(ctx context.Context, requests map[string][]string, pinLifetime time.Duration) (updated []string, err error) {
	requested := 0
	for _, ids := range requests {
		requested += len(ids)
	}
	ctx, end := c.begin(ctx, "MarkStageSubmitted", telemetry.Requested(requested))
	defer func() { end(err) }()

	if pinLifetime == 0 {
		pinLifetime = c.opts.PinLifetime
	}
	updated, err = c.store.MarkStageSubmitted(ctx, requests, pinLifetime)
	if err != nil {
		return nil, err
	}
	c.transitioned(ctx, "replica", string(models.ReplicaStageSubmitted), requested, len(updated))
	return updated, nil
}

// MarkStageComplete completes the recalls of replicaIDs and pins them for
// the configured retention.
func (c *Coordinator) MarkStageComplete(ctx context.Context, replicaIDs []string) (updated []string, err error) {
	ctx, end := c.begin(ctx, "MarkStageComplete", telemetry.Requested(len(replicaIDs)))
	defer func() { end(err) }()

	updated, err = c.store.MarkStageComplete(ctx, replicaIDs, c.opts.PinRetention)
	if err != nil {
		return nil, err
	}
	c.transitioned(ctx, "replica", string(models.ReplicaStaged), len(replicaIDs), len(updated))
	return updated, nil
}

// ListStageRequests returns stage requests matching filter.
func (c *Coordinator) ListStageRequests(ctx context.Context, filter store.StageRequestFilter) (requests []models.StageRequest, err error) {
	ctx, end := c.begin(ctx, "ListStageRequests")
	defer func() { end(err) }()
	return c.store.ListStageRequests(ctx, filter)
}

// SubmittedPins reports pinned replicas and bytes per storage element.
func (c *Coordinator) SubmittedPins(ctx context.Context) (usage []models.PinUsage, err error) {
	ctx, end := c.begin(ctx, "SubmittedPins")
	defer func() { end(err) }()
	return c.store.SubmittedPins(ctx)
}

// Healthcheck pings the datastore.
func (c *Coordinator) Healthcheck(ctx context.Context) error {
	return c.store.Healthcheck(ctx)
}
