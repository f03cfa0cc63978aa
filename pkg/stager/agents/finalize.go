package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/notify"
)

// finishedStatuses are the task statuses the finalize agent reports on.
var finishedStatuses = []models.TaskStatus{models.TaskDone, models.TaskStaged, models.TaskFailed}

// FinalizeAgent notifies callers of finished tasks and then removes the
// tasks, which releases replicas no other task needs. A task whose
// notification fails is kept and retried on the next cycle.
type FinalizeAgent struct {
	coord     Coordinator
	notifier  notify.Notifier
	batchSize int
	metrics   Metrics

	// now is replaceable in tests.
	now func() time.Time
}

// NewFinalizeAgent creates a FinalizeAgent. metrics may be nil.
func NewFinalizeAgent(coord Coordinator, notifier notify.Notifier, config AgentConfig, metrics Metrics) *FinalizeAgent {
	return &FinalizeAgent{
		coord:     coord,
		notifier:  notifier,
		batchSize: config.BatchSize,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (a *FinalizeAgent) Name() string { return "finalize" }

func (a *FinalizeAgent) RunOnce(ctx context.Context) (int, error) {
	var (
		processed int
		errs      []error
	)
	for _, status := range finishedStatuses {
		tasks, err := a.coord.TasksByStatus(ctx, status)
		if err != nil {
			return processed, fmt.Errorf("list %s tasks: %w", status, err)
		}
		for _, task := range tasks {
			if a.batchSize > 0 && processed >= a.batchSize {
				return processed, errors.Join(errs...)
			}
			if err := a.finalize(ctx, task, status); err != nil {
				errs = append(errs, err)
				continue
			}
			processed++
		}
	}
	return processed, errors.Join(errs...)
}

func (a *FinalizeAgent) finalize(ctx context.Context, task models.TaskRef, status models.TaskStatus) error {
	summary, err := a.coord.TaskSummary(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("summarize task %s: %w", task.ID, err)
	}

	n := notify.TaskNotification{
		TaskID:       task.ID,
		Source:       task.Source,
		CallbackID:   task.CallbackID,
		SourceTaskID: task.SourceTaskID,
		Status:       status,
		Summary:      summary,
		Time:         a.now().UTC(),
	}
	if err := a.deliver(ctx, n); err != nil {
		logger.WarnCtx(ctx, "Task notification failed, will retry",
			logger.KeyTaskID, task.ID,
			logger.KeyCallbackID, task.CallbackID,
			logger.KeyError, err)
		return fmt.Errorf("notify task %s: %w", task.ID, err)
	}

	result, err := a.coord.RemoveTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("remove task %s: %w", task.ID, err)
	}
	logger.DebugCtx(ctx, "Task finalized",
		logger.KeyTaskID, task.ID,
		logger.KeyStatus, status,
		"removed_replicas", len(result.RemovedReplicas))
	return nil
}

func (a *FinalizeAgent) deliver(ctx context.Context, n notify.TaskNotification) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanNotify)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.TaskID(n.TaskID))

	err := a.notifier.Notify(ctx, n)
	if a.metrics != nil {
		a.metrics.RecordNotification(a.notifier.Type(), err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}
