package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/lifecycle"
	"github.com/marmos91/stager/pkg/stager/models"
)

// ============================================
// TASK LEDGER
// ============================================

// createTask inserts a New task.
func (s *GORMStore) createTask(tx *gorm.DB, source, callbackID string, sourceTaskID *string) (string, error) {
	now := s.now()
	task := &models.Task{
		ID:           uuid.New().String(),
		Status:       models.TaskNew,
		Source:       source,
		SubmitTime:   now,
		LastUpdate:   now,
		CallbackID:   callbackID,
		SourceTaskID: sourceTaskID,
	}
	if err := tx.Create(task).Error; err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	logger.Debug("Task created", logger.KeyTaskID, task.ID, logger.KeySource, source)
	return task.ID, nil
}

func (s *GORMStore) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	return getByField[models.Task](s.db, ctx, "id", taskID, models.ErrTaskNotFound)
}

func (s *GORMStore) GetTaskStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	task, err := s.GetTask(ctx, taskID)
	if err != nil {
		return "", err
	}
	return task.Status, nil
}

func (s *GORMStore) GetTaskInfo(ctx context.Context, taskID string) (*models.TaskInfo, error) {
	var info *models.TaskInfo
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		task, err := getByField[models.Task](tx, ctx, "id", taskID, models.ErrTaskNotFound)
		if err != nil {
			return err
		}
		replicas, err := s.taskReplicas(tx, taskID)
		if err != nil {
			return err
		}
		info = &models.TaskInfo{Task: *task, Replicas: replicas}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func (s *GORMStore) GetTaskSummary(ctx context.Context, taskID string) (*models.TaskSummary, error) {
	info, err := s.GetTaskInfo(ctx, taskID)
	if err != nil {
		return nil, err
	}

	summary := &models.TaskSummary{
		TaskID:     info.Task.ID,
		Status:     info.Task.Status,
		Source:     info.Task.Source,
		CallbackID: info.Task.CallbackID,
		Files:      make(map[string]models.FileSummary, len(info.Replicas)),
	}
	for _, r := range info.Replicas {
		summary.Files[r.LFN] = models.FileSummary{
			StorageElement: r.StorageElement,
			PFN:            r.PFN,
			Size:           r.Size,
			Status:         r.Status,
			Reason:         r.GetReason(),
		}
	}
	return summary, nil
}

// taskReplicas returns the replicas linked to a task.
func (s *GORMStore) taskReplicas(tx *gorm.DB, taskID string) ([]models.CacheReplica, error) {
	replicas := make([]models.CacheReplica, 0)
	err := tx.Model(&models.CacheReplica{}).
		Joins("JOIN task_replicas ON task_replicas.replica_id = cache_replicas.id").
		Where("task_replicas.task_id = ?", taskID).
		Order("cache_replicas.storage_element, cache_replicas.lfn").
		Find(&replicas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load replicas of task %s: %w", taskID, err)
	}
	return replicas, nil
}

func (s *GORMStore) TasksByStatus(ctx context.Context, status models.TaskStatus) ([]models.TaskRef, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: task status %q", models.ErrInvalidStatus, status)
	}

	var tasks []models.Task
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submit_time ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s tasks: %w", status, err)
	}

	refs := make([]models.TaskRef, 0, len(tasks))
	for i := range tasks {
		refs = append(refs, tasks[i].Ref())
	}
	return refs, nil
}

func (s *GORMStore) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if len(filter.IDs) > 0 {
		q = q.Where("id IN ?", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Source != "" {
		q = q.Where("source = ?", filter.Source)
	}
	q = applyWindow(q, "submit_time", filter.Window)

	tasks := make([]models.Task, 0)
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

func (s *GORMStore) UpdateTaskStatus(ctx context.Context, taskIDs []string, status models.TaskStatus) ([]string, error) {
	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.applyTaskTransition(tx, taskIDs, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		logger.Debug("Task status updated", logger.KeyStatus, status, logger.KeyCount, len(updated))
	}
	return updated, nil
}

func (s *GORMStore) SetTasksDone(ctx context.Context, taskIDs []string) ([]string, error) {
	return s.UpdateTaskStatus(ctx, taskIDs, models.TaskDone)
}

// applyTaskTransition moves the tasks whose current status permits it to
// status and returns exactly those ids. Entering a terminal status stamps
// the completion time.
func (s *GORMStore) applyTaskTransition(tx *gorm.DB, taskIDs []string, status models.TaskStatus) ([]string, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: task status %q", models.ErrInvalidStatus, status)
	}
	preds := lifecycle.Predecessors(status)
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: tasks cannot be moved to %s", models.ErrInvalidTransition, status)
	}

	taskIDs = uniqueStrings(taskIDs)
	if len(taskIDs) == 0 {
		return []string{}, nil
	}

	eligible := make([]string, 0, len(taskIDs))
	err := s.forUpdate(tx.Model(&models.Task{})).
		Where("id IN ? AND status IN ? AND status <> ?", taskIDs, preds, status).
		Order("id").
		Pluck("id", &eligible).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select tasks for %s: %w", status, err)
	}
	if len(eligible) == 0 {
		return eligible, nil
	}

	now := s.now()
	fields := map[string]any{"status": status, "last_update": now}
	if status.IsTerminal() {
		fields["complete_time"] = now
	}
	err = tx.Model(&models.Task{}).
		Where("id IN ? AND status IN ?", eligible, preds).
		Updates(fields).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update tasks to %s: %w", status, err)
	}
	return eligible, nil
}

// refreshTasks re-derives the status of each task from the current status of
// all of its replicas and walks the task there one permitted step at a time.
// The task rows are locked before the replica statuses are read so that a
// concurrent cascade over the same task observes this one's replica updates.
func (s *GORMStore) refreshTasks(tx *gorm.DB, taskIDs []string) error {
	taskIDs = uniqueStrings(taskIDs)
	if len(taskIDs) == 0 {
		return nil
	}

	var tasks []models.Task
	err := s.forUpdate(tx.Model(&models.Task{})).
		Where("id IN ?", taskIDs).
		Order("id").
		Find(&tasks).Error
	if err != nil {
		return fmt.Errorf("failed to lock tasks: %w", err)
	}

	var rows []struct {
		TaskID string
		Status models.ReplicaStatus
	}
	err = tx.Table("task_replicas").
		Select("task_replicas.task_id, cache_replicas.status").
		Joins("JOIN cache_replicas ON cache_replicas.id = task_replicas.replica_id").
		Where("task_replicas.task_id IN ?", taskIDs).
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to read replica statuses: %w", err)
	}

	statuses := make(map[string][]models.ReplicaStatus, len(taskIDs))
	for _, r := range rows {
		statuses[r.TaskID] = append(statuses[r.TaskID], r.Status)
	}

	for _, task := range tasks {
		target := lifecycle.DeriveTaskStatus(statuses[task.ID])
		path := lifecycle.Path(task.Status, target)
		for _, step := range path {
			updated, err := s.applyTaskTransition(tx, []string{task.ID}, step)
			if err != nil {
				return err
			}
			if !slices.Contains(updated, task.ID) {
				break
			}
		}
		if len(path) > 0 {
			logger.Debug("Task status derived from replicas",
				logger.KeyTaskID, task.ID,
				"from", task.Status,
				"to", target)
		}
	}
	return nil
}
