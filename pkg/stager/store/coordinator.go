package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/models"
)

// ============================================
// LIFECYCLE COORDINATOR
// ============================================

// submitAttempts bounds how often a submission is retried after losing a
// race to a concurrent submission of the same file.
const submitAttempts = 3

func (s *GORMStore) SubmitTask(ctx context.Context, req models.TaskRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var (
		taskID string
		err    error
	)
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		err = s.transaction(ctx, func(tx *gorm.DB) error {
			var txErr error
			taskID, txErr = s.setRequest(tx, &req)
			return txErr
		})
		if err == nil || !isLostSubmitRace(err) {
			break
		}
		logger.Debug("Submission conflicted with a concurrent one, retrying",
			logger.KeySource, req.Source,
			"attempt", attempt,
			logger.KeyError, err)
	}
	if err != nil {
		return "", err
	}

	logger.Info("Task submitted",
		logger.KeyTaskID, taskID,
		logger.KeySource, req.Source,
		logger.KeyCount, req.FileCount())
	s.auditTasks(ctx, "Task state after submission", []string{taskID})
	return taskID, nil
}

// isLostSubmitRace reports whether a submission failed only because a
// concurrent transaction changed the replicas it resolved: another submission
// inserted the same key, or a task removal garbage-collected a replica
// between lookup and link.
func isLostSubmitRace(err error) bool {
	return errors.Is(err, models.ErrDuplicateReplica) ||
		errors.Is(err, models.ErrReplicaNotFound) ||
		isTransientError(err)
}

// setRequest creates a task for req, reusing or creating one replica per
// requested file, and sets the initial task status from what was reused.
func (s *GORMStore) setRequest(tx *gorm.DB, req *models.TaskRequest) (string, error) {
	taskID, err := s.createTask(tx, req.Source, req.CallbackID, req.SourceTaskID)
	if err != nil {
		return "", err
	}

	var (
		replicaIDs []string
		created    int
		reused     = make(map[models.ReplicaStatus]struct{})
	)
	for _, se := range req.StorageElements() {
		lfns := uniqueStrings(req.Files[se])
		existing, err := s.resolveReplicas(tx, se, lfns)
		if err != nil {
			return "", err
		}
		for _, lfn := range lfns {
			if ref, ok := existing[lfn]; ok {
				replicaIDs = append(replicaIDs, ref.ID)
				reused[ref.Status] = struct{}{}
				continue
			}
			id, err := s.createReplica(tx, lfn, se, models.KindStage)
			if err != nil {
				return "", err
			}
			replicaIDs = append(replicaIDs, id)
			created++
		}
	}

	if err := s.linkReplicas(tx, taskID, replicaIDs); err != nil {
		return "", err
	}

	_, failed := reused[models.ReplicaFailed]
	_, cancelled := reused[models.ReplicaCancelled]
	_, staged := reused[models.ReplicaStaged]

	switch {
	case failed || cancelled:
		if _, err := s.applyTaskTransition(tx, []string{taskID}, models.TaskFailed); err != nil {
			return "", err
		}
	case created == 0 && staged && len(reused) == 1:
		if _, err := s.applyTaskTransition(tx, []string{taskID}, models.TaskStaged); err != nil {
			return "", err
		}
	default:
		if err := s.refreshTasks(tx, []string{taskID}); err != nil {
			return "", err
		}
	}
	return taskID, nil
}

// cascade re-derives the status of every task linked to replicaIDs.
func (s *GORMStore) cascade(tx *gorm.DB, replicaIDs []string) error {
	if len(replicaIDs) == 0 {
		return nil
	}

	var taskIDs []string
	err := tx.Model(&models.TaskReplica{}).
		Distinct("task_id").
		Where("replica_id IN ?", replicaIDs).
		Order("task_id").
		Pluck("task_id", &taskIDs).Error
	if err != nil {
		return fmt.Errorf("failed to find tasks of updated replicas: %w", err)
	}
	return s.refreshTasks(tx, taskIDs)
}

func (s *GORMStore) MarkReplicasResolved(ctx context.Context, resolutions []models.ReplicaResolution) ([]string, error) {
	for _, r := range resolutions {
		if r.ReplicaID == "" {
			return nil, fmt.Errorf("%w: replica id is required", models.ErrInvalidArgument)
		}
		if r.Size < 0 {
			return nil, fmt.Errorf("%w: negative size for replica %s", models.ErrInvalidArgument, r.ReplicaID)
		}
	}

	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var promoted []string
		for _, r := range resolutions {
			ok, prev, err := s.setReplicaFields(tx, r)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			updated = append(updated, r.ReplicaID)
			if prev == models.ReplicaNew {
				promoted = append(promoted, r.ReplicaID)
			}
		}
		return s.cascade(tx, uniqueStrings(promoted))
	})
	if err != nil {
		return nil, err
	}

	updated = uniqueStrings(updated)
	s.auditReplicas(ctx, "Replicas resolved", updated)
	return updated, nil
}

func (s *GORMStore) MarkStageSubmitted(ctx context.Context, requests map[string][]string, pinLifetime time.Duration) ([]string, error) {
	if pinLifetime < 0 {
		return nil, fmt.Errorf("%w: negative pin lifetime", models.ErrInvalidArgument)
	}

	requestOf := make(map[string]string)
	var ids []string
	for reqID, replicaIDs := range requests {
		if reqID == "" {
			return nil, fmt.Errorf("%w: request id is required", models.ErrInvalidArgument)
		}
		for _, id := range replicaIDs {
			if prev, ok := requestOf[id]; ok && prev != reqID {
				return nil, fmt.Errorf("%w: replica %s submitted under %s and %s",
					models.ErrInvalidArgument, id, prev, reqID)
			}
			requestOf[id] = reqID
			ids = append(ids, id)
		}
	}

	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.applyReplicaTransition(tx, ids, models.ReplicaStageSubmitted)
		if err != nil {
			return err
		}
		if err := s.insertStageRequests(tx, requestOf, updated, pinLifetime); err != nil {
			return err
		}
		return s.cascade(tx, updated)
	})
	if err != nil {
		return nil, err
	}

	if skipped := len(uniqueStrings(ids)) - len(updated); skipped > 0 {
		logger.Debug("Replicas not eligible for submission", logger.KeyCount, skipped)
	}
	s.auditReplicas(ctx, "Stage requests submitted", updated, "requests", len(requests))
	return updated, nil
}

func (s *GORMStore) MarkStageComplete(ctx context.Context, replicaIDs []string, retention time.Duration) ([]string, error) {
	if retention < 0 {
		return nil, fmt.Errorf("%w: negative pin retention", models.ErrInvalidArgument)
	}

	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.applyReplicaTransition(tx, replicaIDs, models.ReplicaStaged)
		if err != nil {
			return err
		}
		n, err := s.completeStageRequests(tx, updated, retention)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Debug("Stage requests completed", logger.KeyCount, n, "retention", retention)
		}
		return s.cascade(tx, updated)
	})
	if err != nil {
		return nil, err
	}

	s.auditReplicas(ctx, "Replicas staged", updated)
	return updated, nil
}

func (s *GORMStore) MarkReplicasFailed(ctx context.Context, reasons map[string]string) ([]string, error) {
	ids := make([]string, 0, len(reasons))
	for id := range reasons {
		ids = append(ids, id)
	}

	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.applyReplicaTransition(tx, ids, models.ReplicaFailed)
		if err != nil {
			return err
		}
		if err := s.setReplicaReasons(tx, reasons, updated); err != nil {
			return err
		}
		if err := s.failStageRequests(tx, updated); err != nil {
			return err
		}
		return s.cascade(tx, updated)
	})
	if err != nil {
		return nil, err
	}

	if len(updated) > 0 {
		logger.Warn("Replicas failed", logger.KeyCount, len(updated))
	}
	s.auditReplicas(ctx, "Replicas failed", updated)
	return updated, nil
}
