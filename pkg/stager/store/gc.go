package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/models"
)

func (s *GORMStore) RemoveTask(ctx context.Context, taskID string) (*GCResult, error) {
	result := &GCResult{TaskID: taskID}

	err := s.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := getByField[models.Task](tx, ctx, "id", taskID, models.ErrTaskNotFound); err != nil {
			return err
		}

		var replicaIDs []string
		err := tx.Model(&models.TaskReplica{}).
			Where("task_id = ?", taskID).
			Order("replica_id").
			Pluck("replica_id", &replicaIDs).Error
		if err != nil {
			return fmt.Errorf("failed to read links of task %s: %w", taskID, err)
		}

		if len(replicaIDs) > 0 {
			if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskReplica{}).Error; err != nil {
				return fmt.Errorf("failed to unlink task %s: %w", taskID, err)
			}
			err := tx.Model(&models.CacheReplica{}).
				Where("id IN ? AND links > 0", replicaIDs).
				UpdateColumn("links", gorm.Expr("links - ?", 1)).Error
			if err != nil {
				return fmt.Errorf("failed to release replicas of task %s: %w", taskID, err)
			}
		}
		result.Unlinked = replicaIDs

		if err := tx.Where("id = ?", taskID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("failed to delete task %s: %w", taskID, err)
		}

		removed, n, err := s.removeUnlinkedReplicas(tx)
		if err != nil {
			return err
		}
		result.RemovedReplicas = removed
		result.RemovedStageRequests = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Unlinked == nil {
		result.Unlinked = []string{}
	}
	logger.Info("Task removed",
		logger.KeyTaskID, taskID,
		"unlinked", len(result.Unlinked),
		"removed_replicas", len(result.RemovedReplicas),
		"removed_stage_requests", result.RemovedStageRequests)
	return result, nil
}

// removeUnlinkedReplicas deletes every replica no task references, together
// with its stage request.
func (s *GORMStore) removeUnlinkedReplicas(tx *gorm.DB) ([]string, int64, error) {
	orphans := make([]string, 0)
	err := s.forUpdate(tx.Model(&models.CacheReplica{})).
		Where("links <= 0").
		Order("id").
		Pluck("id", &orphans).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find unreferenced replicas: %w", err)
	}
	if len(orphans) == 0 {
		return orphans, 0, nil
	}

	res := tx.Where("replica_id IN ?", orphans).Delete(&models.StageRequest{})
	if res.Error != nil {
		return nil, 0, fmt.Errorf("failed to delete stage requests: %w", res.Error)
	}
	removedRequests := res.RowsAffected

	if err := tx.Where("id IN ?", orphans).Delete(&models.CacheReplica{}).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to delete unreferenced replicas: %w", err)
	}

	for _, id := range orphans {
		logger.Debug("Replica garbage collected", logger.KeyReplicaID, id)
	}
	return orphans, removedRequests, nil
}
