package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/models"
)

// ============================================
// STAGE REQUEST TRACKER
// ============================================

// unpinnedStatuses are replica statuses that never hold a pin.
var unpinnedStatuses = []models.ReplicaStatus{
	models.ReplicaNew,
	models.ReplicaWaiting,
	models.ReplicaFailed,
}

func (s *GORMStore) SubmittedPins(ctx context.Context) ([]models.PinUsage, error) {
	usage := make([]models.PinUsage, 0)
	err := s.db.WithContext(ctx).
		Table("cache_replicas").
		Select("cache_replicas.storage_element AS storage_element, "+
			"COUNT(*) AS replicas, CAST(COALESCE(SUM(cache_replicas.size), 0) AS BIGINT) AS total_size").
		Joins("JOIN stage_requests ON stage_requests.replica_id = cache_replicas.id").
		Where("cache_replicas.status NOT IN ?", unpinnedStatuses).
		Where("(stage_requests.pin_expiry_time IS NULL OR stage_requests.pin_expiry_time > ?)", s.now()).
		Group("cache_replicas.storage_element").
		Order("cache_replicas.storage_element").
		Scan(&usage).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate submitted pins: %w", err)
	}
	return usage, nil
}

func (s *GORMStore) ListStageRequests(ctx context.Context, filter StageRequestFilter) ([]models.StageRequest, error) {
	q := s.db.WithContext(ctx).Model(&models.StageRequest{})
	if len(filter.ReplicaIDs) > 0 {
		q = q.Where("stage_requests.replica_id IN ?", filter.ReplicaIDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("stage_requests.stage_status IN ?", filter.Statuses)
	}
	if filter.RequestID != "" {
		q = q.Where("stage_requests.request_id = ?", filter.RequestID)
	}
	if filter.TaskID != "" {
		q = q.Joins("JOIN task_replicas ON task_replicas.replica_id = stage_requests.replica_id").
			Where("task_replicas.task_id = ?", filter.TaskID)
	}
	q = applyWindow(q, "stage_requests.submit_time", filter.Window)

	requests := make([]models.StageRequest, 0)
	if err := q.Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list stage requests: %w", err)
	}
	return requests, nil
}

// insertStageRequests records one stage request per replica under the
// external request id it was submitted with.
func (s *GORMStore) insertStageRequests(tx *gorm.DB, requestOf map[string]string, replicaIDs []string, pinLifetime time.Duration) error {
	if len(replicaIDs) == 0 {
		return nil
	}

	now := s.now()
	rows := make([]models.StageRequest, 0, len(replicaIDs))
	for _, id := range replicaIDs {
		rows = append(rows, models.StageRequest{
			ReplicaID:   id,
			StageStatus: models.StageSubmitted,
			RequestID:   requestOf[id],
			SubmitTime:  now,
			PinLength:   int64(pinLifetime / time.Second),
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to insert stage requests: %w", err)
	}

	logger.Debug("Stage requests inserted", logger.KeyCount, len(rows), "pin_lifetime", pinLifetime)
	return nil
}

// completeStageRequests marks the submitted requests of replicaIDs Staged and
// pins them until now+retention.
func (s *GORMStore) completeStageRequests(tx *gorm.DB, replicaIDs []string, retention time.Duration) (int64, error) {
	if len(replicaIDs) == 0 {
		return 0, nil
	}

	now := s.now()
	res := tx.Model(&models.StageRequest{}).
		Where("replica_id IN ? AND stage_status = ?", replicaIDs, models.StageSubmitted).
		Updates(map[string]any{
			"stage_status":    models.StageStaged,
			"complete_time":   now,
			"pin_expiry_time": now.Add(retention),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to complete stage requests: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// failStageRequests marks the outstanding requests of replicaIDs Failed.
func (s *GORMStore) failStageRequests(tx *gorm.DB, replicaIDs []string) error {
	if len(replicaIDs) == 0 {
		return nil
	}

	err := tx.Model(&models.StageRequest{}).
		Where("replica_id IN ? AND stage_status = ?", replicaIDs, models.StageSubmitted).
		Updates(map[string]any{
			"stage_status":  models.StageFailed,
			"complete_time": s.now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to fail stage requests: %w", err)
	}
	return nil
}
