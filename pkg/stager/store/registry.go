package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/lifecycle"
	"github.com/marmos91/stager/pkg/stager/models"
)

// ============================================
// REPLICA REGISTRY
// ============================================

func (s *GORMStore) ResolveReplicas(ctx context.Context, storageElement string, lfns []string) (map[string]models.ReplicaRef, error) {
	return s.resolveReplicas(s.db.WithContext(ctx), storageElement, lfns)
}

// resolveReplicas looks up the replicas of storageElement for lfns.
func (s *GORMStore) resolveReplicas(tx *gorm.DB, storageElement string, lfns []string) (map[string]models.ReplicaRef, error) {
	found := make(map[string]models.ReplicaRef, len(lfns))
	lfns = uniqueStrings(lfns)
	if len(lfns) == 0 {
		return found, nil
	}

	var replicas []models.CacheReplica
	err := tx.Select("id", "lfn", "status").
		Where("storage_element = ? AND lfn IN ?", storageElement, lfns).
		Find(&replicas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve replicas at %s: %w", storageElement, err)
	}

	for _, r := range replicas {
		found[r.LFN] = models.ReplicaRef{ID: r.ID, Status: r.Status}
	}
	return found, nil
}

// createReplica inserts a New replica. A concurrent insert of the same key
// surfaces as ErrDuplicateReplica.
func (s *GORMStore) createReplica(tx *gorm.DB, lfn, storageElement string, kind models.ReplicaKind) (string, error) {
	now := s.now()
	replica := &models.CacheReplica{
		ID:             uuid.New().String(),
		Kind:           kind,
		Status:         models.ReplicaNew,
		StorageElement: storageElement,
		LFN:            lfn,
		SubmitTime:     now,
		LastUpdate:     now,
	}

	if err := tx.Create(replica).Error; err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("%w: %s at %s", models.ErrDuplicateReplica, lfn, storageElement)
		}
		return "", fmt.Errorf("failed to create replica %s at %s: %w", lfn, storageElement, err)
	}

	logger.Debug("Replica created",
		logger.KeyReplicaID, replica.ID,
		logger.KeyStorageElement, storageElement,
		logger.KeyLFN, lfn)
	return replica.ID, nil
}

// linkReplicas associates replicaIDs with a task and takes one reference on
// each of them.
func (s *GORMStore) linkReplicas(tx *gorm.DB, taskID string, replicaIDs []string) error {
	replicaIDs = uniqueStrings(replicaIDs)
	if len(replicaIDs) == 0 {
		return nil
	}

	links := make([]models.TaskReplica, 0, len(replicaIDs))
	for _, id := range replicaIDs {
		links = append(links, models.TaskReplica{TaskID: taskID, ReplicaID: id})
	}
	if err := tx.Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link replicas to task %s: %w", taskID, err)
	}

	res := tx.Model(&models.CacheReplica{}).
		Where("id IN ?", replicaIDs).
		UpdateColumn("links", gorm.Expr("links + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to update replica links: %w", res.Error)
	}
	if res.RowsAffected != int64(len(replicaIDs)) {
		return fmt.Errorf("%w: linked %d of %d replicas", models.ErrReplicaNotFound, res.RowsAffected, len(replicaIDs))
	}

	logger.Debug("Replicas linked", logger.KeyTaskID, taskID, logger.KeyCount, len(replicaIDs))
	return nil
}

func (s *GORMStore) GetReplica(ctx context.Context, id string) (*models.CacheReplica, error) {
	return getByField[models.CacheReplica](s.db, ctx, "id", id, models.ErrReplicaNotFound)
}

func (s *GORMStore) ListReplicas(ctx context.Context, filter ReplicaFilter) (*ReplicaListing, error) {
	db := s.db.WithContext(ctx)

	q := db.Model(&models.CacheReplica{})
	if len(filter.IDs) > 0 {
		q = q.Where("cache_replicas.id IN ?", filter.IDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("cache_replicas.status IN ?", filter.Statuses)
	}
	if filter.StorageElement != "" {
		q = q.Where("cache_replicas.storage_element = ?", filter.StorageElement)
	}
	if filter.TaskID != "" {
		q = q.Joins("JOIN task_replicas ON task_replicas.replica_id = cache_replicas.id").
			Where("task_replicas.task_id = ?", filter.TaskID)
	}
	q = applyWindow(q, "cache_replicas.submit_time", filter.Window)

	replicas := make([]models.CacheReplica, 0)
	if err := q.Find(&replicas).Error; err != nil {
		return nil, fmt.Errorf("failed to list replicas: %w", err)
	}

	ids := make([]string, 0, len(replicas))
	for _, r := range replicas {
		ids = append(ids, r.ID)
	}
	links, err := listWhere[models.TaskReplica](db, "replica_id", ids, "task_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list replica links: %w", err)
	}

	taskIDs := make(map[string][]string, len(replicas))
	for _, l := range links {
		taskIDs[l.ReplicaID] = append(taskIDs[l.ReplicaID], l.TaskID)
	}

	return &ReplicaListing{Replicas: replicas, TaskIDs: taskIDs}, nil
}

func (s *GORMStore) UpdateReplicaStatus(ctx context.Context, replicaIDs []string, status models.ReplicaStatus) ([]string, error) {
	var updated []string
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		var err error
		updated, err = s.transitionReplicas(tx, replicaIDs, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.auditReplicas(ctx, "Replica status updated", updated, "status", status)
	return updated, nil
}

// transitionReplicas applies a replica transition and cascades it to the
// tasks depending on the replicas that changed.
func (s *GORMStore) transitionReplicas(tx *gorm.DB, replicaIDs []string, status models.ReplicaStatus) ([]string, error) {
	updated, err := s.applyReplicaTransition(tx, replicaIDs, status)
	if err != nil {
		return nil, err
	}
	if err := s.cascade(tx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// applyReplicaTransition moves the replicas whose current status permits it
// to status and returns exactly those ids.
func (s *GORMStore) applyReplicaTransition(tx *gorm.DB, replicaIDs []string, status models.ReplicaStatus) ([]string, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: replica status %q", models.ErrInvalidStatus, status)
	}
	preds := lifecycle.Predecessors(status)
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: replicas cannot be moved to %s", models.ErrInvalidTransition, status)
	}

	replicaIDs = uniqueStrings(replicaIDs)
	if len(replicaIDs) == 0 {
		return []string{}, nil
	}

	eligible := make([]string, 0, len(replicaIDs))
	err := s.forUpdate(tx.Model(&models.CacheReplica{})).
		Where("id IN ? AND status IN ? AND status <> ?", replicaIDs, preds, status).
		Order("id").
		Pluck("id", &eligible).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select replicas for %s: %w", status, err)
	}
	if len(eligible) == 0 {
		return eligible, nil
	}

	err = tx.Model(&models.CacheReplica{}).
		Where("id IN ? AND status IN ?", eligible, preds).
		Updates(map[string]any{"status": status, "last_update": s.now()}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update replicas to %s: %w", status, err)
	}
	return eligible, nil
}

// setFieldsStatuses are the statuses late-bound catalog data may be written in.
var setFieldsStatuses = append([]models.ReplicaStatus{models.ReplicaWaiting},
	lifecycle.Predecessors(models.ReplicaWaiting)...)

// setReplicaFields records catalog information for one replica and moves it
// to Waiting. It reports whether the replica was updated and its previous
// status.
func (s *GORMStore) setReplicaFields(tx *gorm.DB, res models.ReplicaResolution) (bool, models.ReplicaStatus, error) {
	var current models.CacheReplica
	err := s.forUpdate(tx.Select("id", "status")).
		Where("id = ? AND status IN ?", res.ReplicaID, setFieldsStatuses).
		Limit(1).Find(&current).Error
	if err != nil {
		return false, "", fmt.Errorf("failed to read replica %s: %w", res.ReplicaID, err)
	}
	if current.ID == "" {
		return false, "", nil
	}

	err = tx.Model(&models.CacheReplica{}).
		Where("id = ? AND status IN ?", res.ReplicaID, setFieldsStatuses).
		Updates(map[string]any{
			"pfn":         res.PFN,
			"size":        res.Size,
			"checksum":    res.Checksum,
			"guid":        res.GUID,
			"status":      models.ReplicaWaiting,
			"last_update": s.now(),
		}).Error
	if err != nil {
		return false, "", fmt.Errorf("failed to set fields of replica %s: %w", res.ReplicaID, err)
	}
	return true, current.Status, nil
}

// setReplicaReasons stores a failure reason per replica.
func (s *GORMStore) setReplicaReasons(tx *gorm.DB, reasons map[string]string, ids []string) error {
	for _, id := range ids {
		reason := reasons[id]
		err := tx.Model(&models.CacheReplica{}).
			Where("id = ?", id).
			Update("reason", reason).Error
		if err != nil {
			return fmt.Errorf("failed to set reason of replica %s: %w", id, err)
		}
	}
	return nil
}
