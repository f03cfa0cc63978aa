package store

import (
	"context"
	"fmt"

	"github.com/marmos91/stager/pkg/stager/models"
)

func (s *GORMStore) WaitingReplicas(ctx context.Context) ([]models.WaitingReplica, error) {
	db := s.db.WithContext(ctx)

	var groups []struct {
		TaskID string
		Status models.ReplicaStatus
	}
	err := db.Table("task_replicas").
		Select("task_replicas.task_id, cache_replicas.status").
		Joins("JOIN cache_replicas ON cache_replicas.id = task_replicas.replica_id").
		Group("task_replicas.task_id, cache_replicas.status").
		Scan(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group task replicas: %w", err)
	}

	bad := make(map[string]bool)
	waiting := make(map[string]bool)
	for _, g := range groups {
		switch g.Status {
		case models.ReplicaWaiting:
			waiting[g.TaskID] = true
		case models.ReplicaNew, models.ReplicaFailed, models.ReplicaCancelled:
			// One unresolved or failed file holds back the whole task.
			bad[g.TaskID] = true
		}
	}

	good := make([]string, 0, len(waiting))
	for id := range waiting {
		if !bad[id] {
			good = append(good, id)
		}
	}
	good = uniqueStrings(good)
	if len(good) == 0 {
		return []models.WaitingReplica{}, nil
	}

	var pairs []struct {
		TaskID    string
		ReplicaID string
	}
	err = db.Table("task_replicas").
		Select("task_replicas.task_id, task_replicas.replica_id").
		Joins("JOIN cache_replicas ON cache_replicas.id = task_replicas.replica_id").
		Where("task_replicas.task_id IN ? AND cache_replicas.status = ?", good, models.ReplicaWaiting).
		Order("task_replicas.task_id, task_replicas.replica_id").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select waiting replicas: %w", err)
	}

	ids := make([]string, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.ReplicaID)
	}
	replicas, err := listWhere[models.CacheReplica](db, "id", uniqueStrings(ids), "id")
	if err != nil {
		return nil, fmt.Errorf("failed to load waiting replicas: %w", err)
	}
	byID := make(map[string]models.CacheReplica, len(replicas))
	for _, r := range replicas {
		byID[r.ID] = r
	}

	out := make([]models.WaitingReplica, 0, len(pairs))
	for _, p := range pairs {
		r, ok := byID[p.ReplicaID]
		// A concurrent transition may have moved it between the two reads.
		if !ok || r.Status != models.ReplicaWaiting {
			continue
		}
		out = append(out, models.WaitingReplica{TaskID: p.TaskID, Replica: r})
	}
	return out, nil
}
