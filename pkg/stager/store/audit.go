package store

import (
	"context"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/models"
)

// auditReplicas logs the committed state of replicaIDs at debug level. It
// runs after the mutating transaction so a failed read cannot undo it; read
// errors are only reported.
func (s *GORMStore) auditReplicas(ctx context.Context, msg string, replicaIDs []string, args ...any) {
	if len(replicaIDs) == 0 || !logger.IsDebugEnabled() {
		return
	}

	replicas, err := listWhere[models.CacheReplica](s.db.WithContext(ctx), "id", replicaIDs, "id")
	if err != nil {
		logger.WarnCtx(ctx, "Audit read failed", logger.KeyCount, len(replicaIDs), logger.KeyError, err)
		return
	}

	for _, r := range replicas {
		fields := append([]any{
			logger.KeyReplicaID, r.ID,
			logger.KeyStorageElement, r.StorageElement,
			logger.KeyLFN, r.LFN,
			logger.KeyStatus, r.Status,
			"links", r.Links,
		}, args...)
		logger.DebugCtx(ctx, msg, fields...)
	}
}

// auditTasks logs the committed state of taskIDs at debug level.
func (s *GORMStore) auditTasks(ctx context.Context, msg string, taskIDs []string) {
	if len(taskIDs) == 0 || !logger.IsDebugEnabled() {
		return
	}

	tasks, err := listWhere[models.Task](s.db.WithContext(ctx), "id", taskIDs, "id")
	if err != nil {
		logger.WarnCtx(ctx, "Audit read failed", logger.KeyCount, len(taskIDs), logger.KeyError, err)
		return
	}

	for _, t := range tasks {
		logger.DebugCtx(ctx, msg,
			logger.KeyTaskID, t.ID,
			logger.KeySource, t.Source,
			logger.KeyStatus, t.Status)
	}
}
