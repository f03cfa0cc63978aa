package agents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/stager/internal/bytesize"
	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/models"
)

// SubmitAgent issues recalls for Waiting replicas of healthy tasks.
//
// Per storage element, replicas are admitted in order while the bytes already
// pinned or in flight plus the candidate stay within the element's quota. A
// replica larger than the whole quota is admitted only when nothing else is
// pinned there, so it cannot starve.
type SubmitAgent struct {
	coord       Coordinator
	backends    *backend.Registry
	config      SubmitConfig
	pinLifetime time.Duration
	quotas      map[string]bytesize.ByteSize
	metrics     Metrics
}

// NewSubmitAgent creates a SubmitAgent. quotas and metrics may be nil.
func NewSubmitAgent(coord Coordinator, backends *backend.Registry, config SubmitConfig, pinLifetime time.Duration, quotas map[string]bytesize.ByteSize, metrics Metrics) *SubmitAgent {
	return &SubmitAgent{
		coord:       coord,
		backends:    backends,
		config:      config,
		pinLifetime: pinLifetime,
		quotas:      quotas,
		metrics:     metrics,
	}
}

func (a *SubmitAgent) Name() string { return "submit" }

func (a *SubmitAgent) RunOnce(ctx context.Context) (int, error) {
	waiting, err := a.coord.ListWaitingReplicas(ctx)
	if err != nil {
		return 0, fmt.Errorf("list waiting replicas: %w", err)
	}
	candidates := a.candidates(waiting)
	if len(candidates) == 0 {
		return 0, nil
	}

	pins, err := a.coord.SubmittedPins(ctx)
	if err != nil {
		return 0, fmt.Errorf("read pin usage: %w", err)
	}
	used := make(map[string]int64, len(pins))
	for _, p := range pins {
		used[p.StorageElement] = p.TotalSize
	}

	var (
		requests = make(map[string][]string)
		failures = make(map[string]string)
		errs     []error
	)
	groups, order := groupBySE(candidates)
	for _, se := range order {
		b, err := a.backends.Get(se)
		if err != nil {
			maps.Copy(failures, failAll(groups[se], err.Error()))
			continue
		}

		admitted := a.admit(se, groups[se], used[se])
		if skipped := len(groups[se]) - len(admitted); skipped > 0 {
			logger.DebugCtx(ctx, "Replicas held back by pin quota",
				logger.KeyStorageElement, se,
				logger.KeyCount, skipped)
		}

		for _, chunk := range a.chunks(admitted) {
			requestID := uuid.NewString()
			if err := a.recall(ctx, b, se, requestID, chunk); err != nil {
				logger.WarnCtx(ctx, "Recall submission failed",
					logger.KeyStorageElement, se,
					logger.KeyRequestID, requestID,
					logger.KeyError, err)
				errs = append(errs, err)
				continue
			}
			ids := make([]string, 0, len(chunk))
			for _, r := range chunk {
				ids = append(ids, r.ID)
				used[se] += r.Size
			}
			requests[requestID] = ids
		}
		if a.metrics != nil {
			a.metrics.SetPinnedBytes(se, used[se])
		}
	}

	processed := 0
	if len(requests) > 0 {
		updated, err := a.coord.MarkStageSubmitted(ctx, requests, a.pinLifetime)
		if err != nil {
			return 0, err
		}
		processed += len(updated)
	}
	if len(failures) > 0 {
		updated, err := a.coord.MarkReplicasFailed(ctx, failures)
		if err != nil {
			return processed, err
		}
		processed += len(updated)
	}
	return processed, errors.Join(errs...)
}

// candidates returns each waiting replica once, in selection order, capped
// at the batch size.
func (a *SubmitAgent) candidates(waiting []models.WaitingReplica) []models.CacheReplica {
	seen := make(map[string]bool, len(waiting))
	out := make([]models.CacheReplica, 0, len(waiting))
	for _, w := range waiting {
		if seen[w.Replica.ID] {
			continue
		}
		seen[w.Replica.ID] = true
		out = append(out, w.Replica)
		if a.config.BatchSize > 0 && len(out) == a.config.BatchSize {
			break
		}
	}
	return out
}

// admit selects the replicas of se that fit its quota given used bytes.
func (a *SubmitAgent) admit(se string, replicas []models.CacheReplica, used int64) []models.CacheReplica {
	quota := a.quotas[se].Int64()
	if quota == 0 {
		return replicas
	}

	admitted := make([]models.CacheReplica, 0, len(replicas))
	for _, r := range replicas {
		if used+r.Size > quota && used > 0 {
			continue
		}
		admitted = append(admitted, r)
		used += r.Size
	}
	return admitted
}

// chunks splits replicas into requests of at most MaxFilesPerRequest.
func (a *SubmitAgent) chunks(replicas []models.CacheReplica) [][]models.CacheReplica {
	if len(replicas) == 0 {
		return nil
	}
	size := a.config.MaxFilesPerRequest
	if size <= 0 {
		return [][]models.CacheReplica{replicas}
	}
	var out [][]models.CacheReplica
	for start := 0; start < len(replicas); start += size {
		end := min(start+size, len(replicas))
		out = append(out, replicas[start:end])
	}
	return out
}

func (a *SubmitAgent) recall(ctx context.Context, b backend.Backend, se, requestID string, replicas []models.CacheReplica) error {
	ctx, span := telemetry.StartBackendSpan(ctx, "submit_recall", b.Type(),
		telemetry.StorageElement(se),
		telemetry.RequestID(requestID),
		telemetry.Requested(len(replicas)))
	defer span.End()

	if err := b.SubmitRecall(ctx, requestID, replicas, a.pinLifetime); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}
