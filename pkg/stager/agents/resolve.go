package agents

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// ResolveAgent fills in physical file names and sizes of New replicas.
type ResolveAgent struct {
	coord     Coordinator
	backends  *backend.Registry
	batchSize int
}

// NewResolveAgent creates a ResolveAgent.
func NewResolveAgent(coord Coordinator, backends *backend.Registry, config AgentConfig) *ResolveAgent {
	return &ResolveAgent{coord: coord, backends: backends, batchSize: config.BatchSize}
}

func (a *ResolveAgent) Name() string { return "resolve" }

func (a *ResolveAgent) RunOnce(ctx context.Context) (int, error) {
	listing, err := a.coord.ListReplicas(ctx, store.ReplicaFilter{
		Statuses: []models.ReplicaStatus{models.ReplicaNew},
		Window:   store.Window{Limit: a.batchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("list new replicas: %w", err)
	}
	if len(listing.Replicas) == 0 {
		return 0, nil
	}

	var (
		resolutions []models.ReplicaResolution
		failures    = make(map[string]string)
		errs        []error
	)
	groups, order := groupBySE(listing.Replicas)
	for _, se := range order {
		replicas := groups[se]

		b, err := a.backends.Get(se)
		if err != nil {
			maps.Copy(failures, failAll(replicas, err.Error()))
			continue
		}

		res, failed, err := a.resolve(ctx, b, se, replicas)
		if err != nil {
			// Catalog unavailable: leave the replicas New for the next cycle.
			logger.WarnCtx(ctx, "Catalog lookup failed",
				logger.KeyStorageElement, se,
				logger.KeyCount, len(replicas),
				logger.KeyError, err)
			errs = append(errs, err)
			continue
		}
		resolutions = append(resolutions, res...)
		maps.Copy(failures, failed)
	}

	processed := 0
	if len(resolutions) > 0 {
		updated, err := a.coord.MarkReplicasResolved(ctx, resolutions)
		if err != nil {
			return processed, err
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

func (a *ResolveAgent) resolve(ctx context.Context, b backend.Backend, se string, replicas []models.CacheReplica) ([]models.ReplicaResolution, map[string]string, error) {
	ctx, span := telemetry.StartBackendSpan(ctx, "resolve", b.Type(),
		telemetry.StorageElement(se), telemetry.Requested(len(replicas)))
	defer span.End()

	lfns := make([]string, 0, len(replicas))
	for _, r := range replicas {
		lfns = append(lfns, r.LFN)
	}

	found, missing, err := b.Resolve(ctx, se, lfns)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, nil, err
	}

	var resolutions []models.ReplicaResolution
	failures := make(map[string]string)
	for _, r := range replicas {
		if meta, ok := found[r.LFN]; ok {
			resolutions = append(resolutions, models.ReplicaResolution{
				ReplicaID: r.ID,
				PFN:       meta.PFN,
				Size:      meta.Size,
				Checksum:  meta.Checksum,
				GUID:      meta.GUID,
			})
			continue
		}
		reason := "file not found in catalog"
		if e, ok := missing[r.LFN]; ok && e != nil {
			reason = e.Error()
		}
		logger.DebugCtx(ctx, "File not resolvable",
			logger.ReplicaID(r.ID),
			logger.LFN(r.LFN),
			logger.KeyReason, reason)
		failures[r.ID] = reason
	}
	return resolutions, failures, nil
}
