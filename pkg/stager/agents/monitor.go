package agents

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/internal/telemetry"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/store"
)

// MonitorAgent polls outstanding recalls and records their outcome.
type MonitorAgent struct {
	coord    Coordinator
	backends *backend.Registry
	config   MonitorConfig

	// now is replaceable in tests.
	now func() time.Time
}

// NewMonitorAgent creates a MonitorAgent.
func NewMonitorAgent(coord Coordinator, backends *backend.Registry, config MonitorConfig) *MonitorAgent {
	return &MonitorAgent{coord: coord, backends: backends, config: config, now: time.Now}
}

func (a *MonitorAgent) Name() string { return "monitor" }

func (a *MonitorAgent) RunOnce(ctx context.Context) (int, error) {
	listing, err := a.coord.ListReplicas(ctx, store.ReplicaFilter{
		Statuses: []models.ReplicaStatus{models.ReplicaStageSubmitted},
		Window:   store.Window{Limit: a.config.BatchSize},
	})
	if err != nil {
		return 0, fmt.Errorf("list submitted replicas: %w", err)
	}
	if len(listing.Replicas) == 0 {
		return 0, nil
	}

	var (
		completed []string
		failures  = make(map[string]string)
		errs      []error
	)
	groups, order := groupBySE(listing.Replicas)
	for _, se := range order {
		b, err := a.backends.Get(se)
		if err != nil {
			maps.Copy(failures, failAll(groups[se], err.Error()))
			continue
		}

		results, err := a.poll(ctx, b, se, groups[se])
		if err != nil {
			logger.WarnCtx(ctx, "Recall poll failed",
				logger.KeyStorageElement, se,
				logger.KeyError, err)
			errs = append(errs, err)
			continue
		}
		for _, r := range groups[se] {
			res, ok := results[r.ID]
			if !ok {
				continue
			}
			switch res.State {
			case backend.RecallDone:
				completed = append(completed, r.ID)
			case backend.RecallFailed:
				failures[r.ID] = res.Reason
			}
		}
	}

	timedOut, err := a.timedOut(ctx, completed)
	if err != nil {
		errs = append(errs, err)
	}
	for id, reason := range timedOut {
		if _, failed := failures[id]; !failed {
			failures[id] = reason
		}
	}

	processed := 0
	if len(completed) > 0 {
		updated, err := a.coord.MarkStageComplete(ctx, completed)
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

func (a *MonitorAgent) poll(ctx context.Context, b backend.Backend, se string, replicas []models.CacheReplica) (map[string]backend.RecallResult, error) {
	ctx, span := telemetry.StartBackendSpan(ctx, "poll_recall", b.Type(),
		telemetry.StorageElement(se), telemetry.Requested(len(replicas)))
	defer span.End()

	results, err := b.PollRecall(ctx, replicas)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	return results, nil
}

// timedOut returns the replicas whose stage request has been outstanding
// longer than the stage timeout, excluding the ones just completed.
func (a *MonitorAgent) timedOut(ctx context.Context, completed []string) (map[string]string, error) {
	if a.config.StageTimeout <= 0 {
		return nil, nil
	}

	cutoff := a.now().Add(-a.config.StageTimeout)
	requests, err := a.coord.ListStageRequests(ctx, store.StageRequestFilter{
		Statuses: []models.StageStatus{models.StageSubmitted},
		Window:   store.Window{Older: &cutoff, Limit: a.config.BatchSize},
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue stage requests: %w", err)
	}

	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	reasons := make(map[string]string)
	for _, req := range requests {
		if done[req.ReplicaID] {
			continue
		}
		reasons[req.ReplicaID] = fmt.Sprintf("stage request %s timed out after %s", req.RequestID, a.config.StageTimeout)
	}
	if len(reasons) > 0 {
		logger.WarnCtx(ctx, "Stage requests timed out", logger.KeyCount, len(reasons))
	}
	return reasons, nil
}
