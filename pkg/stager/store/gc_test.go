package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marmos91/stager/pkg/stager/models"
)

func TestRemoveTaskCollectsUnsharedReplicas(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	task := submit(t, s, "SE1", "/a")
	a := replicaOf(t, s, "SE1", "/a")
	resolve(t, s, a.ID)
	_, err := s.MarkStageSubmitted(ctx, map[string][]string{"r": {a.ID}}, time.Hour)
	require.NoError(t, err)
	_, err = s.MarkStageComplete(ctx, []string{a.ID}, time.Hour)
	require.NoError(t, err)

	res, err := s.RemoveTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, task, res.TaskID)
	assert.Equal(t, []string{a.ID}, res.Unlinked)
	assert.Equal(t, []string{a.ID}, res.RemovedReplicas)
	assert.Equal(t, int64(1), res.RemovedStageRequests)

	_, err = s.GetTask(ctx, task)
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
	_, err = s.GetReplica(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrReplicaNotFound)

	reqs, err := s.ListStageRequests(ctx, StageRequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestRemoveTaskKeepsSharedReplicas(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	first := submit(t, s, "SE1", "/shared", "/own")
	second := submit(t, s, "SE1", "/shared")
	shared := replicaOf(t, s, "SE1", "/shared")
	own := replicaOf(t, s, "SE1", "/own")

	res, err := s.RemoveTask(ctx, first)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{shared.ID, own.ID}, res.Unlinked)
	assert.Equal(t, []string{own.ID}, res.RemovedReplicas)

	kept := replicaOf(t, s, "SE1", "/shared")
	assert.Equal(t, 1, kept.Links)

	listing, err := s.ListReplicas(ctx, ReplicaFilter{IDs: []string{shared.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{second}, listing.TaskIDs[shared.ID])

	// The surviving task is unaffected.
	assert.Equal(t, models.TaskNew, taskStatus(t, s, second))

	res, err = s.RemoveTask(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []string{shared.ID}, res.RemovedReplicas)
}

func TestRemoveTaskUnknown(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.RemoveTask(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestReplicaTransitionsNeverCollect(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	submit(t, s, "SE1", "/a")
	a := replicaOf(t, s, "SE1", "/a")
	_, err := s.MarkReplicasFailed(ctx, map[string]string{a.ID: "gone"})
	require.NoError(t, err)

	_, err = s.GetReplica(ctx, a.ID)
	assert.NoError(t, err)
}

// A failure after the task row was written must leave nothing behind.
func TestSubmitRollsBackOnFailure(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	submit(t, s, "SE1", "/existing")

	injected := errors.New("injected link failure")
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").
		Register("test:fail_links", func(db *gorm.DB) {
			if db.Statement.Table == "task_replicas" {
				_ = db.AddError(injected)
			}
		}))
	t.Cleanup(func() { _ = s.db.Callback().Create().Remove("test:fail_links") })

	_, err := s.SubmitTask(ctx, models.TaskRequest{
		Source: "rollback",
		Files:  map[string][]string{"SE1": {"/existing", "/fresh"}},
	})
	require.ErrorIs(t, err, injected)

	tasks, err := s.ListTasks(ctx, TaskFilter{Source: "rollback"})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	refs, err := s.ResolveReplicas(ctx, "SE1", []string{"/fresh"})
	require.NoError(t, err)
	assert.Empty(t, refs, "replica created for the failed task must be rolled back")

	assert.Equal(t, 1, replicaOf(t, s, "SE1", "/existing").Links)
}
