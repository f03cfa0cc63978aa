package apiclient

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/pkg/api"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/service"
	"github.com/marmos91/stager/pkg/stager/store"
)

func newStagerServer(t *testing.T) *Client {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := httptest.NewServer(api.NewRouter(api.Dependencies{
		Coordinator: service.New(st, nil, service.Options{}),
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientLifecycle(t *testing.T) {
	c := newStagerServer(t)

	taskID, err := c.SubmitTask(models.TaskRequest{
		Source:     "analysis",
		CallbackID: "cb-1",
		Files:      map[string][]string{"TAPE": {"/data/a", "/data/b"}},
	})
	require.NoError(t, err)

	status, err := c.GetTaskStatus(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskNew, status)

	listing, err := c.ListReplicas(ReplicaFilter{TaskID: taskID, Statuses: []string{"New"}})
	require.NoError(t, err)
	require.Len(t, listing.Replicas, 2)

	var resolutions []models.ReplicaResolution
	var ids []string
	for _, r := range listing.Replicas {
		resolutions = append(resolutions, models.ReplicaResolution{ReplicaID: r.ID, PFN: "/tape" + r.LFN, Size: 5})
		ids = append(ids, r.ID)
	}
	updated, err := c.MarkReplicasResolved(resolutions)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, updated)

	waiting, err := c.ListWaitingReplicas()
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	updated, err = c.MarkStageSubmitted(map[string][]string{"req-1": ids}, 2*time.Hour)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, updated)

	pins, err := c.SubmittedPins()
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, int64(10), pins[0].TotalSize)

	requests, err := c.ListStageRequests(StageRequestFilter{TaskID: taskID, RequestID: "req-1"})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, int64(7200), requests[0].PinLength)

	_, err = c.MarkStageComplete(ids)
	require.NoError(t, err)

	refs, err := c.TasksByStatus("Done")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "cb-1", refs[0].CallbackID)

	summary, err := c.GetTaskSummary(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.ReplicaStaged, summary.Files["/data/a"].Status)

	moved, err := c.SetTasksDone([]string{taskID})
	require.NoError(t, err)
	assert.Empty(t, moved)

	gc, err := c.RemoveTask(taskID)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, gc.RemovedReplicas)
	assert.Equal(t, int64(2), gc.RemovedStageRequests)

	_, err = c.GetTask(taskID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsNotFound())
}

func TestClientListsAndErrors(t *testing.T) {
	c := newStagerServer(t)

	for _, source := range []string{"alpha", "beta", "alpha"} {
		_, err := c.SubmitTask(models.TaskRequest{
			Source: source,
			Files:  map[string][]string{"TAPE": {"/data/" + source}},
		})
		require.NoError(t, err)
	}

	tasks, err := c.ListTasks(TaskFilter{Source: "alpha"})
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = c.ListTasks(TaskFilter{Window: Window{Limit: 1, Descending: true}})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	failed, err := c.MarkReplicasFailed(map[string]string{"unknown": "gone"})
	require.NoError(t, err)
	assert.Empty(t, failed)

	_, err = c.SubmitTask(models.TaskRequest{Source: "empty"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsValidationError())

	_, err = c.ListTasks(TaskFilter{Statuses: []string{"Bogus"}})
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsValidationError())

	ready, err := c.Ready()
	require.NoError(t, err)
	assert.Equal(t, "healthy", ready.Status)

	stats, err := c.AgentStats()
	require.NoError(t, err)
	assert.Empty(t, stats)
}
