package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/backend"
)

func enable(t *testing.T) {
	t.Helper()
	metrics.InitRegistry()
	t.Cleanup(metrics.Reset)
}

func TestConstructorsDisabled(t *testing.T) {
	metrics.Reset()
	assert.Nil(t, NewCoordinatorMetrics())
	assert.Nil(t, NewBackendMetrics())
	assert.Nil(t, NewAgentMetrics())
}

func TestCoordinatorMetrics(t *testing.T) {
	enable(t)
	m := NewCoordinatorMetrics().(*coordinatorMetrics)

	m.ObserveOperation("SubmitTask", 3*time.Millisecond, nil)
	m.ObserveOperation("SubmitTask", time.Millisecond, errors.New("boom"))
	m.RecordSubmission(4)
	m.RecordTransition("replica", "Staged", 5, 3)
	m.RecordGC(2, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("SubmitTask", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("SubmitTask", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksSubmitted))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.filesSubmitted))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.transitionRequested.WithLabelValues("replica", "Staged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.transitionApplied.WithLabelValues("replica", "Staged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.gcReplicas))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gcStageRequests))

	count, err := testutil.GatherAndCount(metrics.GetRegistry(), "stager_coordinator_operation_duration_milliseconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBackendMetrics(t *testing.T) {
	enable(t)
	m := NewBackendMetrics().(*backendMetrics)

	m.ObserveOperation("s3", "RestoreObject", 20*time.Millisecond, nil)
	m.RecordRecalls("s3", backend.RecallDone, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("s3", "RestoreObject", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.recalls.WithLabelValues("s3", "done")))
}

func TestAgentMetrics(t *testing.T) {
	enable(t)
	m := NewAgentMetrics().(*agentMetrics)

	m.ObserveCycle("submit", 10*time.Millisecond, 7, nil)
	m.SetPinnedBytes("TAPE", 1<<30)
	m.RecordNotification("webhook", errors.New("503"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("submit", "success")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.processed.WithLabelValues("submit")))
	assert.Equal(t, float64(1<<30), testutil.ToFloat64(m.pinnedBytes.WithLabelValues("TAPE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("webhook", "error")))
}

func TestNilReceivers(t *testing.T) {
	var c *coordinatorMetrics
	var b *backendMetrics
	var a *agentMetrics

	assert.NotPanics(t, func() {
		c.ObserveOperation("x", 0, nil)
		c.RecordSubmission(1)
		c.RecordTransition("task", "Done", 1, 1)
		c.RecordGC(1, 1)
		b.ObserveOperation("s3", "x", 0, nil)
		b.RecordRecalls("s3", backend.RecallPending, 1)
		a.ObserveCycle("x", 0, 0, nil)
		a.SetPinnedBytes("x", 0)
		a.RecordNotification("log", nil)
	})
}
