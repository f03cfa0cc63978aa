package agents

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/internal/bytesize"
	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/stager/backend"
	"github.com/marmos91/stager/pkg/stager/backend/memory"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/notify"
	"github.com/marmos91/stager/pkg/stager/service"
	"github.com/marmos91/stager/pkg/stager/store"
)

const tape = "TAPE"

// recordingNotifier keeps every notification and can be told to fail.
type recordingNotifier struct {
	mu   sync.Mutex
	got  []notify.TaskNotification
	fail error
}

func (n *recordingNotifier) Type() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, tn notify.TaskNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.got = append(n.got, tn)
	return nil
}

type harness struct {
	coord    *service.Coordinator
	archive  *memory.Backend
	backends *backend.Registry
	notifier *recordingNotifier
}

func newHarness(t *testing.T, archive memory.Config) *harness {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if archive.DefaultSize == 0 {
		archive.DefaultSize = 100
	}
	h := &harness{
		coord:    service.New(st, nil, service.Options{}),
		archive:  memory.New(archive),
		backends: backend.NewRegistry(),
		notifier: &recordingNotifier{},
	}
	require.NoError(t, h.backends.Register(tape, h.archive))
	return h
}

func (h *harness) submit(t *testing.T, se string, lfns ...string) string {
	t.Helper()
	id, err := h.coord.SubmitTask(context.Background(), "test", "cb-"+lfns[0], nil, map[string][]string{se: lfns})
	require.NoError(t, err)
	return id
}

func (h *harness) status(t *testing.T, taskID string) models.TaskStatus {
	t.Helper()
	s, err := h.coord.TaskStatus(context.Background(), taskID)
	require.NoError(t, err)
	return s
}

func (h *harness) replicas(t *testing.T, status models.ReplicaStatus) []models.CacheReplica {
	t.Helper()
	l, err := h.coord.ListReplicas(context.Background(), store.ReplicaFilter{
		Statuses: []models.ReplicaStatus{status},
	})
	require.NoError(t, err)
	return l.Replicas
}

func run(t *testing.T, a Agent) int {
	t.Helper()
	n, err := a.RunOnce(context.Background())
	require.NoError(t, err)
	return n
}

func TestPipeline(t *testing.T) {
	h := newHarness(t, memory.Config{})
	h.archive.AddFile("/data/a", 10)

	taskA := h.submit(t, tape, "/data/a", "/data/b")
	taskB := h.submit(t, tape, "/data/b")

	resolve := NewResolveAgent(h.coord, h.backends, AgentConfig{})
	submit := NewSubmitAgent(h.coord, h.backends, SubmitConfig{}, time.Hour, nil, nil)
	monitor := NewMonitorAgent(h.coord, h.backends, MonitorConfig{})
	finalize := NewFinalizeAgent(h.coord, h.notifier, AgentConfig{}, nil)

	assert.Equal(t, 0, run(t, submit), "nothing waiting yet")

	assert.Equal(t, 2, run(t, resolve))
	assert.Equal(t, models.TaskWaiting, h.status(t, taskA))
	assert.Equal(t, 0, run(t, resolve))

	assert.Equal(t, 2, run(t, submit), "the shared file is recalled once")
	assert.Equal(t, 2, h.archive.Recalls())
	assert.Equal(t, models.TaskStageSubmitted, h.status(t, taskB))

	assert.Equal(t, 2, run(t, monitor))
	assert.Equal(t, models.TaskDone, h.status(t, taskA))
	assert.Equal(t, models.TaskDone, h.status(t, taskB))

	assert.Equal(t, 2, run(t, finalize))
	require.Len(t, h.notifier.got, 2)
	assert.Equal(t, models.TaskDone, h.notifier.got[0].Status)
	require.NotNil(t, h.notifier.got[0].Summary)

	_, err := h.coord.TaskStatus(context.Background(), taskA)
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
	assert.Empty(t, h.replicas(t, models.ReplicaStaged), "replicas collected with their last task")
}

func TestResolveFailures(t *testing.T) {
	h := newHarness(t, memory.Config{Strict: true})
	h.archive.AddFile("/known", 1)

	unknownSE := h.submit(t, "NOWHERE", "/x")
	missing := h.submit(t, tape, "/known", "/unknown")

	assert.Equal(t, 3, run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{})))

	assert.Equal(t, models.TaskFailed, h.status(t, unknownSE))
	assert.Equal(t, models.TaskFailed, h.status(t, missing))

	failed := h.replicas(t, models.ReplicaFailed)
	require.Len(t, failed, 2)
	for _, r := range failed {
		assert.NotEmpty(t, r.GetReason())
	}

	waiting, err := h.coord.ListWaitingReplicas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, waiting, "the known file of a failed task is not eligible")
}

func TestResolveLogsUnresolvableFiles(t *testing.T) {
	buf := new(bytes.Buffer)
	logger.InitWithWriter(buf, "DEBUG", "json", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "INFO", "text", false) })

	h := newHarness(t, memory.Config{Strict: true})
	h.submit(t, tape, "/absent")

	assert.Equal(t, 1, run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{})))

	failed := h.replicas(t, models.ReplicaFailed)
	require.Len(t, failed, 1)
	out := buf.String()
	assert.Contains(t, out, `"msg":"File not resolvable"`)
	assert.Contains(t, out, `"replica_id":"`+failed[0].ID+`"`)
	assert.Contains(t, out, `"lfn":"/absent"`)
}

func TestSubmitQuota(t *testing.T) {
	ctx := context.Background()

	t.Run("first fit within quota", func(t *testing.T) {
		h := newHarness(t, memory.Config{})
		h.submit(t, tape, "/1", "/2", "/3")
		run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))

		quotas := map[string]bytesize.ByteSize{tape: 250}
		submit := NewSubmitAgent(h.coord, h.backends, SubmitConfig{}, time.Hour, quotas, nil)
		assert.Equal(t, 2, run(t, submit))
		assert.Equal(t, 0, run(t, submit), "quota full while recalls are in flight")

		pins, err := h.coord.SubmittedPins(ctx)
		require.NoError(t, err)
		require.Len(t, pins, 1)
		assert.Equal(t, int64(200), pins[0].TotalSize)
	})

	t.Run("oversized file admitted alone", func(t *testing.T) {
		h := newHarness(t, memory.Config{})
		h.submit(t, tape, "/big", "/small")
		run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))

		quotas := map[string]bytesize.ByteSize{tape: 50}
		submit := NewSubmitAgent(h.coord, h.backends, SubmitConfig{}, time.Hour, quotas, nil)
		assert.Equal(t, 1, run(t, submit))
	})
}

func TestSubmitChunksRequests(t *testing.T) {
	h := newHarness(t, memory.Config{})
	h.submit(t, tape, "/1", "/2", "/3", "/4", "/5")
	run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))

	submit := NewSubmitAgent(h.coord, h.backends, SubmitConfig{MaxFilesPerRequest: 2}, time.Hour, nil, nil)
	assert.Equal(t, 5, run(t, submit))

	requests, err := h.coord.ListStageRequests(context.Background(), store.StageRequestFilter{})
	require.NoError(t, err)
	ids := make(map[string]int)
	for _, r := range requests {
		ids[r.RequestID]++
		assert.Equal(t, int64(3600), r.PinLength)
	}
	assert.Len(t, ids, 3)
}

func TestSubmitBatchSize(t *testing.T) {
	h := newHarness(t, memory.Config{})
	h.submit(t, tape, "/1", "/2", "/3")
	run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))

	submit := NewSubmitAgent(h.coord, h.backends, SubmitConfig{AgentConfig: AgentConfig{BatchSize: 2}}, time.Hour, nil, nil)
	assert.Equal(t, 2, run(t, submit))
	assert.Equal(t, 1, run(t, submit))
}

func TestMonitorFailureAndTimeout(t *testing.T) {
	h := newHarness(t, memory.Config{RecallDelay: time.Hour})
	h.archive.FailFile("/bad", "tape unreadable")

	bad := h.submit(t, tape, "/bad")
	slow := h.submit(t, tape, "/slow")
	run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))
	run(t, NewSubmitAgent(h.coord, h.backends, SubmitConfig{}, time.Hour, nil, nil))

	monitor := NewMonitorAgent(h.coord, h.backends, MonitorConfig{StageTimeout: 10 * time.Minute})
	assert.Equal(t, 1, run(t, monitor))
	assert.Equal(t, models.TaskFailed, h.status(t, bad))
	assert.Equal(t, models.TaskStageSubmitted, h.status(t, slow))

	monitor.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	assert.Equal(t, 1, run(t, monitor))
	assert.Equal(t, models.TaskFailed, h.status(t, slow))

	failed := h.replicas(t, models.ReplicaFailed)
	require.Len(t, failed, 2)
	reasons := []string{failed[0].GetReason(), failed[1].GetReason()}
	assert.Contains(t, reasons, "tape unreadable")

	requests, err := h.coord.ListStageRequests(context.Background(), store.StageRequestFilter{
		Statuses: []models.StageStatus{models.StageFailed},
	})
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}

func TestFinalizeRetriesFailedNotification(t *testing.T) {
	h := newHarness(t, memory.Config{})
	taskID := h.submit(t, "NOWHERE", "/x")
	run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))
	require.Equal(t, models.TaskFailed, h.status(t, taskID))

	h.notifier.fail = errors.New("callback endpoint down")
	finalize := NewFinalizeAgent(h.coord, h.notifier, AgentConfig{}, nil)

	n, err := finalize.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, models.TaskFailed, h.status(t, taskID), "kept for retry")

	h.notifier.fail = nil
	assert.Equal(t, 1, run(t, finalize))
	require.Len(t, h.notifier.got, 1)
	assert.Equal(t, models.TaskFailed, h.notifier.got[0].Status)
}

func TestFinalizeBatchSize(t *testing.T) {
	h := newHarness(t, memory.Config{})
	for _, lfn := range []string{"/1", "/2", "/3"} {
		h.submit(t, "NOWHERE", lfn)
	}
	run(t, NewResolveAgent(h.coord, h.backends, AgentConfig{}))

	finalize := NewFinalizeAgent(h.coord, h.notifier, AgentConfig{BatchSize: 2}, nil)
	assert.Equal(t, 2, run(t, finalize))
	assert.Equal(t, 1, run(t, finalize))
}

// fakeAgent counts its cycles and returns a scripted error.
type fakeAgent struct {
	cycles atomic.Int32
	err    error
}

func (a *fakeAgent) Name() string { return "fake" }

func (a *fakeAgent) RunOnce(context.Context) (int, error) {
	a.cycles.Add(1)
	return 3, a.err
}

func TestRunnerStats(t *testing.T) {
	r := NewRunner(nil)
	a := &fakeAgent{err: errors.New("boom")}

	r.RunCycle(context.Background(), a)
	a.err = nil
	r.RunCycle(context.Background(), a)

	st := r.Stats()["fake"]
	assert.Equal(t, 2, st.Cycles)
	assert.Equal(t, 6, st.Processed)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "boom", st.LastError)
}

func TestRunnerStartStop(t *testing.T) {
	r := NewRunner(nil)
	a := &fakeAgent{}
	r.Add(a, 10*time.Millisecond)

	r.Stop(time.Second) // no-op before Start

	r.Start(context.Background())
	r.Start(context.Background())
	require.Eventually(t, func() bool { return a.cycles.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	r.Stop(time.Second)
	r.Stop(time.Second)

	stopped := a.cycles.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, a.cycles.Load())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Resolve.Enabled)
	assert.True(t, cfg.Finalize.Enabled)
	assert.Equal(t, 100, cfg.Submit.MaxFilesPerRequest)
	assert.Zero(t, cfg.Monitor.StageTimeout)
}
