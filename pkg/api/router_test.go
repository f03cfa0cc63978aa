package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/internal/logger"
	"github.com/marmos91/stager/pkg/api/auth"
	"github.com/marmos91/stager/pkg/api/handlers"
	"github.com/marmos91/stager/pkg/stager/models"
	"github.com/marmos91/stager/pkg/stager/service"
	"github.com/marmos91/stager/pkg/stager/store"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
	token  string
}

func newTestAPI(t *testing.T, jwt *auth.JWTService) *testAPI {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := httptest.NewServer(NewRouter(Dependencies{
		Coordinator: service.New(st, nil, service.Options{}),
		JWT:         jwt,
	}))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, server: srv}
}

// do sends a JSON request and decodes a JSON response into out when non-nil.
func (a *testAPI) do(method, path string, body, out any) int {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, rdr)
	require.NoError(a.t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (a *testAPI) submit(source string, files map[string][]string) string {
	a.t.Helper()
	var resp handlers.SubmitTaskResponse
	status := a.do(http.MethodPost, "/api/v1/tasks", models.TaskRequest{
		Source:     source,
		CallbackID: "cb-" + source,
		Files:      files,
	}, &resp)
	require.Equal(a.t, http.StatusCreated, status)
	require.NotEmpty(a.t, resp.TaskID)
	return resp.TaskID
}

func (a *testAPI) taskStatus(id string) models.TaskStatus {
	a.t.Helper()
	var resp handlers.TaskStatusResponse
	require.Equal(a.t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/"+id+"/status", nil, &resp))
	return resp.Status
}

func TestRouterLifecycle(t *testing.T) {
	a := newTestAPI(t, nil)

	taskA := a.submit("analysis", map[string][]string{"TAPE": {"/data/run1", "/data/run2"}})
	taskB := a.submit("reprocessing", map[string][]string{"TAPE": {"/data/run1"}})
	assert.Equal(t, models.TaskNew, a.taskStatus(taskA))

	// Both tasks share the replica of /data/run1.
	var info models.TaskInfo
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/"+taskA, nil, &info))
	require.Len(t, info.Replicas, 2)
	ids := map[string]string{}
	for _, r := range info.Replicas {
		ids[r.LFN] = r.ID
	}

	var listing store.ReplicaListing
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/replicas?storage_element=TAPE", nil, &listing))
	assert.Len(t, listing.Replicas, 2)
	assert.ElementsMatch(t, []string{taskA, taskB}, listing.TaskIDs[ids["/data/run1"]])

	var upd handlers.UpdatedResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/replicas/resolved", handlers.ResolveRequest{
		Resolutions: []models.ReplicaResolution{
			{ReplicaID: ids["/data/run1"], PFN: "/tape/run1", Size: 10},
			{ReplicaID: ids["/data/run2"], PFN: "/tape/run2", Size: 10},
		},
	}, &upd))
	assert.Len(t, upd.Updated, 2)
	assert.Equal(t, models.TaskWaiting, a.taskStatus(taskA))
	assert.Equal(t, models.TaskWaiting, a.taskStatus(taskB))

	var waiting []models.WaitingReplica
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/replicas/waiting", nil, &waiting))
	assert.NotEmpty(t, waiting)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/stage-requests", handlers.SubmitStageRequest{
		Requests:    map[string][]string{"req-1": {ids["/data/run1"], ids["/data/run2"]}},
		PinLifetime: 3600,
	}, &upd))
	assert.Len(t, upd.Updated, 2)
	assert.Equal(t, models.TaskStageSubmitted, a.taskStatus(taskA))

	var pins []models.PinUsage
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/pins", nil, &pins))
	require.Len(t, pins, 1)
	assert.Equal(t, models.PinUsage{StorageElement: "TAPE", Replicas: 2, TotalSize: 20}, pins[0])

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/stage-requests/complete", handlers.CompleteStageRequest{
		ReplicaIDs: []string{ids["/data/run1"]},
	}, &upd))
	assert.Equal(t, []string{ids["/data/run1"]}, upd.Updated)
	assert.Equal(t, models.TaskStageCompleting, a.taskStatus(taskA))
	assert.Equal(t, models.TaskDone, a.taskStatus(taskB))

	var refs []models.TaskRef
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/by-status/done", nil, &refs))
	require.Len(t, refs, 1)
	assert.Equal(t, taskB, refs[0].ID)

	var requests []models.StageRequest
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/stage-requests?status=Staged", nil, &requests))
	require.Len(t, requests, 1)
	assert.Equal(t, "req-1", requests[0].RequestID)
	assert.Equal(t, int64(3600), requests[0].PinLength)

	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/tasks/done", handlers.TaskIDsRequest{
		TaskIDs: []string{taskA, taskB},
	}, &upd))
	assert.Equal(t, []string{taskA}, upd.Updated)

	var summary models.TaskSummary
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/"+taskA+"/summary", nil, &summary))
	assert.Equal(t, models.TaskDone, summary.Status)
	assert.Equal(t, models.ReplicaStageSubmitted, summary.Files["/data/run2"].Status)

	var gc store.GCResult
	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/v1/tasks/"+taskA, nil, &gc))
	assert.Equal(t, taskA, gc.TaskID)
	assert.Equal(t, []string{ids["/data/run2"]}, gc.RemovedReplicas)
	assert.Equal(t, int64(1), gc.RemovedStageRequests)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/v1/tasks/"+taskA, nil, nil))

	var tasks []models.Task
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks?source=reprocessing", nil, &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, taskB, tasks[0].ID)
}

func TestRouterFailures(t *testing.T) {
	a := newTestAPI(t, nil)

	task := a.submit("analysis", map[string][]string{"TAPE": {"/data/bad"}})
	var info models.TaskInfo
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/"+task, nil, &info))
	id := info.Replicas[0].ID

	var upd handlers.UpdatedResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/replicas/failed", handlers.FailRequest{
		Reasons: map[string]string{id: "not in catalog"},
	}, &upd))
	assert.Equal(t, []string{id}, upd.Updated)
	assert.Equal(t, models.TaskFailed, a.taskStatus(task))

	var summary models.TaskSummary
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks/"+task+"/summary", nil, &summary))
	require.NotNil(t, summary.Files["/data/bad"].Reason)
	assert.Equal(t, "not in catalog", summary.Files["/data/bad"].Reason)

	// A later request for the failed file fails immediately.
	again := a.submit("analysis", map[string][]string{"TAPE": {"/data/bad"}})
	assert.Equal(t, models.TaskFailed, a.taskStatus(again))
}

func TestRouterErrors(t *testing.T) {
	a := newTestAPI(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty request", http.MethodPost, "/api/v1/tasks", models.TaskRequest{Source: "x"}, http.StatusBadRequest},
		{"missing source", http.MethodPost, "/api/v1/tasks", models.TaskRequest{Files: map[string][]string{"TAPE": {"/a"}}}, http.StatusBadRequest},
		{"unknown task", http.MethodGet, "/api/v1/tasks/nope", nil, http.StatusNotFound},
		{"unknown task status", http.MethodGet, "/api/v1/tasks/nope/status", nil, http.StatusNotFound},
		{"remove unknown task", http.MethodDelete, "/api/v1/tasks/nope", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/v1/tasks?status=Bogus", nil, http.StatusBadRequest},
		{"bad by-status", http.MethodGet, "/api/v1/tasks/by-status/Bogus", nil, http.StatusBadRequest},
		{"bad replica status", http.MethodGet, "/api/v1/replicas?status=Bogus", nil, http.StatusBadRequest},
		{"bad stage status", http.MethodGet, "/api/v1/stage-requests?status=Bogus", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/replicas?limit=x", nil, http.StatusBadRequest},
		{"negative pin", http.MethodPost, "/api/v1/stage-requests", handlers.SubmitStageRequest{PinLifetime: -1}, http.StatusBadRequest},
		{"empty request id", http.MethodPost, "/api/v1/stage-requests", handlers.SubmitStageRequest{Requests: map[string][]string{"": {"r"}}}, http.StatusBadRequest},
		{"not json", http.MethodPost, "/api/v1/tasks/done", "[", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, a.do(tt.method, tt.path, tt.body, nil))
		})
	}

	var upd handlers.UpdatedResponse
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/api/v1/stage-requests/complete", handlers.CompleteStageRequest{
		ReplicaIDs: []string{"unknown"},
	}, &upd))
	assert.Empty(t, upd.Updated)
}

func TestRouterAuth(t *testing.T) {
	jwt, err := auth.NewJWTService(auth.JWTConfig{Secret: "router-test-secret-of-32-characters!"})
	require.NoError(t, err)
	a := newTestAPI(t, jwt)

	token := func(role auth.Role) string {
		tok, _, err := jwt.GenerateToken("tester", role, time.Hour)
		require.NoError(t, err)
		return tok
	}
	req := models.TaskRequest{Source: "s", Files: map[string][]string{"TAPE": {"/a"}}}

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/api/v1/tasks", nil, nil))

	a.token = token(auth.RoleReader)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/tasks", nil, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/api/v1/tasks", req, nil))

	a.token = token(auth.RoleOperator)
	var resp handlers.SubmitTaskResponse
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/v1/tasks", req, &resp))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/api/v1/tasks/"+resp.TaskID, nil, nil))

	a.token = token(auth.RoleAdmin)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/v1/tasks/"+resp.TaskID, nil, nil))
}

func TestRouterHealth(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/health/ready", nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, a.do(http.MethodGet, "/health/backends", nil, nil))

	var stats map[string]any
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/v1/agents", nil, &stats))
	assert.Empty(t, stats)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.7:51234", "10.0.0.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"192.168.1.20", "192.168.1.20"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			r.RemoteAddr = tt.remote
			assert.Equal(t, tt.want, clientIP(r))
		})
	}
}

func TestRequestLoggerAttachesClientIP(t *testing.T) {
	buf := new(bytes.Buffer)
	logger.InitWithWriter(buf, "DEBUG", "json", false)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout, "INFO", "text", false) })

	var seen string
	h := requestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lc := logger.FromContext(r.Context()); lc != nil {
			seen = lc.ClientIP
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	h.ServeHTTP(httptest.NewRecorder(), r)

	assert.Equal(t, "10.0.0.7", seen)
	assert.Contains(t, buf.String(), `"client_ip":"10.0.0.7"`)
}
