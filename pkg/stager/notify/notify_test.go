package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/stager/pkg/stager/models"
)

func TestNew(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "log", n.Type())

	_, err = New(Config{Type: "webhook"})
	assert.Error(t, err, "webhook without url")

	n, err = New(Config{Type: "webhook", Webhook: WebhookConfig{URL: "http://localhost/hook"}})
	require.NoError(t, err)
	assert.Equal(t, "webhook", n.Type())

	_, err = New(Config{Type: "pigeon"})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier().Notify(context.Background(), TaskNotification{TaskID: "t1"}))
}

func TestWebhookNotifier(t *testing.T) {
	var (
		gotPath   string
		gotSig    string
		gotHeader string
		got       TaskNotification
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotSig = r.Header.Get(SignatureHeader)
		gotHeader = r.Header.Get("X-Tenant")
		_ = json.Unmarshal(body, &got)
		assert.Equal(t, Sign("s3cret", body), gotSig)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL + "/callbacks/{callback_id}",
		Secret:  "s3cret",
		Headers: map[string]string{"X-Tenant": "physics"},
	})
	require.NoError(t, err)

	err = n.Notify(context.Background(), TaskNotification{
		TaskID:     "t1",
		Source:     "transfer-service",
		CallbackID: "job 42",
		Status:     models.TaskDone,
		Time:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "/callbacks/job 42", gotPath)
	assert.NotEmpty(t, gotSig)
	assert.Equal(t, "physics", gotHeader)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, models.TaskDone, got.Status)
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, n.Notify(context.Background(), TaskNotification{TaskID: "t1"}))
}
