package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	Reset()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	reg := InitRegistry()
	t.Cleanup(Reset)
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "stager_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))
	counter.Inc()

	rec = httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stager_test_total 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewServerDefaults(t *testing.T) {
	InitRegistry()
	t.Cleanup(Reset)

	s := NewServer(Config{Enabled: true})
	assert.Equal(t, 9090, s.config.Port)
	assert.Equal(t, "/metrics", s.config.Path)
	assert.Equal(t, ":9090", s.server.Addr)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
