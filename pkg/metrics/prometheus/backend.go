package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/backend"
)

// backendMetrics is the Prometheus implementation of backend.Metrics.
type backendMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	recalls           *prometheus.CounterVec
}

// NewBackendMetrics creates the recall backend collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBackendMetrics() backend.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &backendMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_backend_operations_total",
				Help: "Total number of backend calls by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "stager_backend_operation_duration_milliseconds",
				Help: "Duration of backend calls in milliseconds",
				Buckets: []float64{
					10,   // 10ms - metadata calls in region
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s
					5000, // 5s - throttled or cross-region
					30000,
				},
			},
			[]string{"backend", "operation"},
		),
		recalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_backend_recall_polls_total",
				Help: "Recall states observed while polling, by backend and state",
			},
			[]string{"backend", "state"}, // state: "pending", "done", "failed"
		),
	}
}

func (m *backendMetrics) ObserveOperation(backendType, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(backendType, operation, outcome(err)).Inc()
	m.operationDuration.WithLabelValues(backendType, operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *backendMetrics) RecordRecalls(backendType string, state backend.RecallState, count int) {
	if m == nil {
		return
	}
	m.recalls.WithLabelValues(backendType, state.String()).Add(float64(count))
}
