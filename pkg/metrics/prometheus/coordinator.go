// Package prometheus implements the metrics interfaces of the coordinator,
// the agents and the recall backends on the process registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/service"
)

// operationBuckets are in milliseconds; coordinator calls are single
// database transactions.
var operationBuckets = []float64{
	0.5, // 500us - indexed reads
	1,
	5,
	10,
	50,
	100,
	500, // 500ms - large batches on a busy database
	1000,
	5000,
}

// coordinatorMetrics is the Prometheus implementation of service.Metrics.
type coordinatorMetrics struct {
	operations          *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	filesSubmitted      prometheus.Counter
	tasksSubmitted      prometheus.Counter
	transitionRequested *prometheus.CounterVec
	transitionApplied   *prometheus.CounterVec
	gcReplicas          prometheus.Counter
	gcStageRequests     prometheus.Counter
}

// NewCoordinatorMetrics creates the coordinator collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCoordinatorMetrics() service.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &coordinatorMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_coordinator_operations_total",
				Help: "Total number of coordinator operations by operation and status",
			},
			[]string{"operation", "status"}, // status: "success", "error"
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stager_coordinator_operation_duration_milliseconds",
				Help:    "Duration of coordinator operations in milliseconds",
				Buckets: operationBuckets,
			},
			[]string{"operation"},
		),
		filesSubmitted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "stager_files_submitted_total",
				Help: "Total number of files requested by submitted tasks",
			},
		),
		tasksSubmitted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "stager_tasks_submitted_total",
				Help: "Total number of tasks submitted",
			},
		),
		transitionRequested: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_transitions_requested_total",
				Help: "Records a transition was requested for, by record type and target status",
			},
			[]string{"record", "status"}, // record: "replica", "task"
		),
		transitionApplied: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_transitions_applied_total",
				Help: "Records that actually changed status, by record type and target status",
			},
			[]string{"record", "status"},
		),
		gcReplicas: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "stager_gc_replicas_removed_total",
				Help: "Cache replicas removed because no task references them",
			},
		),
		gcStageRequests: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "stager_gc_stage_requests_removed_total",
				Help: "Stage requests removed together with their replica",
			},
		),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *coordinatorMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *coordinatorMetrics) RecordSubmission(files int) {
	if m == nil {
		return
	}
	m.tasksSubmitted.Inc()
	m.filesSubmitted.Add(float64(files))
}

func (m *coordinatorMetrics) RecordTransition(record, status string, requested, updated int) {
	if m == nil {
		return
	}
	m.transitionRequested.WithLabelValues(record, status).Add(float64(requested))
	m.transitionApplied.WithLabelValues(record, status).Add(float64(updated))
}

func (m *coordinatorMetrics) RecordGC(removedReplicas int, removedStageRequests int64) {
	if m == nil {
		return
	}
	m.gcReplicas.Add(float64(removedReplicas))
	m.gcStageRequests.Add(float64(removedStageRequests))
}
