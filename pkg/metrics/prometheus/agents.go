package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/stager/pkg/metrics"
	"github.com/marmos91/stager/pkg/stager/agents"
)

// agentMetrics is the Prometheus implementation of agents.Metrics.
type agentMetrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	processed     *prometheus.CounterVec
	pinnedBytes   *prometheus.GaugeVec
	notifications *prometheus.CounterVec
}

// NewAgentMetrics creates the agent collectors.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAgentMetrics() agents.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &agentMetrics{
		cycles: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_agent_cycles_total",
				Help: "Agent polling cycles by agent and status",
			},
			[]string{"agent", "status"},
		),
		cycleDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stager_agent_cycle_duration_milliseconds",
				Help:    "Duration of agent polling cycles in milliseconds",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 30000, 120000},
			},
			[]string{"agent"},
		),
		processed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_agent_processed_total",
				Help: "Records an agent moved forward, by agent",
			},
			[]string{"agent"},
		),
		pinnedBytes: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stager_pinned_bytes",
				Help: "Bytes pinned or in flight per storage element, as seen by the submit agent",
			},
			[]string{"storage_element"},
		),
		notifications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stager_notifications_total",
				Help: "Task notifications by notifier and status",
			},
			[]string{"notifier", "status"},
		),
	}
}

func (m *agentMetrics) ObserveCycle(agent string, duration time.Duration, processed int, err error) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(agent, outcome(err)).Inc()
	m.cycleDuration.WithLabelValues(agent).Observe(float64(duration.Microseconds()) / 1000)
	m.processed.WithLabelValues(agent).Add(float64(processed))
}

func (m *agentMetrics) SetPinnedBytes(storageElement string, bytes int64) {
	if m == nil {
		return
	}
	m.pinnedBytes.WithLabelValues(storageElement).Set(float64(bytes))
}

func (m *agentMetrics) RecordNotification(notifier string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notifier, outcome(err)).Inc()
}
