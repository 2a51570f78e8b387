// Package metrics provides Prometheus metrics for the schema registry core:
// the master-slave-role gauge spec §6 requires, plus counters for
// registration outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors this core registers.
type Metrics struct {
	// MasterSlaveRole is 1.0 while this node holds the master lease, 0.0 otherwise.
	MasterSlaveRole prometheus.Gauge

	// LogAppends counts and times LogBackedStore.append calls, by outcome.
	LogAppends      *prometheus.CounterVec
	LogAppendLatency *prometheus.HistogramVec

	// CoordinatorRoundtrips counts and times Coordinator operations (Get,
	// CompareAndSet, RegisterEphemeral, WatchChildren), by operation and outcome.
	CoordinatorRoundtrips       *prometheus.CounterVec
	CoordinatorRoundtripLatency *prometheus.HistogramVec

	// RegistrationsTotal counts register() outcomes by result (registered,
	// idempotent-noop, incompatible, error).
	RegistrationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.MasterSlaveRole = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "master_slave_role",
		Help: "1.0 while this node holds the master lease, 0.0 otherwise.",
	})

	m.LogAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_registry_log_appends_total",
			Help: "Total number of LogBackedStore.append calls by outcome.",
		},
		[]string{"outcome"},
	)

	m.LogAppendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schema_registry_log_append_duration_seconds",
			Help:    "LogBackedStore.append latency in seconds, from produce to readback.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	m.CoordinatorRoundtrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_registry_coordinator_roundtrips_total",
			Help: "Total number of Coordinator round-trips by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	m.CoordinatorRoundtripLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schema_registry_coordinator_roundtrip_duration_seconds",
			Help:    "Coordinator round-trip latency in seconds by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	m.RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schema_registry_registrations_total",
			Help: "Total number of register() calls by outcome.",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		m.MasterSlaveRole,
		m.LogAppends,
		m.LogAppendLatency,
		m.CoordinatorRoundtrips,
		m.CoordinatorRoundtripLatency,
		m.RegistrationsTotal,
	)
	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SetMasterRole implements registry.MetricsReporter.
func (m *Metrics) SetMasterRole(isMaster bool) {
	if isMaster {
		m.MasterSlaveRole.Set(1.0)
	} else {
		m.MasterSlaveRole.Set(0.0)
	}
}

// RecordLogAppend records a LogBackedStore.append outcome and its latency.
func (m *Metrics) RecordLogAppend(outcome string, duration time.Duration) {
	m.LogAppends.WithLabelValues(outcome).Inc()
	m.LogAppendLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordCoordinatorRoundtrip records a Coordinator operation's outcome and latency.
func (m *Metrics) RecordCoordinatorRoundtrip(operation, outcome string, duration time.Duration) {
	m.CoordinatorRoundtrips.WithLabelValues(operation, outcome).Inc()
	m.CoordinatorRoundtripLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRegistration records a register() outcome.
func (m *Metrics) RecordRegistration(outcome string) {
	m.RegistrationsTotal.WithLabelValues(outcome).Inc()
}
