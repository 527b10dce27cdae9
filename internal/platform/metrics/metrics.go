package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics shared across modules.
type Metrics struct {
	HTTPRequestDuration *prometheus.HistogramVec
	PersistenceFailures *prometheus.CounterVec
	AuditDropped        prometheus.Counter
}

// New creates and registers process-wide metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern and status class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "code"}),
		PersistenceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_persistence_failures_total",
			Help: "Snapshot writes that failed while in-memory state was kept",
		}, []string{"table"}),
		AuditDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_audit_events_dropped_total",
			Help: "Audit events dropped because the async buffer was full",
		}),
	}
}

// IncPersistenceFailure counts a failed snapshot write for table.
func (m *Metrics) IncPersistenceFailure(table string) {
	if m != nil {
		m.PersistenceFailures.WithLabelValues(table).Inc()
	}
}
