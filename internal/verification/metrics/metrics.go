package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks questionnaire sessions.
type Metrics struct {
	Started       prometheus.Counter
	Completed     prometheus.Counter
	Abandoned     prometheus.Counter
	StartRejected *prometheus.CounterVec
	Active        prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Started: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_sessions_started_total",
			Help: "Verification sessions started",
		}),
		Completed: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_sessions_completed_total",
			Help: "Sessions that answered every question",
		}),
		Abandoned: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_verification_sessions_abandoned_total",
			Help: "Sessions discarded before completion",
		}),
		StartRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_verification_start_rejected_total",
			Help: "Start requests refused, by reason",
		}, []string{"reason"}),
		Active: f.NewGauge(prometheus.GaugeOpts{
			Name: "warden_verification_sessions_active",
			Help: "Sessions currently in progress",
		}),
	}
}

func (m *Metrics) IncStarted() {
	if m != nil {
		m.Started.Inc()
		m.Active.Inc()
	}
}

func (m *Metrics) IncCompleted() {
	if m != nil {
		m.Completed.Inc()
		m.Active.Dec()
	}
}

func (m *Metrics) IncAbandoned() {
	if m != nil {
		m.Abandoned.Inc()
		m.Active.Dec()
	}
}

func (m *Metrics) IncStartRejected(reason string) {
	if m != nil {
		m.StartRejected.WithLabelValues(reason).Inc()
	}
}
