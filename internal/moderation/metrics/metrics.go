package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for applications and moderator decisions.
type Metrics struct {
	Submitted        prometheus.Counter
	Decisions        *prometheus.CounterVec
	DecisionRejected *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_moderation_applications_submitted_total",
			Help: "Completed questionnaires turned into moderation records",
		}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_moderation_decisions_total",
			Help: "Decisions applied to pending records, by kind",
		}, []string{"kind"}),
		DecisionRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_moderation_decision_rejected_total",
			Help: "Decisions that did not change a record, by reason",
		}, []string{"reason"}),
		DeliveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_moderation_delivery_failures_total",
			Help: "Outbound notifications or role changes that failed, by action",
		}, []string{"action"}),
	}
}

func (m *Metrics) IncSubmitted() {
	if m != nil {
		m.Submitted.Inc()
	}
}

func (m *Metrics) IncDecision(kind string) {
	if m != nil {
		m.Decisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.DecisionRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncDeliveryFailure(action string) {
	if m != nil {
		m.DeliveryFailures.WithLabelValues(action).Inc()
	}
}
