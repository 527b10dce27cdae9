package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the cooldown ledger and its sweeps.
type Metrics struct {
	Blocks        prometheus.Counter
	Swept         prometheus.Counter
	SweepDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Blocks: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_cooldown_blocks_total",
			Help: "Cooldowns set by deny-class decisions",
		}),
		Swept: f.NewCounter(prometheus.CounterOpts{
			Name: "warden_cooldown_swept_total",
			Help: "Expired cooldown entries evicted by the reaper",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_cooldown_sweep_duration_seconds",
			Help:    "Duration of full ledger sweeps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

func (m *Metrics) IncBlocks() {
	if m != nil {
		m.Blocks.Inc()
	}
}

// ObserveSweep records one sweep that started at start and evicted n entries.
func (m *Metrics) ObserveSweep(start time.Time, n int) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
	m.Swept.Add(float64(n))
}
