package phase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for phase transitions.
type Metrics struct {
	PhaseApplied *prometheus.CounterVec
}

// NewMetrics registers the phase metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		PhaseApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_phase_applied_total",
			Help: "Total phase transitions applied, by phase",
		}, []string{"phase"}),
	}
}

// IncrementPhaseApplied records a successful phase transition.
func (m *Metrics) IncrementPhaseApplied(phase string) {
	m.PhaseApplied.WithLabelValues(phase).Inc()
}
