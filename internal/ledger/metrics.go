package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger writes.
type Metrics struct {
	VotesCast      *prometheus.CounterVec
	SupportToggled *prometheus.CounterVec
}

// NewMetrics registers the ledger metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_votes_cast_total",
			Help: "Total votes cast, by domain",
		}, []string{"domain"}),
		SupportToggled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_support_toggled_total",
			Help: "Total support toggles, by direction",
		}, []string{"direction"}),
	}
}

// IncrementVoteCast records a successful vote.
func (m *Metrics) IncrementVoteCast(domain string) {
	m.VotesCast.WithLabelValues(domain).Inc()
}

// IncrementSupportToggled records a support toggle.
func (m *Metrics) IncrementSupportToggled(on bool) {
	direction := "off"
	if on {
		direction = "on"
	}
	m.SupportToggled.WithLabelValues(direction).Inc()
}
