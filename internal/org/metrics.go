package org

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the organization lifecycle.
type Metrics struct {
	Registered prometheus.Counter
	Accepted   prometheus.Counter
	Synced     *prometheus.CounterVec
}

// NewMetrics registers the lifecycle metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_org_registered_total",
			Help: "Total organization registrations filed",
		}),
		Accepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "agora_org_accepted_total",
			Help: "Total organizations accepted as electors",
		}),
		Synced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_org_synced_total",
			Help: "Total external sync reconciliations, by outcome",
		}, []string{"outcome"}),
	}
}

// IncrementRegistered records a filed registration.
func (m *Metrics) IncrementRegistered() {
	m.Registered.Inc()
}

// IncrementAccepted records an accepted organization.
func (m *Metrics) IncrementAccepted() {
	m.Accepted.Inc()
}

// IncrementSynced records a reconciliation outcome, "clean" or "partial".
func (m *Metrics) IncrementSynced(outcome string) {
	m.Synced.WithLabelValues(outcome).Inc()
}
