// Package metrics holds the Prometheus instruments of the caching client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cacheclient"

// Revalidation outcomes.
const (
	OutcomeUpdated     = "updated"
	OutcomeValidated   = "validated"
	OutcomeOversized   = "oversized"
	OutcomeNotStorable = "not_storable"
	OutcomeFailed      = "failed"
	OutcomeRejected    = "rejected"
)

type Metrics struct {
	Responses     *prometheus.CounterVec
	Revalidations *prometheus.CounterVec
	OriginFetches *prometheus.CounterVec
	LeaseWait     prometheus.Histogram
}

// New creates the instruments and registers them with reg.
// A nil reg uses a private registry, so that several clients can coexist.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses returned to callers, by cache response status.",
		}, []string{"status"}),
		Revalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revalidations_total",
			Help:      "Background revalidations, by outcome.",
		}, []string{"outcome"}),
		OriginFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "origin_fetches_total",
			Help:      "Exchanges with the origin, by path (sync or async) and result.",
		}, []string{"path", "result"}),
		LeaseWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_lease_wait_seconds",
			Help:      "Time spent waiting for a pooled connection.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
	}
	reg.MustRegister(m.Responses, m.Revalidations, m.OriginFetches, m.LeaseWait)
	return m
}

// RegisterGauges registers gauges whose values are read from the given
// functions at collection time.
func RegisterGauges(reg prometheus.Registerer, gauges map[string]func() float64) {
	if reg == nil {
		return
	}
	for name, fn := range gauges {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      "Current value of " + name + ".",
		}, fn))
	}
}
