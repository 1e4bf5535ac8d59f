package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors exported on /metrics.
type Metrics struct {
	// valuation requests by model and outcome
	RequestsTotal *prometheus.CounterVec
	// wall time spent in Monte Carlo simulation
	SimulationSeconds prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "option_pricing",
			Name:      "requests_total",
			Help:      "Total valuation requests",
		}, []string{"model", "status"}),
		SimulationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "option_pricing",
			Name:      "simulation_seconds",
			Help:      "Monte Carlo simulation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.RequestsTotal, m.SimulationSeconds} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
