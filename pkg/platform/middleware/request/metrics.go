package request

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EndpointLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inkwell_endpoint_latency_seconds",
			Help:    "Latency of front end endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	reg.MustRegister(m.EndpointLatency)
	return m
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
