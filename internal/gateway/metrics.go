package gateway

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks outbound publish outcomes.
type Metrics struct {
	Published  prometheus.Counter
	Retried    prometheus.Counter
	Dropped    prometheus.Counter
	NoEndpoint prometheus.Counter
}

// NewMetrics creates the gateway counters and registers them when reg is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podium_gateway_published_total",
			Help: "Events delivered to the remote UI",
		}),
		Retried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podium_gateway_retries_total",
			Help: "Publish attempts that failed and were retried",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podium_gateway_dropped_total",
			Help: "Events given up on after the retry budget",
		}),
		NoEndpoint: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podium_gateway_no_endpoint_total",
			Help: "Publishes resolved as no-ops with no UI attached",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Published, m.Retried, m.Dropped, m.NoEndpoint)
	}
	return m
}
