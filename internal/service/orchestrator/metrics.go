package orchestrator

import "github.com/prometheus/client_golang/prometheus"

var (
	repliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_widget_replies_total",
			Help: "Inbound messages by how they were answered.",
		},
		[]string{"source"},
	)
	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_widget_provider_latency_seconds",
			Help:    "Latency of AI provider calls.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"provider", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(repliesTotal, providerLatency)
}

func countReply(source Source) {
	repliesTotal.WithLabelValues(string(source)).Inc()
}

func observeProvider(provider, outcome string, seconds float64) {
	providerLatency.WithLabelValues(provider, outcome).Observe(seconds)
}
