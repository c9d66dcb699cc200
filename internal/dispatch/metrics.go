package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes dispatcher health. Dead letters are the number operators
// alert on: a growing count means a collaborator is not receiving events.
type Metrics struct {
	Published       prometheus.Counter
	PublishFailures prometheus.Counter
	DeadLetters     prometheus.Counter
	PublishDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "disha_dispatch_published_total",
			Help: "Transition events acknowledged by the broker",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "disha_dispatch_publish_failures_total",
			Help: "Failed publish attempts (retried with backoff)",
		}),
		DeadLetters: promauto.NewCounter(prometheus.CounterOpts{
			Name: "disha_dispatch_dead_letters_total",
			Help: "Events moved to the dead-letter queue after exhausting retries",
		}),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "disha_dispatch_publish_duration_seconds",
			Help:    "Latency of broker publishes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
