package projection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes builder health. Apply lag is what operators watch: a
// growing gap between event timestamps and apply time means dashboards are
// falling behind the engine.
type Metrics struct {
	Applies     *prometheus.CounterVec
	Skipped     *prometheus.CounterVec
	Rebuilds    *prometheus.CounterVec
	ApplyLag    prometheus.Histogram
	MalformedIn prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Applies: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_projection_applies_total",
			Help: "View mutations applied from the event streams",
		}, []string{"view"}),
		Skipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_projection_skipped_total",
			Help: "Deduplicated redeliveries dropped before apply",
		}, []string{"view"}),
		Rebuilds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_projection_rebuilds_total",
			Help: "Full view rebuilds by replay",
		}, []string{"view"}),
		ApplyLag: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "disha_projection_apply_lag_seconds",
			Help:    "Delay between event timestamp and view apply",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		MalformedIn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "disha_projection_malformed_events_total",
			Help: "Events dropped because the payload failed to decode",
		}),
	}
}
