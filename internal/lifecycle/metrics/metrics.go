package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the lifecycle module. Rejections are
// labelled by reason class so dashboards can separate "guards doing their
// job" from version-conflict churn.
type Metrics struct {
	TransitionsAccepted *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	GuardFailures       *prometheus.CounterVec
	IntakesCreated      prometheus.Counter
	TransitionDuration  prometheus.Histogram
}

// New creates a Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		TransitionsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_transitions_accepted_total",
			Help: "Accepted transitions by lifecycle axis",
		}, []string{"axis"}),
		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_transitions_rejected_total",
			Help: "Rejected transition attempts by rejection class",
		}, []string{"axis", "reason"}),
		GuardFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "disha_guard_failures_total",
			Help: "Individual guard failures by guard name",
		}, []string{"guard"}),
		IntakesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "disha_intakes_created_total",
			Help: "Candidates registered through intake",
		}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "disha_transition_duration_seconds",
			Help:    "Duration of RequestTransition including the commit",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveTransition records the duration of a transition attempt.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}
