package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// Registration failures are swallowed: a duplicate registration must never
// take down the scheduler.
type PrometheusSink struct {
	ticksTotal      prometheus.Counter
	tickErrorsTotal prometheus.Counter
	tickDuration    prometheus.Histogram
	dueEntries      prometheus.Histogram

	dispatchTotal *prometheus.CounterVec

	supervisorStates *prometheus.CounterVec
}

// NewPrometheusSink creates a sink registered against reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thorn_scheduler_ticks_total",
			Help: "Total number of scheduler evaluation passes.",
		}),
		tickErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thorn_scheduler_tick_errors_total",
			Help: "Total number of evaluation passes that failed to scan the store.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thorn_scheduler_tick_duration_seconds",
			Help:    "Duration of each evaluation pass in seconds.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		dueEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "thorn_scheduler_due_entries",
			Help:    "Number of due entries found per evaluation pass.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 100},
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thorn_scheduler_dispatch_total",
			Help: "Dispatch outcomes by entry kind.",
		}, []string{"kind", "outcome"}),
		supervisorStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thorn_supervisor_state_transitions_total",
			Help: "Supervisor lifecycle state transitions.",
		}, []string{"state"}),
	}

	for _, collector := range []prometheus.Collector{
		s.ticksTotal, s.tickErrorsTotal, s.tickDuration, s.dueEntries,
		s.dispatchTotal, s.supervisorStates,
	} {
		_ = reg.Register(collector)
	}
	return s
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, due int, err error) {
	s.ticksTotal.Inc()
	s.tickDuration.Observe(duration.Seconds())
	s.dueEntries.Observe(float64(due))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) DispatchOutcome(kind, outcome string) {
	s.dispatchTotal.WithLabelValues(kind, outcome).Inc()
}

func (s *PrometheusSink) SupervisorState(state string) {
	s.supervisorStates.WithLabelValues(state).Inc()
}
