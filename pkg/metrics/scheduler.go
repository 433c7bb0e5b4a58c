package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics records scheduler polling cycles.
type SchedulerMetrics struct {
	cycles   *prometheus.CounterVec
	duration prometheus.Histogram
	executed prometheus.Counter
}

// NewSchedulerMetrics registers the scheduler metrics on the provided registerer.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_cycles_total",
		Help: "Scheduler polling cycles by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_cycle_duration_seconds",
		Help:    "Duration of scheduler cycles in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	executed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_schedules_executed_total",
		Help: "Schedules found due and executed.",
	})
	reg.MustRegister(cycles, duration, executed)
	return &SchedulerMetrics{
		cycles:   cycles,
		duration: duration,
		executed: executed,
	}
}

// ObserveCycle records one polling cycle.
func (s *SchedulerMetrics) ObserveCycle(outcome string, duration time.Duration) {
	if s == nil || s.cycles == nil {
		return
	}
	s.cycles.WithLabelValues(normalizeLabel(outcome)).Inc()
	s.duration.Observe(duration.Seconds())
}

// IncExecuted counts one executed schedule.
func (s *SchedulerMetrics) IncExecuted() {
	if s == nil || s.executed == nil {
		return
	}
	s.executed.Inc()
}
