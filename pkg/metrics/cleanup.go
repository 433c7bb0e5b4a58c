package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CleanupMetrics records outcomes of cleanup runs.
type CleanupMetrics struct {
	duration   *prometheus.HistogramVec
	deleted    *prometheus.CounterVec
	spaceFreed *prometheus.CounterVec
	success    *prometheus.CounterVec
	failure    *prometheus.CounterVec
}

// NewCleanupMetrics registers the cleanup metrics on the provided registerer.
func NewCleanupMetrics(reg prometheus.Registerer) *CleanupMetrics {
	if reg == nil {
		return &CleanupMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cleanup_run_duration_seconds",
		Help:    "Duration of cleanup runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation_type", "dry_run"})
	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_files_deleted_total",
		Help: "Files removed by cleanup runs.",
	}, []string{"operation_type"})
	spaceFreed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_space_freed_bytes_total",
		Help: "Storage bytes reclaimed by cleanup runs.",
	}, []string{"operation_type"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_run_success_total",
		Help: "Cleanup runs that reached completed state.",
	}, []string{"operation_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cleanup_run_failure_total",
		Help: "Cleanup runs that reached failed state.",
	}, []string{"operation_type"})
	reg.MustRegister(duration, deleted, spaceFreed, success, failure)
	return &CleanupMetrics{
		duration:   duration,
		deleted:    deleted,
		spaceFreed: spaceFreed,
		success:    success,
		failure:    failure,
	}
}

// ObserveRun records the duration of a run.
func (c *CleanupMetrics) ObserveRun(operationType string, dryRun bool, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(operationType), boolLabel(dryRun)).Observe(duration.Seconds())
}

// AddDeleted accumulates deleted files and freed bytes.
func (c *CleanupMetrics) AddDeleted(operationType string, files int, bytes int64) {
	if c == nil || c.deleted == nil {
		return
	}
	c.deleted.WithLabelValues(normalizeLabel(operationType)).Add(float64(files))
	c.spaceFreed.WithLabelValues(normalizeLabel(operationType)).Add(float64(bytes))
}

// IncSuccess increments the success counter.
func (c *CleanupMetrics) IncSuccess(operationType string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(operationType)).Inc()
}

// IncFailure increments the failure counter.
func (c *CleanupMetrics) IncFailure(operationType string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(operationType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
