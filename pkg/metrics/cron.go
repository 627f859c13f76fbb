package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CronJobMetrics covers the cron worker: per-job outcomes and latency, the
// last time each job succeeded, and cycles skipped because another replica
// held the lock.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

// NewCronJobMetrics registers on reg. With a nil reg the collectors still
// work but are not exported.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	f := promauto.With(reg)
	return &CronJobMetrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stockyard_cron_job_runs_total",
			Help: "Cron job executions by outcome.",
		}, []string{"job", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockyard_cron_job_duration_seconds",
			Help:    "Wall time of one cron job execution.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockyard_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the most recent successful run.",
		}, []string{"job"}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "stockyard_cron_cycles_skipped_total",
			Help: "Cycles skipped because the cron lock was held elsewhere.",
		}),
	}
}

// ObserveRun records one execution of job. A nil err counts as success.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, OutcomeError).Inc()
		return
	}
	c.runs.WithLabelValues(job, OutcomeOK).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func (c *CronJobMetrics) IncSkipped() {
	if c == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
