package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cronSubsystem = "cron"

	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

// CronJobMetrics counts cron job runs by outcome and times the ones that ran.
// A nil *CronJobMetrics is a valid no-op.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: cronSubsystem,
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: cronSubsystem,
			Name:      "job_runs_total",
			Help:      "Cron job runs by result (success, failure, skipped when another worker held the lock).",
		}, []string{"job", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.duration, m.runs)
	}
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) { c.inc(job, resultSuccess) }

func (c *CronJobMetrics) IncFailure(job string) { c.inc(job, resultFailure) }

func (c *CronJobMetrics) IncSkipped(job string) { c.inc(job, resultSkipped) }

func (c *CronJobMetrics) inc(job, result string) {
	if c == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}
