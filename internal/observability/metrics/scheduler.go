package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SchedulerJobReasonDeadlineExceeded = "deadline_exceeded"
	SchedulerJobReasonCanceled         = "canceled"
	SchedulerJobReasonUnknown          = "unknown"
)

// SchedulerMetrics captures background sweeper health.
type SchedulerMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobTimeouts *prometheus.CounterVec
	jobErrors   *prometheus.CounterVec
	processed   *prometheus.CounterVec
	skipped     *prometheus.CounterVec
}

// NewSchedulerMetrics registers scheduler instruments on the default registerer.
func NewSchedulerMetrics(cfg Config) *SchedulerMetrics {
	return NewSchedulerMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewSchedulerMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tandem"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tandem_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "tandem_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tandem_scheduler_job_timeouts_total",
			Help:        "Scheduler jobs that hit their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tandem_scheduler_job_errors_total",
			Help:        "Scheduler job failures by reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tandem_scheduler_processed_total",
			Help:        "Rows moved by scheduler jobs.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "tandem_scheduler_job_skipped_total",
			Help:        "Scheduler runs skipped because another replica held the job lock.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}
	m.jobRuns = registerOrExisting(registerer, m.jobRuns)
	m.jobDuration = registerOrExisting(registerer, m.jobDuration)
	m.jobTimeouts = registerOrExisting(registerer, m.jobTimeouts)
	m.jobErrors = registerOrExisting(registerer, m.jobErrors)
	m.processed = registerOrExisting(registerer, m.processed)
	m.skipped = registerOrExisting(registerer, m.skipped)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, SchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) AddProcessed(job string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.processed.WithLabelValues(job).Add(float64(count))
}

func (m *SchedulerMetrics) IncSkipped(job string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(job).Inc()
}

// SchedulerJobReason maps a job error onto a bounded label value.
func SchedulerJobReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return SchedulerJobReasonDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return SchedulerJobReasonCanceled
	default:
		return SchedulerJobReasonUnknown
	}
}
