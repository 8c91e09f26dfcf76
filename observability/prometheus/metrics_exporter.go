package prometheus

import (
	"errors"
	"fmt"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskSuccessTotal       *prom.CounterVec
	taskFailureTotal       *prom.CounterVec
	attemptDurationSeconds *prom.HistogramVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers the outcome counters and the
// attempt duration histogram. An empty namespace leaves metric names unprefixed.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	successVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_success_total",
		Help:      "Total number of passing task attempts.",
	}, []string{"task_type"})
	failureVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failure_total",
		Help:      "Total number of failing task attempts.",
	}, []string{"task_type"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_attempt_duration_seconds",
		Help:      "Task attempt evaluation duration in seconds.",
		Buckets:   buckets,
	}, []string{"task_type"})

	var err error
	if successVec, err = registerCollector(reg, successVec); err != nil {
		return nil, err
	}
	if failureVec, err = registerCollector(reg, failureVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskSuccessTotal:       successVec,
		taskFailureTotal:       failureVec,
		attemptDurationSeconds: durationVec,
	}, nil
}

// Record increments the counter matching kind for taskType.
func (m *MetricsExporter) Record(taskType string, kind matcher.OutcomeKind) {
	if kind == matcher.Pass {
		m.RecordSuccess(taskType)
		return
	}
	m.RecordFailure(taskType)
}

// RecordSuccess records a passing attempt.
func (m *MetricsExporter) RecordSuccess(taskType string) {
	if m == nil {
		return
	}
	m.taskSuccessTotal.WithLabelValues(normalizeLabel(taskType, "unknown")).Inc()
}

// RecordFailure records a failing attempt.
func (m *MetricsExporter) RecordFailure(taskType string) {
	if m == nil {
		return
	}
	m.taskFailureTotal.WithLabelValues(normalizeLabel(taskType, "unknown")).Inc()
}

// RecordAttemptDuration records how long one evaluation took.
func (m *MetricsExporter) RecordAttemptDuration(taskType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.attemptDurationSeconds.WithLabelValues(normalizeLabel(taskType, "unknown")).Observe(duration.Seconds())
}

// Render returns the text exposition of everything g gathers. Families are
// sorted by name and series by label values, so equal state renders equal text.
func Render(g prom.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("gather metrics: %w", err)
	}

	var sb strings.Builder
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&sb, mf); err != nil {
			return "", fmt.Errorf("render %s: %w", mf.GetName(), err)
		}
	}
	return sb.String(), nil
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
