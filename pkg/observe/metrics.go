// Package observe provides driver observers that export pipeline run
// and task lifecycle data: Prometheus metrics and OpenTelemetry
// traces. Both plug into a run via amadeus.WithObserver and can be
// combined freely.
package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace prefixes all metric names (default "amadeus").
	Namespace string

	// Registerer receives the collectors; defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// DurationBuckets are the histogram buckets for run durations in
	// seconds.
	DurationBuckets []float64
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:  "amadeus",
		Registerer: prometheus.DefaultRegisterer,
		DurationBuckets: []float64{
			0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
		},
	}
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metric name prefix.
func WithNamespace(namespace string) MetricsOption {
	return func(cfg *MetricsConfig) { cfg.Namespace = namespace }
}

// WithRegisterer registers the collectors somewhere other than the
// default registry.
func WithRegisterer(reg prometheus.Registerer) MetricsOption {
	return func(cfg *MetricsConfig) { cfg.Registerer = reg }
}

// WithDurationBuckets sets custom run duration buckets.
func WithDurationBuckets(buckets []float64) MetricsOption {
	return func(cfg *MetricsConfig) { cfg.DurationBuckets = buckets }
}

// Metrics is an amadeus.Observer exporting Prometheus metrics:
//
//	<ns>_runs_total{outcome}         runs finished, by ok/error
//	<ns>_run_duration_seconds        histogram of run wall time
//	<ns>_partitions_total            partitions enumerated
//	<ns>_tasks_total{state}          terminal task states
//	<ns>_tasks_running               tasks currently executing
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	partitions prometheus.Counter
	tasks      *prometheus.CounterVec
	running    prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := DefaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs finished, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of pipeline runs.",
			Buckets:   cfg.DurationBuckets,
		}),
		partitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "partitions_total",
			Help:      "Partitions enumerated across runs.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "tasks_total",
			Help:      "Partition tasks reaching a terminal state.",
		}, []string{"state"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "tasks_running",
			Help:      "Partition tasks currently executing.",
		}),
	}
	cfg.Registerer.MustRegister(m.runs, m.duration, m.partitions, m.tasks, m.running)
	return m
}

// RunStart implements amadeus.Observer.
func (m *Metrics) RunStart(run amadeus.RunInfo) {
	m.partitions.Add(float64(run.Partitions))
}

// TaskTransition implements amadeus.Observer.
func (m *Metrics) TaskTransition(_ amadeus.RunInfo, _ int, state amadeus.TaskState) {
	switch state {
	case amadeus.TaskRunning:
		m.running.Inc()
	case amadeus.TaskDone, amadeus.TaskFailed, amadeus.TaskCancelled:
		m.running.Dec()
		m.tasks.WithLabelValues(state.String()).Inc()
	}
}

// RunEnd implements amadeus.Observer.
func (m *Metrics) RunEnd(_ amadeus.RunInfo, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// Combine fans lifecycle events out to several observers.
func Combine(observers ...amadeus.Observer) amadeus.Observer {
	return multiObserver(observers)
}

type multiObserver []amadeus.Observer

func (m multiObserver) RunStart(run amadeus.RunInfo) {
	for _, o := range m {
		o.RunStart(run)
	}
}

func (m multiObserver) TaskTransition(run amadeus.RunInfo, partition int, state amadeus.TaskState) {
	for _, o := range m {
		o.TaskTransition(run, partition, state)
	}
}

func (m multiObserver) RunEnd(run amadeus.RunInfo, elapsed time.Duration, err error) {
	for _, o := range m {
		o.RunEnd(run, elapsed, err)
	}
}
