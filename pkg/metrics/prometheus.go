// Package metrics provides Prometheus metrics for the gradebook engine.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the gradebook.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Table shape
	studentCount    prometheus.Gauge
	assignmentCount prometheus.Gauge
	revisionCount   prometheus.Gauge

	// Policy pipeline
	policiesApplied *prometheus.CounterVec
	policyFailures  *prometheus.CounterVec
	policyDuration  *prometheus.HistogramVec
	notesWritten    *prometheus.CounterVec

	// Drop optimizer
	dropSubsetsEvaluated prometheus.Counter
	dropHeuristicUsed    prometheus.Counter

	// Aggregation
	aggregationDuration prometheus.Histogram
	undefinedScores     *prometheus.CounterVec

	// Scale
	robustThresholdsMoved prometheus.Counter

	// IO
	rowsRead    *prometheus.CounterVec
	rowsWritten *prometheus.CounterVec

	// Worker pool
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradebook",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics. A disabled manager
// builds them without registering anything.
func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	reg := m.registry
	if !m.enabled {
		reg = nil
	}
	auto := promauto.With(reg)
	labels := prometheus.Labels(m.constLabels)

	m.studentCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "students",
		Help: "Number of students in the current table revision",
	})
	m.assignmentCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "assignments",
		Help: "Number of assignments in the current table revision",
	})
	m.revisionCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "revisions",
		Help: "Number of table revisions retained for undo",
	})

	m.policiesApplied = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "policies_applied_total",
		Help: "Policies committed, by policy",
	}, []string{"policy"})
	m.policyFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "policy_failures_total",
		Help: "Policies rejected before commit, by policy and error kind",
	}, []string{"policy", "kind"})
	m.policyDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "policy_duration_seconds",
		Help:    "Time spent applying a policy",
		Buckets: m.histogramBuckets,
	}, []string{"policy"})
	m.notesWritten = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "notes_written_total",
		Help: "Student notes appended by policies, by channel",
	}, []string{"channel"})

	m.dropSubsetsEvaluated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "drop_subsets_evaluated_total",
		Help: "Candidate drop subsets scored by the drop optimizer",
	})
	m.dropHeuristicUsed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "drop_heuristic_fallbacks_total",
		Help: "Students whose drops were chosen by the greedy search instead of the exhaustive one",
	})

	m.aggregationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "aggregation_duration_seconds",
		Help:    "Time spent aggregating a table",
		Buckets: m.histogramBuckets,
	})
	m.undefinedScores = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "undefined_scores_total",
		Help: "Scores left undefined for lack of a denominator, by level",
	}, []string{"level"})

	m.robustThresholdsMoved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "robust_thresholds_moved_total",
		Help: "Scale thresholds moved into a score gap",
	})

	m.rowsRead = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "rows_read_total",
		Help: "Rows read by IO adapters, by format",
	}, []string{"format"})
	m.rowsWritten = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "rows_written_total",
		Help: "Rows written by IO adapters, by format",
	}, []string{"format"})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "worker_active_count",
		Help: "Workers currently processing per-student tasks",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    "worker_processing_latency_milliseconds",
		Help:    "Per-task processing latency in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100, 500},
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "worker_errors_total",
		Help: "Per-student tasks that returned an error",
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: "errors_by_component_total",
		Help: "Errors by component and error kind",
	}, []string{"component", "kind"})
}

// UpdateTableSize sets the student and assignment gauges.
func UpdateTableSize(students, assignments int) {
	globalManager.studentCount.Set(float64(students))
	globalManager.assignmentCount.Set(float64(assignments))
}

// UpdateRevisionCount sets the number of retained revisions.
func UpdateRevisionCount(count int) {
	globalManager.revisionCount.Set(float64(count))
}

// RecordPolicyApplied records a committed policy and how long it took.
func RecordPolicyApplied(policy string, d time.Duration) {
	globalManager.policiesApplied.WithLabelValues(policy).Inc()
	globalManager.policyDuration.WithLabelValues(policy).Observe(d.Seconds())
}

// RecordPolicyFailure records a policy rejected before commit.
func RecordPolicyFailure(policy, kind string) {
	globalManager.policyFailures.WithLabelValues(policy, kind).Inc()
}

// RecordNote records a note appended on channel.
func RecordNote(channel string) {
	globalManager.notesWritten.WithLabelValues(channel).Inc()
}

// RecordDropSubsetsEvaluated adds n scored drop subsets.
func RecordDropSubsetsEvaluated(n int) {
	globalManager.dropSubsetsEvaluated.Add(float64(n))
}

// RecordDropHeuristicFallback records one student handled by the greedy search.
func RecordDropHeuristicFallback() {
	globalManager.dropHeuristicUsed.Inc()
}

// RecordAggregation records the time spent aggregating a table.
func RecordAggregation(d time.Duration) {
	globalManager.aggregationDuration.Observe(d.Seconds())
}

// RecordUndefinedScore records an undefined score at level (group or overall).
func RecordUndefinedScore(level string) {
	globalManager.undefinedScores.WithLabelValues(level).Inc()
}

// RecordRobustThresholdsMoved adds n thresholds moved by the robust search.
func RecordRobustThresholdsMoved(n int) {
	globalManager.robustThresholdsMoved.Add(float64(n))
}

// RecordRowsRead adds n rows read in format.
func RecordRowsRead(format string, n int) {
	globalManager.rowsRead.WithLabelValues(format).Add(float64(n))
}

// RecordRowsWritten adds n rows written in format.
func RecordRowsWritten(format string, n int) {
	globalManager.rowsWritten.WithLabelValues(format).Add(float64(n))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error by component and kind.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorRateByComponent.WithLabelValues(component, kind).Inc()
}

// Configure replaces the global manager with one built from opts on a fresh
// registry. It must run before any recorder is called.
func Configure(opts ...Option) {
	reg := prometheus.NewRegistry()
	customRegistry = reg
	globalManager = NewManager(append(opts, WithRegistry(reg))...)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	return nil
}
