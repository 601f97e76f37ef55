package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CourseLabel is the constant label WithCourse sets.
const CourseLabel = "course"

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace replaces the "gradebook" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "engine" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets sets the buckets of the policy, aggregation and worker
// histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithCourse labels every series with the course it was recorded for.
func WithCourse(name string) Option {
	return WithConstLabel(CourseLabel, name)
}

// WithConstLabel adds a constant label to every series. Empty values are
// ignored since Prometheus treats them as an absent label.
func WithConstLabel(key, value string) Option {
	return func(m *Manager) {
		if key != "" && value != "" {
			m.constLabels[key] = value
		}
	}
}

// WithRegistry registers the metrics on r.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Disabled builds the metrics without registering them.
func Disabled() Option {
	return func(m *Manager) {
		m.enabled = false
	}
}
