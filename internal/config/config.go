// Package config defines process configuration and the course file.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Functions that load anything accept context.Context first.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// LatenessFudgeSeconds is how late a submission may be and still count as on time.
	LatenessFudgeSeconds int `koanf:"lateness_fudge_seconds" validate:"gte=0"`

	// WeightTolerance bounds how far regular group weights may sum away from one.
	WeightTolerance float64 `koanf:"weight_tolerance" validate:"gt=0,lt=1"`

	// MissingAsZero scores missing entries as zero.
	MissingAsZero bool `koanf:"missing_as_zero"`

	// DropExhaustiveLimit caps the candidates searched exhaustively per student.
	DropExhaustiveLimit int `koanf:"drop_exhaustive_limit" validate:"gte=1,lte=30"`

	// DropFallback is "error" or "greedy" past the exhaustive limit.
	DropFallback string `koanf:"drop_fallback" validate:"oneof=error greedy"`

	// WorkerCount sets the number of per-student workers; 1 runs sequentially.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	// RevisionHistory bounds the number of table revisions kept for undo.
	RevisionHistory int `koanf:"revision_history" validate:"gte=1"`

	// MetricsFile, when set, receives the metrics in Prometheus text format on exit.
	MetricsFile string `koanf:"metrics_file"`

	// Robust threshold search.
	RobustTolerance float64 `koanf:"robust_tolerance" validate:"gte=0,lte=0.5"`
	RobustMinGap    float64 `koanf:"robust_min_gap" validate:"gte=0,lte=0.5"`
	RobustPlacement string  `koanf:"robust_placement" validate:"oneof=midpoint upper_edge round_up"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		LatenessFudgeSeconds: 300,
		WeightTolerance:      1e-6,
		DropExhaustiveLimit:  20,
		DropFallback:         "error",
		WorkerCount:          runtime.NumCPU(),
		RevisionHistory:      64,
		RobustTolerance:      0.02,
		RobustMinGap:         0.01,
		RobustPlacement:      "midpoint",
	}
}

// LatenessFudge returns LatenessFudgeSeconds as a duration.
func (c *Config) LatenessFudge() time.Duration {
	return time.Duration(c.LatenessFudgeSeconds) * time.Second
}
