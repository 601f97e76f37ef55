package service

import (
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	"github.com/okian/gradebook/internal/domain/scale"
	"github.com/okian/gradebook/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of per-student workers. One runs every
// student on the calling goroutine.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithRevisionHistory bounds the number of revisions kept for undo.
func WithRevisionHistory(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.revisionHistory = n
		}
	}
}

// WithTableOptions sets the options of every table the service reads.
func WithTableOptions(opts ...gradebook.Option) Option {
	return func(s *Service) {
		s.tableOpts = append(s.tableOpts, opts...)
	}
}

// WithDropSearch sets the exhaustive candidate limit of drop policies and
// what happens past it.
func WithDropSearch(limit int, fallback policy.Fallback) Option {
	return func(s *Service) {
		if limit > 0 {
			s.dropLimit = limit
		}
		s.dropFallback = fallback
	}
}

// WithRobustOptions sets the options used by RobustScale.
func WithRobustOptions(opts ...scale.RobustOption) Option {
	return func(s *Service) {
		s.robustOpts = append(s.robustOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// FromConfig maps process configuration onto service options.
func FromConfig(cfg *config.Config) []Option {
	fallback, _ := policy.ParseFallback(cfg.DropFallback)
	placement, _ := scale.ParsePlacement(cfg.RobustPlacement)
	return []Option{
		WithWorkerCount(cfg.WorkerCount),
		WithRevisionHistory(cfg.RevisionHistory),
		WithTableOptions(
			gradebook.WithLatenessFudge(cfg.LatenessFudge()),
			gradebook.WithWeightTolerance(cfg.WeightTolerance),
			gradebook.WithMissingAsZero(cfg.MissingAsZero),
		),
		WithDropSearch(cfg.DropExhaustiveLimit, fallback),
		WithRobustOptions(
			scale.WithTolerance(cfg.RobustTolerance),
			scale.WithMinGap(cfg.RobustMinGap),
			scale.WithPlacement(placement),
		),
	}
}

// WithTracer sets the tracer for course runs and policy spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}
