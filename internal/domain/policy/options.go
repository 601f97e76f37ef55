package policy

import (
	"context"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder hands every committed revision to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithBeforeCommit runs fn on each revision after its policy succeeds and
// before it is committed. An error rejects the revision.
func WithBeforeCommit(fn func(ctx context.Context, t *gradebook.Table) error) Option {
	return func(e *Engine) {
		if fn != nil {
			e.beforeCommit = fn
		}
	}
}

// WithTracer sets the tracer used for policy spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}
