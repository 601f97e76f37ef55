// Package policy applies grading policies (late penalties, drops, attempt
// and part combination, per-student exceptions) to score tables.
package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Policy mutates a working copy of a table. Apply must validate everything
// before writing; the engine discards the copy on error regardless.
type Policy interface {
	Name() string
	Apply(ctx context.Context, t *gradebook.Table) error
}

// Recorder receives every committed revision.
type Recorder interface {
	Record(ctx context.Context, policy string, t *gradebook.Table) error
}

// Runner runs fn for every index in [0, n) and returns the first error.
// Implementations may run indexes concurrently.
type Runner interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

// Sequential runs indexes in order on the calling goroutine.
type Sequential struct{}

// Run implements Runner.
func (Sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Engine applies policies in caller order. Each policy runs on a clone of
// the current revision; the clone replaces it only when the policy succeeds,
// so a failure leaves the last committed revision untouched.
type Engine struct {
	logger       logger.Logger
	tracer       trace.Tracer
	recorder     Recorder
	beforeCommit func(ctx context.Context, t *gradebook.Table) error
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: logger.Get().Named("policy"),
		tracer: otel.Tracer("github.com/okian/gradebook/internal/domain/policy"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs the policies against t and returns the final revision. t itself
// is never modified. On error the returned table is the last revision that
// committed, and the error names the failing policy.
func (e *Engine) Apply(ctx context.Context, t *gradebook.Table, policies ...Policy) (*gradebook.Table, error) {
	cur := t
	for _, p := range policies {
		next, err := e.applyOne(ctx, cur, p)
		if err != nil {
			return cur, err
		}
		cur = next
	}
	return cur, nil
}

func (e *Engine) applyOne(ctx context.Context, cur *gradebook.Table, p Policy) (*gradebook.Table, error) {
	name := p.Name()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "policy.apply", trace.WithAttributes(
		attribute.String("policy", name),
		attribute.Int("students", cur.NumStudents()),
		attribute.Int("assignments", cur.NumAssignments()),
	))
	defer span.End()

	next := cur.Clone()
	err := p.Apply(ctx, next)
	if err == nil && e.beforeCommit != nil {
		err = e.beforeCommit(ctx, next)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorKind(err))
		metrics.RecordPolicyFailure(name, errorKind(err))
		e.logger.Error(ctx, "policy rejected", logger.String("policy", name), logger.Error(err))
		return nil, fmt.Errorf("policy %s: %w", name, err)
	}

	notes := countNewNotes(cur, next)
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, name, next); err != nil {
			span.RecordError(err)
			metrics.RecordPolicyFailure(name, "record")
			return nil, fmt.Errorf("record %s: %w", name, err)
		}
	}

	took := time.Since(start)
	span.SetAttributes(attribute.Int("notes", notes))
	metrics.RecordPolicyApplied(name, took)
	e.logger.Info(ctx, "policy applied",
		logger.String("policy", name),
		logger.Int("notes", notes),
		logger.Duration("took", took),
	)
	return next, nil
}

// countNewNotes records a metric per note next gained over prev. Rows are
// matched by student id.
func countNewNotes(prev, next *gradebook.Table) int {
	total := 0
	for i := 0; i < next.NumStudents(); i++ {
		before := 0
		if pi, ok := prev.StudentIndex(next.Student(i).ID); ok {
			before = len(prev.Notes(pi))
		}
		notes := next.Notes(i)
		for _, n := range notes[min(before, len(notes)):] {
			metrics.RecordNote(string(n.Channel))
			total++
		}
	}
	return total
}

// Apply runs policies with a default engine.
func Apply(ctx context.Context, t *gradebook.Table, policies ...Policy) (*gradebook.Table, error) {
	return NewEngine().Apply(ctx, t, policies...)
}

// Func adapts a function into a Policy.
type Func struct {
	Label string
	Fn    func(ctx context.Context, t *gradebook.Table) error
}

// Name implements Policy.
func (f Func) Name() string { return f.Label }

// Apply implements Policy.
func (f Func) Apply(ctx context.Context, t *gradebook.Table) error { return f.Fn(ctx, t) }
