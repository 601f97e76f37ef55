// Package service wires reading, the policy pipeline, revision history and
// grading into the operations the command line runs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/okian/gradebook/internal/adapters/csvio"
	"github.com/okian/gradebook/internal/adapters/report"
	"github.com/okian/gradebook/internal/adapters/repository"
	"github.com/okian/gradebook/internal/adapters/worker"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	"github.com/okian/gradebook/internal/domain/scale"
	"github.com/okian/gradebook/internal/domain/scoring"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Grades is everything derived from one revision.
type Grades struct {
	Table  *gradebook.Table
	Result *scoring.Result
	// Letters holds one letter per student row, empty where the overall
	// score is undefined and no override exists.
	Letters []string
	Report  *report.Report
}

// Service owns the revision history of one course.
type Service struct {
	mu sync.RWMutex

	// Core components
	history    *repository.RevisionStore
	pool       *worker.Pool
	engine     *policy.Engine
	aggregator *scoring.Aggregator

	// Configuration
	workerCount     int
	revisionHistory int
	tableOpts       []gradebook.Option
	dropLimit       int
	dropFallback    policy.Fallback
	robustOpts      []scale.RobustOption

	// groups are re-attached whenever a policy resets them.
	groups []gradebook.GroupSpec

	// State
	started bool

	logger logger.Logger
	tracer trace.Tracer
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		revisionHistory: repository.DefaultCapacity,
		dropLimit:       policy.DefaultExhaustiveLimit,
		dropFallback:    policy.FallbackError,
		tracer:          otel.Tracer("github.com/okian/gradebook/internal/app"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the history, the policy engine and, with more than one
// worker, the drop worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.history = repository.NewRevisionStore(repository.WithCapacity(s.revisionHistory))
	if s.workerCount > 1 {
		s.pool = worker.NewPool(s.workerCount, worker.WithName("drop"))
		s.pool.Start(ctx)
	}
	s.engine = policy.NewEngine(
		policy.WithRecorder(s.history),
		policy.WithBeforeCommit(s.regroup),
		policy.WithTracer(s.tracer),
	)
	s.aggregator = scoring.NewAggregator()

	s.started = true
	s.logger.Info(ctx, "gradebook service started",
		logger.Int("workers", s.workerCount),
		logger.Int("history", s.revisionHistory),
		logger.Int("dropLimit", s.dropLimit),
	)
	return nil
}

// Stop shuts the worker pool down. The history stays readable.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
			return err
		}
	}
	s.logger.Info(ctx, "gradebook service stopped")
	return nil
}

// Load reads every file, combines them into one table and commits it as a
// new base revision.
func (s *Service) Load(ctx context.Context, f csvio.Format, paths []string, opts ...csvio.Option) (*gradebook.Table, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}
	opts = append([]csvio.Option{csvio.WithTableOptions(s.tableOpts...)}, opts...)
	tables := make([]*gradebook.Table, 0, len(paths))
	for _, p := range paths {
		t, err := csvio.ReadFile(ctx, f, p, opts...)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	t, err := gradebook.Combine(tables...)
	if err != nil {
		return nil, err
	}
	if err := s.SetTable(ctx, "load", t); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "grades loaded",
		logger.Int("files", len(paths)),
		logger.Int("students", t.NumStudents()),
		logger.Int("assignments", t.NumAssignments()),
	)
	return t.Clone(), nil
}

// SetTable commits t as a new revision. Pending groups are attached when
// every assignment they name exists.
func (s *Service) SetTable(ctx context.Context, label string, t *gradebook.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotStarted
	}
	t = t.Clone()
	if err := s.regroup(ctx, t); err != nil {
		return err
	}
	if _, err := s.history.Append(ctx, label, t); err != nil {
		return err
	}
	metrics.UpdateTableSize(t.NumStudents(), t.NumAssignments())
	return nil
}

// Current returns a copy of the latest revision.
func (s *Service) Current(ctx context.Context) (*gradebook.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked(ctx)
}

func (s *Service) currentLocked(ctx context.Context) (*gradebook.Table, error) {
	if !s.started && s.history == nil {
		return nil, ErrNotStarted
	}
	rev, err := s.history.Latest(ctx)
	if errors.Is(err, repository.ErrEmptyHistory) {
		return nil, ErrNoTable
	}
	if err != nil {
		return nil, err
	}
	return rev.Table.Clone(), nil
}

// SetGroups configures the grading groups. Groups naming assignments that
// do not exist yet, such as the result of a later take_best, stay pending
// and are attached by the first revision that holds them all.
func (s *Service) SetGroups(ctx context.Context, specs ...gradebook.GroupSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.currentLocked(ctx)
	if err != nil {
		return err
	}
	err = t.SetGroups(specs...)
	switch {
	case errors.Is(err, gradebook.ErrScope):
		s.groups = specs
		s.logger.Debug(ctx, "grading groups pending", logger.Error(err))
		return nil
	case err != nil:
		return err
	}
	s.groups = specs
	_, err = s.history.Append(ctx, "groups", t)
	return err
}

// regroup re-attaches the configured groups to a revision that lost them.
// It runs with the service lock held.
func (s *Service) regroup(_ context.Context, t *gradebook.Table) error {
	if t.HasGroups() || len(s.groups) == 0 {
		return nil
	}
	if err := t.SetGroups(s.groups...); err != nil && !errors.Is(err, gradebook.ErrScope) {
		return err
	}
	return nil
}

// SetScale attaches a letter scale to a new revision.
func (s *Service) SetScale(ctx context.Context, sc scale.Scale) error {
	return s.mutate(ctx, "scale", func(t *gradebook.Table) error { return t.SetScale(sc) })
}

// SetLetterOverride pins a student's letter in a new revision.
func (s *Service) SetLetterOverride(ctx context.Context, studentID, letter string) error {
	return s.mutate(ctx, "override", func(t *gradebook.Table) error { return t.SetLetterOverride(studentID, letter) })
}

func (s *Service) mutate(ctx context.Context, label string, fn func(t *gradebook.Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.currentLocked(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	_, err = s.history.Append(ctx, label, t)
	return err
}

// Apply runs the policies against the latest revision. Every policy that
// succeeds is committed; on error the history ends at the last success.
func (s *Service) Apply(ctx context.Context, policies ...policy.Policy) (*gradebook.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	ps := make([]policy.Policy, len(policies))
	for i, p := range policies {
		ps[i] = s.withDefaults(p)
	}
	next, err := s.engine.Apply(ctx, cur, ps...)
	if err != nil {
		return nil, err
	}
	metrics.UpdateTableSize(next.NumStudents(), next.NumAssignments())
	return next.Clone(), nil
}

// withDefaults hands drop policies the service's search settings and pool.
func (s *Service) withDefaults(p policy.Policy) policy.Policy {
	d, ok := p.(policy.DropMostFavorable)
	if !ok {
		return p
	}
	if d.ExhaustiveLimit == 0 {
		d.ExhaustiveLimit = s.dropLimit
		d.Fallback = s.dropFallback
	}
	if d.Runner == nil && s.pool != nil {
		d.Runner = s.pool
	}
	return d
}

// Grade scores the latest revision. Undefined scores do not fail it; they
// are listed by Result.Err and leave the student without a letter.
func (s *Service) Grade(ctx context.Context) (*Grades, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if !t.HasGroups() && len(s.groups) > 0 {
		if err := t.SetGroups(s.groups...); err != nil {
			return nil, fmt.Errorf("grading groups: %w", err)
		}
	}
	res, err := s.aggregator.Aggregate(ctx, t)
	if err != nil {
		return nil, err
	}
	letters, err := res.Letters(t.Scale(), t.LetterOverrides())
	if letters == nil {
		return nil, err
	}
	if incomplete := scoring.Incomplete(res.Err()); len(incomplete) > 0 {
		s.logger.Warn(ctx, "some scores are undefined", logger.Int("count", len(incomplete)))
	}
	rep, err := report.Build(t, res, letters)
	if err != nil {
		return nil, err
	}
	return &Grades{Table: t, Result: res, Letters: letters, Report: rep}, nil
}

// RobustScale moves the thresholds of the current scale into gaps of the
// overall score distribution and commits the result.
func (s *Service) RobustScale(ctx context.Context) (scale.Scale, error) {
	grades, err := s.Grade(ctx)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, 0, len(grades.Result.Overall))
	for _, o := range grades.Result.Overall {
		if v, ok := o.Get(); ok {
			scores = append(scores, v)
		}
	}
	base := grades.Table.Scale()
	robust, err := scale.FindRobust(scores, base, s.robustOpts...)
	if err != nil {
		return nil, err
	}
	moved := 0
	for i := range base {
		if robust[i].Cutoff != base[i].Cutoff {
			moved++
		}
	}
	metrics.RecordRobustThresholdsMoved(moved)
	s.logger.Info(ctx, "robust scale computed", logger.Int("moved", moved), logger.Int("scores", len(scores)))
	if err := s.mutate(ctx, "robust_scale", func(t *gradebook.Table) error { return t.SetScale(robust) }); err != nil {
		return nil, err
	}
	return robust, nil
}

// Undo discards the latest revision and returns the one now current.
func (s *Service) Undo(ctx context.Context) (repository.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return repository.Revision{}, ErrNotStarted
	}
	rev, err := s.history.Undo(ctx)
	if err != nil {
		return repository.Revision{}, err
	}
	s.logger.Info(ctx, "revision undone", logger.String("current", rev.Label), logger.Int("seq", rev.Seq))
	return rev, nil
}

// History lists the kept revisions, oldest first.
func (s *Service) History(ctx context.Context) []repository.Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.history == nil {
		return nil
	}
	return s.history.List(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"revisionHistory":  s.revisionHistory,
		"dropLimit":        s.dropLimit,
		"groupsConfigured": len(s.groups) > 0,
	}
	if s.history != nil {
		stats["revisions"] = s.history.Count(ctx)
		if rev, err := s.history.Latest(ctx); err == nil {
			stats["students"] = rev.Table.NumStudents()
			stats["assignments"] = rev.Table.NumAssignments()
			stats["groupsAttached"] = rev.Table.HasGroups()
		}
	}
	return stats
}
