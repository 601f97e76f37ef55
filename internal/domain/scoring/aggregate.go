package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/scale"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// Aggregator derives scores from table revisions.
type Aggregator struct {
	logger logger.Logger
}

// NewAggregator creates an aggregator with configuration options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{logger: logger.Get().Named("scoring")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Result is the read-only set of derived scores for one table revision.
// Slices are indexed by student row, then by assignment or group column.
type Result struct {
	Students         gradebook.Students
	Assignments      []string
	Groups           []string
	AssignmentScores [][]gradebook.Score
	GroupScores      [][]gradebook.Score
	Overall          []gradebook.Score

	err error
}

// Err joins an IncompleteError for every undefined regular group score and
// every undefined overall score, or returns nil.
func (r *Result) Err() error { return r.err }

// OverallFor returns the overall score of the student with the given id.
func (r *Result) OverallFor(studentID string) (gradebook.Score, bool) {
	for i, s := range r.Students {
		if s.Is(gradebook.Student{ID: studentID}) {
			return r.Overall[i], true
		}
	}
	return gradebook.Score{}, false
}

// GroupFor returns one group score of the student with the given id.
func (r *Result) GroupFor(studentID, group string) (gradebook.Score, bool) {
	for i, s := range r.Students {
		if !s.Is(gradebook.Student{ID: studentID}) {
			continue
		}
		for g, name := range r.Groups {
			if name == group {
				return r.GroupScores[i][g], true
			}
		}
	}
	return gradebook.Score{}, false
}

// Letters resolves a letter per student. Overrides win; students with an
// undefined score and no override get an empty letter and a joined error.
func (r *Result) Letters(s scale.Scale, overrides map[string]string) ([]string, error) {
	res, err := scale.NewResolver(s, overrides)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", gradebook.ErrConfiguration, err)
	}
	out := make([]string, len(r.Students))
	var errs []error
	for i, st := range r.Students {
		letter, err := res.Resolve(st.ID, r.Overall[i].Value, r.Overall[i].Defined)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = letter
	}
	return out, errors.Join(errs...)
}

// Aggregate scores every student of the table. It fails only when the table
// has no grading groups; undefined scores are reported through Result.Err.
func (a *Aggregator) Aggregate(ctx context.Context, t *gradebook.Table) (*Result, error) {
	start := time.Now()
	ev, err := NewEvaluator(t)
	if err != nil {
		return nil, err
	}

	groups := ev.Groups()
	r := &Result{
		Students:         t.Students(),
		Assignments:      t.AssignmentNames(),
		Groups:           make([]string, len(groups)),
		AssignmentScores: make([][]gradebook.Score, t.NumStudents()),
		GroupScores:      make([][]gradebook.Score, t.NumStudents()),
		Overall:          make([]gradebook.Score, t.NumStudents()),
	}
	for g, group := range groups {
		r.Groups[g] = group.Name
	}

	var errs []error
	for i := 0; i < t.NumStudents(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		row := t.Row(i)
		r.AssignmentScores[i] = make([]gradebook.Score, len(row))
		for j, c := range row {
			if c.Dropped {
				r.AssignmentScores[i][j] = gradebook.Undefined()
				continue
			}
			r.AssignmentScores[i][j] = t.Score(i, j)
		}

		scores := ev.Evaluate(row)
		r.GroupScores[i] = scores.Groups
		r.Overall[i] = scores.Overall

		id := t.Student(i).ID
		for g, s := range scores.Groups {
			if !s.Defined && !groups[g].ExtraCredit {
				metrics.RecordUndefinedScore("group")
				errs = append(errs, &IncompleteError{StudentID: id, Group: groups[g].Name})
			}
		}
		if !scores.Overall.Defined {
			metrics.RecordUndefinedScore("overall")
			errs = append(errs, &IncompleteError{StudentID: id})
		}
	}
	r.err = errors.Join(errs...)

	metrics.RecordAggregation(time.Since(start))
	if len(errs) > 0 {
		a.logger.Warn(ctx, "aggregation left undefined scores", logger.Int("count", len(errs)))
	}
	a.logger.Debug(ctx, "aggregated table",
		logger.Int("students", t.NumStudents()),
		logger.Int("groups", len(groups)),
		logger.Duration("took", time.Since(start)),
	)
	return r, nil
}

// Aggregate scores a table with a default aggregator.
func Aggregate(ctx context.Context, t *gradebook.Table) (*Result, error) {
	return NewAggregator().Aggregate(ctx, t)
}
