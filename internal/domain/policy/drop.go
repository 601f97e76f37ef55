package policy

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/scoring"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

// DefaultExhaustiveLimit is the largest number of drop candidates searched
// exhaustively per student.
const DefaultExhaustiveLimit = 20

// Fallback selects what happens past the exhaustive limit.
type Fallback int

const (
	// FallbackError fails the policy with gradebook.ErrCombinatorialLimit.
	FallbackError Fallback = iota
	// FallbackGreedy drops one assignment at a time, each time the one whose
	// removal helps most, and says so in the student's notes.
	FallbackGreedy
)

// ParseFallback maps "error" and "greedy" to a Fallback.
func ParseFallback(s string) (Fallback, bool) {
	switch s {
	case "", "error":
		return FallbackError, true
	case "greedy":
		return FallbackGreedy, true
	default:
		return 0, false
	}
}

// DropMostFavorable drops, per student, the subset of at most K assignments
// within scope that maximizes the overall score, or the score of Group when
// set. With Group, only members of that group are candidates. Subsets are
// enumerated from size K down to 0, lexicographically in column order, and a
// later subset replaces the incumbent only when strictly better. Missing and
// already dropped cells are never candidates.
type DropMostFavorable struct {
	K      int
	Within []string
	Group  string

	// ExhaustiveLimit defaults to DefaultExhaustiveLimit.
	ExhaustiveLimit int
	Fallback        Fallback
	// Runner defaults to Sequential. Students are independent.
	Runner Runner
	Logger logger.Logger
}

// Name implements Policy.
func (DropMostFavorable) Name() string { return "drop_most_favorable" }

func (p DropMostFavorable) limit() int {
	if p.ExhaustiveLimit > 0 {
		return p.ExhaustiveLimit
	}
	return DefaultExhaustiveLimit
}

type dropPlan struct {
	cols   []int
	greedy bool
	before gradebook.Score
	after  gradebook.Score
}

// Apply implements Policy.
func (p DropMostFavorable) Apply(ctx context.Context, t *gradebook.Table) error {
	if p.K < 0 {
		return fmt.Errorf("%w: cannot drop %d assignments", gradebook.ErrConfiguration, p.K)
	}
	cols, err := scope(t, p.Within)
	if err != nil {
		return err
	}
	ev, err := scoring.NewEvaluator(t)
	if err != nil {
		return err
	}
	objective := func(row []gradebook.Cell) gradebook.Score { return ev.Evaluate(row).Overall }
	if p.Group != "" {
		g, ok := ev.GroupIndex(p.Group)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownGroup, p.Group)
		}
		objective = func(row []gradebook.Cell) gradebook.Score { return ev.Group(row, g) }
		cols = groupColumns(cols, ev.Groups()[g])
	}
	if p.K == 0 {
		return nil
	}

	log := p.Logger
	if log == nil {
		log = logger.Get().Named("policy")
	}
	runner := p.Runner
	if runner == nil {
		runner = Sequential{}
	}

	plans := make([]dropPlan, t.NumStudents())
	var evaluated atomic.Int64
	err = runner.Run(ctx, t.NumStudents(), func(_ context.Context, i int) error {
		row := t.Row(i)
		candidates := make([]int, 0, len(cols))
		for _, j := range cols {
			c := row[j]
			if c.Dropped || (!c.Graded && !t.MissingAsZero()) {
				continue
			}
			candidates = append(candidates, j)
		}
		plan := dropPlan{before: objective(row)}
		var n int
		switch {
		case len(candidates) <= p.limit():
			plan.cols, plan.after, n = exhaustiveDrop(row, candidates, p.K, objective)
		case p.Fallback == FallbackGreedy:
			plan.cols, plan.after, n = greedyDrop(row, candidates, p.K, objective)
			plan.greedy = true
		default:
			return fmt.Errorf("%w: student %s has %d candidates, limit is %d",
				gradebook.ErrCombinatorialLimit, t.Student(i).ID, len(candidates), p.limit())
		}
		evaluated.Add(int64(n))
		plans[i] = plan
		return nil
	})
	metrics.RecordDropSubsetsEvaluated(int(evaluated.Load()))
	if err != nil {
		return err
	}

	for i, plan := range plans {
		if plan.greedy {
			metrics.RecordDropHeuristicFallback()
			log.Warn(ctx, "drop search fell back to greedy",
				logger.String("student", t.Student(i).ID),
				logger.Int("limit", p.limit()),
			)
			t.AddNote(i, gradebook.ChannelDrops, "more than %d drop candidates; drops chosen greedily and may not be optimal", p.limit())
		}
		for _, j := range plan.cols {
			c := t.Cell(i, j)
			c.Dropped = true
			t.SetCell(i, j, c)
			t.AddNote(i, gradebook.ChannelDrops, "dropped %s (scored %s)", t.Assignment(j).Name, t.Score(i, j))
		}
		if len(plan.cols) > 0 {
			log.Debug(ctx, "dropped assignments",
				logger.String("student", t.Student(i).ID),
				logger.Int("count", len(plan.cols)),
				logger.String("before", plan.before.Percent()),
				logger.String("after", plan.after.Percent()),
			)
		}
	}
	return nil
}

// groupColumns keeps the columns of cols that belong to g.
func groupColumns(cols []int, g gradebook.Group) []int {
	out := make([]int, 0, len(cols))
	for _, j := range cols {
		if g.Contains(j) {
			out = append(out, j)
		}
	}
	return out
}

// value orders scores with undefined below every defined score.
func value(s gradebook.Score) float64 {
	if !s.Defined {
		return math.Inf(-1)
	}
	return s.Value
}

// exhaustiveDrop returns the best subset of candidates of size at most k,
// its score and the number of subsets scored. row is restored on return.
func exhaustiveDrop(row []gradebook.Cell, candidates []int, k int, objective func([]gradebook.Cell) gradebook.Score) ([]int, gradebook.Score, int) {
	k = min(k, len(candidates))
	var best []int
	bestScore := gradebook.Undefined()
	found := false
	evaluated := 0
	for size := k; size >= 0; size-- {
		combinations(len(candidates), size, func(idx []int) {
			for _, x := range idx {
				row[candidates[x]].Dropped = true
			}
			s := objective(row)
			for _, x := range idx {
				row[candidates[x]].Dropped = false
			}
			evaluated++
			if !s.Defined {
				return
			}
			if !found || value(s) > value(bestScore) {
				found = true
				bestScore = s
				best = best[:0]
				for _, x := range idx {
					best = append(best, candidates[x])
				}
			}
		})
	}
	if !found {
		return nil, objective(row), evaluated
	}
	return append([]int(nil), best...), bestScore, evaluated
}

// greedyDrop drops up to k candidates one at a time, each time choosing the
// first candidate whose removal scores highest, and stops early when no
// removal keeps the score from falling.
func greedyDrop(row []gradebook.Cell, candidates []int, k int, objective func([]gradebook.Cell) gradebook.Score) ([]int, gradebook.Score, int) {
	current := objective(row)
	var chosen []int
	evaluated := 0
	taken := make([]bool, len(candidates))
	for step := 0; step < k; step++ {
		pick := -1
		pickScore := gradebook.Undefined()
		for x, j := range candidates {
			if taken[x] {
				continue
			}
			row[j].Dropped = true
			s := objective(row)
			row[j].Dropped = false
			evaluated++
			if s.Defined && (pick < 0 || value(s) > value(pickScore)) {
				pick, pickScore = x, s
			}
		}
		if pick < 0 || value(pickScore) < value(current) {
			break
		}
		taken[pick] = true
		row[candidates[pick]].Dropped = true
		chosen = append(chosen, candidates[pick])
		current = pickScore
	}
	for _, j := range chosen {
		row[j].Dropped = false
	}
	return chosen, current, evaluated
}

// combinations calls fn with every size-k index subset of [0, n) in
// lexicographic order. fn must not retain idx.
func combinations(n, k int, fn func(idx []int)) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
