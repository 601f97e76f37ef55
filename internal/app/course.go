package service

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/okian/gradebook/internal/adapters/csvio"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	"github.com/okian/gradebook/internal/domain/scale"
	"github.com/okian/gradebook/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RunCourse loads the course's grades, configures groups, scale and letter
// overrides, runs its policies in order and grades the result.
func (s *Service) RunCourse(ctx context.Context, c *config.Course) (*Grades, error) {
	ctx, span := s.tracer.Start(ctx, "course.run", trace.WithAttributes(
		attribute.String("course", c.Dir),
		attribute.Int("files", len(c.Input.Files)),
		attribute.Int("policies", len(c.Policies)),
	))
	defer span.End()

	grades, err := s.runCourse(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course run failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("students", grades.Table.NumStudents()))
	return grades, nil
}

func (s *Service) runCourse(ctx context.Context, c *config.Course) (*Grades, error) {
	f, err := csvio.ParseFormat(c.Input.Format)
	if err != nil {
		return nil, err
	}
	var readOpts []csvio.Option
	if c.Input.StandardizeIDs != nil {
		readOpts = append(readOpts, csvio.WithStandardizedIDs(*c.Input.StandardizeIDs))
	}
	if c.Input.StandardizeAssignments != nil {
		readOpts = append(readOpts, csvio.WithStandardizedAssignments(*c.Input.StandardizeAssignments))
	}
	if _, err := s.Load(ctx, f, c.Input.Files, readOpts...); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	if len(c.Groups) > 0 {
		if err := s.SetGroups(ctx, GroupSpecs(c.Groups)...); err != nil {
			return nil, fmt.Errorf("groups: %w", err)
		}
	}
	sc, err := CourseScale(c.Scale)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	if err := s.SetScale(ctx, sc); err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	ids := make([]string, 0, len(c.Overrides))
	for id := range c.Overrides {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := s.SetLetterOverride(ctx, id, c.Overrides[id]); err != nil {
			return nil, fmt.Errorf("override: %w", err)
		}
	}

	policies, err := Policies(c.Policies)
	if err != nil {
		return nil, err
	}
	if _, err := s.Apply(ctx, policies...); err != nil {
		return nil, err
	}
	if c.Scale.Robust {
		if _, err := s.RobustScale(ctx); err != nil {
			return nil, fmt.Errorf("robust scale: %w", err)
		}
	}
	grades, err := s.Grade(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "course graded",
		logger.Int("students", grades.Table.NumStudents()),
		logger.Int("policies", len(policies)),
		logger.Int("revisions", len(s.History(ctx))),
	)
	return grades, nil
}

// GroupSpecs translates configured groups.
func GroupSpecs(groups []config.Group) []gradebook.GroupSpec {
	specs := make([]gradebook.GroupSpec, len(groups))
	for i, g := range groups {
		spec := gradebook.GroupSpec{
			Name:   g.Name,
			Weight: gradebook.RegularWeight(g.Weight),
			Cap:    g.Cap,
		}
		if g.ExtraCredit {
			spec.Weight = gradebook.ExtraCreditWeight(g.Weight)
		}
		switch {
		case len(g.Members) > 0:
			spec.Definition = gradebook.Weighted(members(g.Members)...)
		case len(g.Proportional) > 0:
			spec.Definition = gradebook.Proportional(g.Proportional...)
		case len(g.EqualWeight) > 0:
			spec.Definition = gradebook.EqualWeight(g.EqualWeight...)
		default:
			spec.Definition = gradebook.Single()
		}
		for _, m := range g.Bonus {
			spec.ExtraCredit = append(spec.ExtraCredit, gradebook.Bonus(m.Assignment, m.Weight))
		}
		specs[i] = spec
	}
	return specs
}

func members(ms []config.Member) []gradebook.Member {
	out := make([]gradebook.Member, len(ms))
	for i, m := range ms {
		if m.ExtraCredit {
			out[i] = gradebook.Bonus(m.Assignment, m.Weight)
		} else {
			out[i] = gradebook.Counted(m.Assignment, m.Weight)
		}
	}
	return out
}

// CourseScale builds the configured letter scale: explicit thresholds, then
// a scale file, then the rounded or standard default.
func CourseScale(c config.Scale) (scale.Scale, error) {
	switch {
	case len(c.Thresholds) > 0:
		sc := make(scale.Scale, len(c.Thresholds))
		for i, th := range c.Thresholds {
			sc[i] = scale.Threshold{Letter: th.Letter, Cutoff: th.Cutoff}
		}
		return sc, sc.Validate()
	case c.File != "":
		f, err := os.Open(c.File)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return csvio.ReadScale(f)
	case c.Rounded:
		return scale.RoundedDefault(), nil
	default:
		return scale.Default(), nil
	}
}

// Policies translates the configured pipeline, in order.
func Policies(ps []config.Policy) ([]policy.Policy, error) {
	out := make([]policy.Policy, 0, len(ps))
	for i, p := range ps {
		built, err := buildPolicy(p)
		if err != nil {
			return nil, fmt.Errorf("policy %d (%s): %w", i+1, p.Type, err)
		}
		out = append(out, built)
	}
	return out, nil
}

func buildPolicy(p config.Policy) (policy.Policy, error) {
	switch p.Type {
	case "penalize_lates":
		var strategy policy.LatePenaltyStrategy
		if amt, ok := amount(p.Deduct); ok {
			strategy = policy.Deduct{Amount: amt}
		}
		if p.Forgive > 0 {
			strategy = policy.Forgive{N: p.Forgive, Then: strategy}
		}
		return policy.PenalizeLates{Within: p.Within, Strategy: strategy}, nil

	case "drop_most_favorable":
		return policy.DropMostFavorable{K: p.K, Within: p.Within, Group: p.Group}, nil

	case "take_best":
		lateness, ok := policy.ParseLatenessStrategy(p.Lateness)
		if !ok {
			return nil, fmt.Errorf("%w: lateness %q", gradebook.ErrConfiguration, p.Lateness)
		}
		tb := policy.TakeBest{Lateness: lateness, KeepAttempts: p.Keep}
		if p.PenaltyPercent > 0 {
			tb.Penalty = policy.PenalizeSubsequent{Percent: p.PenaltyPercent}
		}
		for _, set := range p.Sets {
			tb.Sets = append(tb.Sets, policy.AttemptSet{Name: set.Name, Attempts: set.Members})
		}
		return tb, nil

	case "redeem":
		r := policy.Redeem{KeepParts: p.Keep}
		if amt, ok := amount(p.Deduct); ok {
			r.Deduction = amt
		}
		for _, pair := range p.Pairs {
			r.Pairs = append(r.Pairs, policy.Redemption{Name: pair.Name, Original: pair.Original, Retake: pair.Retake})
		}
		return r, nil

	case "combine_parts":
		cp := policy.CombineParts{KeepParts: p.Keep}
		for _, set := range p.Sets {
			cp.Composites = append(cp.Composites, policy.Composite{Name: set.Name, Parts: set.Members})
		}
		return cp, nil

	case "combine_versions":
		var cv policy.CombineVersions
		for _, set := range p.Sets {
			cv.Sets = append(cv.Sets, policy.VersionSet{Name: set.Name, Versions: set.Members})
		}
		return cv, nil

	case "exceptions":
		ex := policy.Exceptions{Student: p.Student}
		for _, e := range p.Exceptions {
			built, err := exception(e)
			if err != nil {
				return nil, err
			}
			ex.List = append(ex.List, built)
		}
		return ex, nil

	default:
		return nil, fmt.Errorf("%w: unknown policy type %q", gradebook.ErrConfiguration, p.Type)
	}
}

func exception(e config.Exception) (policy.Exception, error) {
	switch e.Type {
	case "forgive_late":
		return policy.ForgiveLate{Assignment: e.Assignment, Reason: e.Reason}, nil
	case "drop":
		return policy.Drop{Assignment: e.Assignment, Reason: e.Reason}, nil
	case "replace":
		r := policy.Replace{Assignment: e.Assignment, From: e.From, Reason: e.Reason}
		if amt, ok := amount(e.With); ok {
			r.With = amt
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: unknown exception type %q", gradebook.ErrConfiguration, e.Type)
	}
}

// amount reports false when a is unset.
func amount(a *config.Amount) (gradebook.Amount, bool) {
	switch {
	case a == nil:
		return gradebook.Amount{}, false
	case a.Points != nil:
		return gradebook.Points(*a.Points), true
	case a.Percent != nil:
		return gradebook.Percentage(*a.Percent), true
	default:
		return gradebook.Amount{}, false
	}
}
