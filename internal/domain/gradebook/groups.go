package gradebook

import (
	"fmt"
	"math"
	"strings"

	"github.com/okian/gradebook/internal/domain/dedupe"
)

// Weight is a non-negative weight that may be tagged as extra credit.
type Weight struct {
	Value       float64
	ExtraCredit bool
}

// RegularWeight counts toward the denominator.
func RegularWeight(v float64) Weight { return Weight{Value: v} }

// ExtraCreditWeight adds to the numerator only.
func ExtraCreditWeight(v float64) Weight { return Weight{Value: v, ExtraCredit: true} }

func (w Weight) validate(what string) error {
	if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) || w.Value < 0 {
		return fmt.Errorf("%w: %s has invalid weight %v", ErrConfiguration, what, w.Value)
	}
	return nil
}

// Member is one assignment of a weighted group.
type Member struct {
	Assignment string
	Weight     Weight
}

// Counted is a regular member with a relative weight.
func Counted(assignment string, w float64) Member {
	return Member{Assignment: assignment, Weight: RegularWeight(w)}
}

// Bonus is an extra-credit member. Its weight is a fraction of the group's
// full credit: Bonus("ec", 0.1) can add at most 10% to the group score.
func Bonus(assignment string, w float64) Member {
	return Member{Assignment: assignment, Weight: ExtraCreditWeight(w)}
}

// Definition describes how a group weighs its assignments. Build one with
// Weighted, Proportional, EqualWeight or Single.
type Definition interface {
	members(t *Table, group string) ([]Member, error)
}

type weighted []Member

func (d weighted) members(*Table, string) ([]Member, error) { return d, nil }

// Weighted uses explicit relative weights per member.
func Weighted(members ...Member) Definition { return weighted(members) }

type proportional []string

func (d proportional) members(t *Table, _ string) ([]Member, error) {
	out := make([]Member, len(d))
	for k, name := range d {
		j, ok := t.AssignmentIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown assignment %q", ErrScope, name)
		}
		out[k] = Counted(name, t.assignments[j].PointsPossible)
	}
	return out, nil
}

// Proportional weighs each assignment by its points possible, so the group
// score is total points earned over total points possible.
func Proportional(names ...string) Definition { return proportional(names) }

type equalWeight []string

func (d equalWeight) members(*Table, string) ([]Member, error) {
	out := make([]Member, len(d))
	for k, name := range d {
		out[k] = Counted(name, 1)
	}
	return out, nil
}

// EqualWeight gives every assignment the same weight regardless of points.
func EqualWeight(names ...string) Definition { return equalWeight(names) }

type single struct{}

func (single) members(_ *Table, group string) ([]Member, error) {
	return []Member{Counted(group, 1)}, nil
}

// Single makes a group holding only the assignment named like the group.
func Single() Definition { return single{} }

// GroupSpec configures one grading group.
type GroupSpec struct {
	Name       string
	Definition Definition
	Weight     Weight
	// Cap clamps the group score to at most full credit after extra credit.
	Cap bool
	// ExtraCredit adds bonus members to any definition.
	ExtraCredit []Member
}

// GroupMember is a normalized member. Regular weights of a group sum to one;
// extra-credit weights are fractions of full credit.
type GroupMember struct {
	Assignment  string
	Index       int
	Weight      float64
	ExtraCredit bool
}

// Group is the canonical form of a GroupSpec.
type Group struct {
	Name        string
	Members     []GroupMember
	Weight      float64
	ExtraCredit bool
	Cap         bool
}

// Regular returns the members that count toward the denominator.
func (g Group) Regular() []GroupMember {
	out := make([]GroupMember, 0, len(g.Members))
	for _, m := range g.Members {
		if !m.ExtraCredit {
			out = append(out, m)
		}
	}
	return out
}

// Contains reports whether the group holds the assignment at column j.
func (g Group) Contains(j int) bool {
	for _, m := range g.Members {
		if m.Index == j {
			return true
		}
	}
	return false
}

func cloneGroups(gs []Group) []Group {
	if gs == nil {
		return nil
	}
	out := make([]Group, len(gs))
	for i, g := range gs {
		g.Members = append([]GroupMember(nil), g.Members...)
		out[i] = g
	}
	return out
}

// Groups returns a copy of the configured groups.
func (t *Table) Groups() []Group { return cloneGroups(t.groups) }

// HasGroups reports whether grading groups are configured.
func (t *Table) HasGroups() bool { return len(t.groups) > 0 }

// GroupIndex returns the position of the named group.
func (t *Table) GroupIndex(name string) (int, bool) {
	for i, g := range t.groups {
		if g.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ClearGroups removes the grading configuration.
func (t *Table) ClearGroups() { t.groups = nil }

// SetGroups validates and replaces the grading configuration wholesale. On
// error the previous configuration is kept.
func (t *Table) SetGroups(specs ...GroupSpec) error {
	groups, err := t.NormalizeGroups(specs...)
	if err != nil {
		return err
	}
	t.groups = groups
	return nil
}

// NormalizeGroups validates specs against the table without attaching them.
func (t *Table) NormalizeGroups(specs ...GroupSpec) ([]Group, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no grading groups", ErrConfiguration)
	}
	names := dedupe.NewRegistry(dedupe.WithCapacity(len(specs)))
	groups := make([]Group, 0, len(specs))
	regularTotal := 0.0
	regularGroups := 0
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: group without a name", ErrConfiguration)
		}
		if names.SeenAndRecord(name) {
			return nil, fmt.Errorf("%w: duplicate group %q", ErrConfiguration, name)
		}
		g, err := t.normalizeGroup(name, spec)
		if err != nil {
			return nil, err
		}
		if !g.ExtraCredit {
			regularTotal += g.Weight
			regularGroups++
		}
		groups = append(groups, g)
	}
	if regularGroups == 0 {
		return nil, fmt.Errorf("%w: at least one regular group is required", ErrConfiguration)
	}
	if math.Abs(regularTotal-1) > t.opts.weightTolerance {
		return nil, fmt.Errorf("%w: regular group weights sum to %v, want 1", ErrConfiguration, regularTotal)
	}
	return groups, nil
}

func (t *Table) normalizeGroup(name string, spec GroupSpec) (Group, error) {
	if spec.Definition == nil {
		return Group{}, fmt.Errorf("%w: group %q has no definition", ErrConfiguration, name)
	}
	if err := spec.Weight.validate("group " + name); err != nil {
		return Group{}, err
	}
	members, err := spec.Definition.members(t, name)
	if err != nil {
		return Group{}, err
	}
	members = append(append([]Member(nil), members...), spec.ExtraCredit...)
	if len(members) == 0 {
		return Group{}, fmt.Errorf("%w: group %q is empty", ErrConfiguration, name)
	}

	seen := dedupe.NewRegistry(dedupe.WithCapacity(len(members)))
	regularSum := 0.0
	for _, m := range members {
		if !t.HasAssignment(m.Assignment) {
			return Group{}, fmt.Errorf("%w: group %q references unknown assignment %q", ErrScope, name, m.Assignment)
		}
		if seen.SeenAndRecord(m.Assignment) {
			return Group{}, fmt.Errorf("%w: group %q lists %q twice", ErrConfiguration, name, m.Assignment)
		}
		if err := m.Weight.validate(fmt.Sprintf("%s/%s", name, m.Assignment)); err != nil {
			return Group{}, err
		}
		if !m.Weight.ExtraCredit {
			regularSum += m.Weight.Value
		}
	}
	if regularSum <= 0 {
		return Group{}, fmt.Errorf("%w: group %q needs a regular member with positive weight", ErrConfiguration, name)
	}

	g := Group{
		Name:        name,
		Members:     make([]GroupMember, len(members)),
		Weight:      spec.Weight.Value,
		ExtraCredit: spec.Weight.ExtraCredit,
		Cap:         spec.Cap,
	}
	for k, m := range members {
		w := m.Weight.Value
		if !m.Weight.ExtraCredit {
			w /= regularSum
		}
		g.Members[k] = GroupMember{
			Assignment:  m.Assignment,
			Index:       t.assignIdx[m.Assignment],
			Weight:      w,
			ExtraCredit: m.Weight.ExtraCredit,
		}
	}
	return g, nil
}
