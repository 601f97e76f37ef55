package policy

import (
	"fmt"

	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/gradebook"
)

// merge describes one synthetic column built from source columns.
type merge struct {
	name     string
	sources  []string
	possible float64
	// cells holds one entry per student row.
	cells []gradebook.Cell
}

// validateMerges checks that every source exists, that no source belongs to
// two merges and that the synthetic names are free once sources are gone.
func validateMerges(t *gradebook.Table, ms []merge, keepSources bool) error {
	sources := dedupe.NewRegistry()
	for _, m := range ms {
		if len(m.sources) == 0 {
			return fmt.Errorf("%w: %q has nothing to combine", ErrEmptyScope, m.name)
		}
		if _, err := t.Resolve(m.sources...); err != nil {
			return err
		}
		for _, s := range m.sources {
			if sources.SeenAndRecord(s) {
				return fmt.Errorf("%w: %q is combined twice", gradebook.ErrConfiguration, s)
			}
		}
	}
	names := dedupe.NewRegistry()
	for _, m := range ms {
		if m.name == "" {
			return fmt.Errorf("%w: combined assignment needs a name", gradebook.ErrConfiguration)
		}
		if names.SeenAndRecord(m.name) {
			return fmt.Errorf("%w: %q", gradebook.ErrDuplicateAssignment, m.name)
		}
		_, isSource := sources.Original(m.name)
		if t.HasAssignment(m.name) && (keepSources || !isSource) {
			return fmt.Errorf("%w: %q", gradebook.ErrDuplicateAssignment, m.name)
		}
	}
	return nil
}

// applyMerges adds every synthetic column where its first source stood and
// removes the sources unless keepSources is set. Grading groups are reset
// by the column change.
func applyMerges(t *gradebook.Table, ms []merge, keepSources bool) error {
	first := make(map[string]string, len(ms))
	absorbed := make(map[string]bool)
	for _, m := range ms {
		first[m.sources[0]] = m.name
		for _, s := range m.sources {
			absorbed[s] = true
		}
	}

	var order []string
	for _, name := range t.AssignmentNames() {
		if synthetic, ok := first[name]; ok {
			if keepSources {
				order = append(order, name)
			}
			order = append(order, synthetic)
			continue
		}
		if absorbed[name] && !keepSources {
			continue
		}
		order = append(order, name)
	}

	if !keepSources {
		var drop []string
		for _, m := range ms {
			drop = append(drop, m.sources...)
		}
		if err := t.RemoveAssignments(drop...); err != nil {
			return err
		}
	}
	for _, m := range ms {
		if err := t.AddAssignment(gradebook.Assignment{Name: m.name, PointsPossible: m.possible}, m.cells); err != nil {
			return err
		}
	}
	return t.RestrictToAssignments(order...)
}

// samePossible returns the shared points possible of cols or fails.
func samePossible(t *gradebook.Table, name string, cols []int) (float64, error) {
	possible := t.Assignment(cols[0]).PointsPossible
	for _, j := range cols[1:] {
		if t.Assignment(j).PointsPossible != possible {
			return 0, fmt.Errorf("%w: %q mixes points possible %g and %g",
				gradebook.ErrConfiguration, name, possible, t.Assignment(j).PointsPossible)
		}
	}
	return possible, nil
}
