package policy

import (
	"fmt"
	"sort"

	"github.com/okian/gradebook/internal/domain/dedupe"
	"github.com/okian/gradebook/internal/domain/gradebook"
)

// scope resolves within to column indexes in table order. An empty list
// means every column.
func scope(t *gradebook.Table, within []string) ([]int, error) {
	if len(within) == 0 {
		cols := make([]int, t.NumAssignments())
		for j := range cols {
			cols[j] = j
		}
		return cols, nil
	}
	if dups := dedupe.Duplicates(within); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %q listed twice", gradebook.ErrConfiguration, dups[0])
	}
	cols, err := t.Resolve(within...)
	if err != nil {
		return nil, err
	}
	sort.Ints(cols)
	return cols, nil
}

// studentRow resolves a student id to its row.
func studentRow(t *gradebook.Table, id string) (int, error) {
	i, ok := t.StudentIndex(id)
	if !ok {
		return 0, fmt.Errorf("%w: %q", gradebook.ErrUnknownStudent, id)
	}
	return i, nil
}
