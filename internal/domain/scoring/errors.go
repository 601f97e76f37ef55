package scoring

import (
	"errors"
	"fmt"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Sentinel kinds for scoring errors.
var (
	ErrNoGroups = fmt.Errorf("%w: grading groups are not set", gradebook.ErrConfiguration)
)

// IncompleteError reports a score left undefined for lack of a denominator.
// An empty Group means the overall score.
type IncompleteError struct {
	StudentID string
	Group     string
}

func (e *IncompleteError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("student %s: overall score is undefined", e.StudentID)
	}
	return fmt.Sprintf("student %s: group %q has no gradable work", e.StudentID, e.Group)
}

// Unwrap ties the error to gradebook.ErrDataCompleteness.
func (e *IncompleteError) Unwrap() error { return gradebook.ErrDataCompleteness }

// Incomplete extracts every IncompleteError joined into err.
func Incomplete(err error) []*IncompleteError {
	if err == nil {
		return nil
	}
	var out []*IncompleteError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Incomplete(e)...)
		}
		return out
	}
	var ie *IncompleteError
	if errors.As(err, &ie) {
		out = append(out, ie)
	}
	return out
}
