package policy

import (
	"errors"
	"fmt"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Sentinel kinds for policy errors.
var (
	ErrUnknownGroup = fmt.Errorf("%w: unknown grading group", gradebook.ErrConfiguration)
	ErrEmptyScope   = fmt.Errorf("%w: empty scope", gradebook.ErrConfiguration)
)

// errorKind labels err for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, gradebook.ErrScope):
		return "scope"
	case errors.Is(err, gradebook.ErrCombinatorialLimit):
		return "combinatorial_limit"
	case errors.Is(err, gradebook.ErrConfiguration):
		return "configuration"
	case errors.Is(err, gradebook.ErrUnknownStudent):
		return "unknown_student"
	default:
		return "other"
	}
}
