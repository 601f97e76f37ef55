package gradebook

import "errors"

// Sentinel error kinds shared by the grading core. Errors returned by this
// module wrap one of these so callers can branch with errors.Is.
var (
	// ErrConfiguration marks invalid weights, scales or policy settings.
	// It is raised when the configuration is set, never mid-computation.
	ErrConfiguration = errors.New("configuration error")

	// ErrDataCompleteness marks a score that is undefined because its
	// denominator is zero.
	ErrDataCompleteness = errors.New("data completeness error")

	// ErrScope marks a reference to an assignment the table does not hold.
	ErrScope = errors.New("scope error")

	// ErrCombinatorialLimit marks a drop search too large to run exhaustively.
	ErrCombinatorialLimit = errors.New("combinatorial limit exceeded")

	ErrInvalidData         = errors.New("invalid table data")
	ErrStudentMismatch     = errors.New("student sets do not match")
	ErrDuplicateAssignment = errors.New("duplicate assignment")
	ErrUnknownStudent      = errors.New("unknown student")
)
