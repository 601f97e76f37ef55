package scale

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidScale   = errors.New("invalid scale")
	ErrUndefinedScore = errors.New("score is undefined")
)
