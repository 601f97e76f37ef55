package report

import "errors"

// Sentinel kinds for report errors.
var (
	ErrMismatch      = errors.New("scores do not match the table")
	ErrUnknownFormat = errors.New("unknown report format")
)
