package csvio

import "errors"

// Sentinel kinds for CSV errors.
var (
	ErrMalformed     = errors.New("malformed csv")
	ErrUnknownFormat = errors.New("unknown csv format")
	ErrNotText       = errors.New("not a text file")
)
