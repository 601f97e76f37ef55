package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrNoTable    = errors.New("no table loaded")
	ErrNoInput    = errors.New("no input files")
)
