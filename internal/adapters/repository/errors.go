package repository

import "errors"

// Sentinel kinds for revision history errors.
var (
	ErrNotFound     = errors.New("revision not found")
	ErrEmptyHistory = errors.New("revision history is empty")
	ErrNilTable     = errors.New("nil table")
)
