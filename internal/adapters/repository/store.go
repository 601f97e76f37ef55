// Package repository keeps the revision history of a score table.
package repository

import (
	"context"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
)

// Revision is one committed state of a table. Table is shared with the
// store and must be cloned before it is modified.
type Revision struct {
	ID    string
	Seq   int
	Label string
	At    time.Time
	Table *gradebook.Table
}

// Store provides read/write access to a table's revisions.
type Store interface {
	// Append records t as the newest revision. The store keeps its own copy.
	Append(ctx context.Context, label string, t *gradebook.Table) (Revision, error)

	// Latest returns the newest revision.
	// Returns ErrEmptyHistory if nothing was appended.
	Latest(ctx context.Context) (Revision, error)

	// Get returns the revision with the given id.
	// Returns ErrNotFound if it was never appended or has been evicted.
	Get(ctx context.Context, id string) (Revision, error)

	// List returns the kept revisions, oldest first.
	List(ctx context.Context) []Revision

	// Undo discards the newest revision and returns the one before it. The
	// base revision cannot be undone.
	Undo(ctx context.Context) (Revision, error)

	// Count returns the number of kept revisions.
	Count(ctx context.Context) int
}
