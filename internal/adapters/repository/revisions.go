package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/metrics"
)

// Snapshot is an immutable view of the history published after each write.
type Snapshot struct {
	Revisions []Revision
	ByID      map[string]int
}

// RevisionStore is an in-memory, bounded Store. Writes are serialized; reads
// go through an atomically published snapshot and never block on writers.
type RevisionStore struct {
	mu        sync.Mutex
	revisions []Revision
	seq       int
	capacity  int
	now       func() time.Time

	snapshot atomic.Pointer[Snapshot]
}

var _ Store = (*RevisionStore)(nil)

// NewRevisionStore creates an empty store.
func NewRevisionStore(opts ...Option) *RevisionStore {
	s := &RevisionStore{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.publishSnapshotLocked()
	return s
}

// Append implements Store.
func (s *RevisionStore) Append(ctx context.Context, label string, t *gradebook.Table) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	if t == nil {
		metrics.RecordErrorByComponent("repository", "nil_table")
		return Revision{}, ErrNilTable
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	rev := Revision{
		ID:    uuid.NewString(),
		Seq:   s.seq,
		Label: label,
		At:    s.now(),
		Table: t.Clone(),
	}
	s.revisions = append(s.revisions, rev)
	if over := len(s.revisions) - s.capacity; over > 0 && len(s.revisions) > 1 {
		// Keep the base revision; evict the oldest ones after it.
		over = min(over, len(s.revisions)-2)
		if over > 0 {
			s.revisions = append(s.revisions[:1], s.revisions[1+over:]...)
		}
	}
	s.publishSnapshotLocked()
	return rev, nil
}

// Record implements policy.Recorder.
func (s *RevisionStore) Record(ctx context.Context, policy string, t *gradebook.Table) error {
	_, err := s.Append(ctx, policy, t)
	return err
}

// Latest implements Store.
func (s *RevisionStore) Latest(ctx context.Context) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	snap := s.snapshot.Load()
	if len(snap.Revisions) == 0 {
		return Revision{}, ErrEmptyHistory
	}
	return snap.Revisions[len(snap.Revisions)-1], nil
}

// Get implements Store.
func (s *RevisionStore) Get(ctx context.Context, id string) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	snap := s.snapshot.Load()
	idx, ok := snap.ByID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Revision{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return snap.Revisions[idx], nil
}

// List implements Store.
func (s *RevisionStore) List(_ context.Context) []Revision {
	snap := s.snapshot.Load()
	return append([]Revision(nil), snap.Revisions...)
}

// Undo implements Store.
func (s *RevisionStore) Undo(ctx context.Context) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.revisions) < 2 {
		metrics.RecordErrorByComponent("repository", "undo_base")
		return Revision{}, fmt.Errorf("%w: nothing to undo", ErrEmptyHistory)
	}
	s.revisions = s.revisions[:len(s.revisions)-1]
	s.publishSnapshotLocked()
	return s.revisions[len(s.revisions)-1], nil
}

// Count implements Store.
func (s *RevisionStore) Count(_ context.Context) int {
	return len(s.snapshot.Load().Revisions)
}

// publishSnapshotLocked rebuilds the read snapshot. Callers hold s.mu, or
// own s exclusively.
func (s *RevisionStore) publishSnapshotLocked() {
	snap := &Snapshot{
		Revisions: append([]Revision(nil), s.revisions...),
		ByID:      make(map[string]int, len(s.revisions)),
	}
	for i, r := range snap.Revisions {
		snap.ByID[r.ID] = i
	}
	s.snapshot.Store(snap)
	metrics.UpdateRevisionCount(len(snap.Revisions))
}
