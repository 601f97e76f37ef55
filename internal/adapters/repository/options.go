package repository

import "time"

// DefaultCapacity is the number of revisions kept when no capacity is set.
const DefaultCapacity = 64

// Option applies a configuration option to the RevisionStore.
type Option func(*RevisionStore)

// WithCapacity bounds the number of revisions kept. The oldest revisions
// are evicted first; the base revision is never evicted.
func WithCapacity(n int) Option {
	return func(s *RevisionStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock sets the time source used to stamp revisions.
func WithClock(now func() time.Time) Option {
	return func(s *RevisionStore) {
		if now != nil {
			s.now = now
		}
	}
}
