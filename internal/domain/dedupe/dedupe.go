// Package dedupe tracks identifiers that have already been seen.
package dedupe

import "strings"

// Deduper records seen identifiers so duplicates can be rejected.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(id string) bool

	// Unrecord forgets id so it may be recorded again.
	Unrecord(id string)

	Size() int
}

// Registry implements Deduper with a map keyed by the (optionally folded)
// identifier. It remembers the first spelling recorded for each key.
type Registry struct {
	seen     map[string]string
	fold     bool
	capacity int
}

// NewRegistry creates an empty registry with configuration options.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.seen = make(map[string]string, r.capacity)
	return r
}

func (r *Registry) key(id string) string {
	if r.fold {
		return strings.ToLower(id)
	}
	return id
}

// SeenAndRecord returns true if id was already seen, false if it was newly recorded.
func (r *Registry) SeenAndRecord(id string) bool {
	k := r.key(id)
	if _, ok := r.seen[k]; ok {
		return true
	}
	r.seen[k] = id
	return false
}

// Unrecord removes id from the registry.
func (r *Registry) Unrecord(id string) {
	delete(r.seen, r.key(id))
}

// Original returns the spelling recorded first for id.
func (r *Registry) Original(id string) (string, bool) {
	s, ok := r.seen[r.key(id)]
	return s, ok
}

// Size returns the number of distinct identifiers recorded.
func (r *Registry) Size() int {
	return len(r.seen)
}

// Duplicates returns the ids that repeat within ids, each reported once in
// order of their second occurrence.
func Duplicates(ids []string, opts ...Option) []string {
	r := NewRegistry(append(opts, WithCapacity(len(ids)))...)
	reported := NewRegistry(opts...)
	var dups []string
	for _, id := range ids {
		if r.SeenAndRecord(id) && !reported.SeenAndRecord(id) {
			dups = append(dups, id)
		}
	}
	return dups
}
