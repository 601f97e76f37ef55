// Package dedupe tracks identifiers that have already been seen.
package dedupe

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithCaseFolding makes the registry treat identifiers that differ only in
// case as the same identifier.
func WithCaseFolding(fold bool) Option {
	return func(r *Registry) {
		r.fold = fold
	}
}

// WithCapacity presizes the registry.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}
