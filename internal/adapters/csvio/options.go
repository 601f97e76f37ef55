package csvio

import (
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
)

type options struct {
	tableOpts              []gradebook.Option
	standardizeIDs         bool
	standardizeAssignments bool
	logger                 logger.Logger
}

// Option configures a reader.
type Option func(*options)

// WithTableOptions passes options to the table that is read.
func WithTableOptions(opts ...gradebook.Option) Option {
	return func(o *options) {
		o.tableOpts = append(o.tableOpts, opts...)
	}
}

// WithStandardizedIDs upper-cases student ids while reading.
func WithStandardizedIDs(on bool) Option {
	return func(o *options) {
		o.standardizeIDs = on
	}
}

// WithStandardizedAssignments lower-cases assignment names while reading.
func WithStandardizedAssignments(on bool) Option {
	return func(o *options) {
		o.standardizeAssignments = on
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(f Format, opts []Option) options {
	o := options{logger: logger.Get().Named("csvio")}
	if f == FormatGradescope {
		o.standardizeIDs = true
		o.standardizeAssignments = true
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
