// Package ingest holds the options and results of an ingestion run.
package ingest

import (
	"fmt"
	"time"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// Options controls a single ingestion run.
type Options struct {
	// Run control
	DryRun      bool          // Resolve and match against the catalogue without writing
	Overwrite   bool          // Update identifier-matched objects whose fields changed
	Concurrency int           // Objects of one type processed in parallel
	Timeout     time.Duration // Timeout for the entire run, zero means none

	// Selection
	Types []records.ObjectType // Which object types to ingest (empty means all)

	// Post-ingest behaviour
	Transfer   bool   // Copy staged datafiles to the storage box after ingestion
	ResultPath string // Where to dump the ingestion result (empty disables the dump)
}

// Defaults returns the default ingestion options.
func Defaults() *Options {
	return &Options{
		Concurrency: 1,
		Transfer:    true,
		ResultPath:  constants.ResultFileName,
	}
}

// Apply applies the given options.
func (o *Options) Apply(opts ...Option) *Options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option is a function that configures ingestion Options.
type Option func(*Options)

// Validate checks that the options are usable.
func (o *Options) Validate() error {
	if o.Concurrency < 1 {
		return &errors.ValidationError{
			Field:   "Concurrency",
			Value:   o.Concurrency,
			Message: "concurrency must be at least 1",
		}
	}
	if o.Timeout < 0 {
		return &errors.ValidationError{
			Field:   "Timeout",
			Value:   o.Timeout,
			Message: "timeout must be non-negative",
		}
	}
	for _, t := range o.Types {
		if _, err := records.ParseObjectType(t.String()); err != nil {
			return &errors.ValidationError{
				Field:   "Types",
				Value:   t,
				Message: fmt.Sprintf("object type '%s' cannot be ingested", t),
			}
		}
	}
	return nil
}

// Includes reports whether objects of type t are selected for this run.
func (o *Options) Includes(t records.ObjectType) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, sel := range o.Types {
		if sel == t {
			return true
		}
	}
	return false
}

// WithDryRun configures dry run mode.
func WithDryRun(dryRun bool) Option {
	return func(o *Options) {
		o.DryRun = dryRun
	}
}

// WithOverwrite allows identifier-matched objects to be updated in place.
func WithOverwrite(overwrite bool) Option {
	return func(o *Options) {
		o.Overwrite = overwrite
	}
}

// WithConcurrency sets how many objects of one type are processed at once.
func WithConcurrency(n int) Option {
	return func(o *Options) {
		o.Concurrency = n
	}
}

// WithTimeout configures the run timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithTypes restricts the run to the given object types.
func WithTypes(types ...records.ObjectType) Option {
	return func(o *Options) {
		o.Types = types
	}
}

// WithTransfer toggles the post-ingest datafile transfer.
func WithTransfer(transfer bool) Option {
	return func(o *Options) {
		o.Transfer = transfer
	}
}

// WithResultPath sets the result dump path.
func WithResultPath(path string) Option {
	return func(o *Options) {
		o.ResultPath = path
	}
}
