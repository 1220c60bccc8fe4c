package bridge

import "time"

// Defaults applied wherever an Options field is left at its zero value.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultBatchSize   = 10000
	DefaultBatchDelay  = 100 * time.Millisecond
)

// Options tune one analysis call. The zero value of any field means "use
// the default", so callers only set what they care about.
type Options struct {
	Timeout     time.Duration // per-attempt deadline for the analyzer process
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // backoff base; wait before attempt k+1 is 2^k * BaseDelay
	BatchSize   int           // records per batch
	BatchDelay  time.Duration // pause between sequential batch invocations
}

// withDefaults fills zero-valued fields.
func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = DefaultBatchDelay
	}
	return o
}

// merge lays per-call overrides over the receiver, field by field.
func (o Options) merge(override *Options) Options {
	if override == nil {
		return o
	}
	if override.Timeout > 0 {
		o.Timeout = override.Timeout
	}
	if override.MaxAttempts > 0 {
		o.MaxAttempts = override.MaxAttempts
	}
	if override.BaseDelay > 0 {
		o.BaseDelay = override.BaseDelay
	}
	if override.BatchSize > 0 {
		o.BatchSize = override.BatchSize
	}
	if override.BatchDelay > 0 {
		o.BatchDelay = override.BatchDelay
	}
	return o
}
