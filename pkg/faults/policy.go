package faults

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// maxRetryDelay caps a single wait between attempts.
const maxRetryDelay = time.Minute

// RetryPolicy describes how failures of one category are retried.
type RetryPolicy struct {
	Category      Category      `json:"category" yaml:"-"`
	MaxRetries    int           `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=20"`
	InitialDelay  time.Duration `json:"initial_delay" yaml:"initial_delay" validate:"gte=0"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor" validate:"gte=0"`
	Recoverable   bool          `json:"recoverable" yaml:"recoverable"`
}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	b := p.BackOff()
	var d time.Duration
	for i := 0; i <= attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// BackOff returns a deterministic exponential schedule for the policy:
// InitialDelay * BackoffFactor^attempt, capped at one minute.
func (p RetryPolicy) BackOff() *backoff.ExponentialBackOff {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          factor,
		MaxInterval:         maxRetryDelay,
	}
	b.Reset()
	return b
}

// PolicyTable maps each category to its retry policy.
type PolicyTable map[Category]RetryPolicy

// DefaultPolicies returns the built-in retry table. Categories missing from
// the table are never retried.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		CategoryPluginComm: {MaxRetries: 3, InitialDelay: time.Second, BackoffFactor: 2.0, Recoverable: true},
		CategoryHostAPI:    {MaxRetries: 2, InitialDelay: 500 * time.Millisecond, BackoffFactor: 1.5, Recoverable: true},
		CategoryNetwork:    {MaxRetries: 5, InitialDelay: time.Second, BackoffFactor: 2.0, Recoverable: true},
		CategoryResource:   {MaxRetries: 2, InitialDelay: 500 * time.Millisecond, BackoffFactor: 1.0, Recoverable: true},
		CategoryFilesystem: {MaxRetries: 2, InitialDelay: 500 * time.Millisecond, BackoffFactor: 1.5, Recoverable: true},
		CategoryConfig:     {MaxRetries: 1, InitialDelay: 100 * time.Millisecond, BackoffFactor: 1.0, Recoverable: true},
		CategoryValidation: {MaxRetries: 0, Recoverable: false},
		CategoryUnknown:    {MaxRetries: 0, Recoverable: false},
	}
}

// Lookup returns the policy for c. An unknown category yields a
// non-recoverable policy with no retries.
func (t PolicyTable) Lookup(c Category) RetryPolicy {
	p, ok := t[c]
	if !ok {
		return RetryPolicy{Category: c}
	}
	p.Category = c
	return p
}

// Merge returns a copy of t with the entries of overrides replacing the
// matching categories.
func (t PolicyTable) Merge(overrides PolicyTable) PolicyTable {
	merged := make(PolicyTable, len(t)+len(overrides))
	for c, p := range t {
		merged[c] = p
	}
	for c, p := range overrides {
		merged[c] = p
	}
	return merged
}
