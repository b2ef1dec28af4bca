// Package resilience provides the retry policy used by the weather fetcher:
// exponential back-off computation and the transient/permanent error split.
package resilience

import (
	"math"
	"time"
)

// Policy controls a bounded retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// BackoffBase is the exponential base for the sleep between attempts.
	// After attempt n the loop sleeps BackoffBase^n units. Default: 2.
	BackoffBase float64

	// Unit is the duration of one back-off unit. Default: 1s.
	Unit time.Duration
}

// DefaultPolicy returns the retry policy matching the API defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BackoffBase: 2, Unit: time.Second}
}

// Normalized returns a copy of p with defaults applied to out-of-range fields.
func (p Policy) Normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.BackoffBase < 1 {
		p.BackoffBase = 2
	}
	if p.Unit <= 0 {
		p.Unit = time.Second
	}
	return p
}

// Backoff returns the sleep before the next attempt, where attempt counts
// from 1. The delay is deliberately deterministic: BackoffBase^attempt units.
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.Normalized()
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(math.Pow(p.BackoffBase, float64(attempt)) * float64(p.Unit))
}
