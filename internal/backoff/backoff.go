// Package backoff implements the reconnect schedule: exponential delays with
// an attempt ceiling and no jitter.
package backoff

import "time"

// Default policy values.
const (
	DefaultBase        = 1 * time.Second
	DefaultMaxAttempts = 5
)

// Policy computes reconnect delays. attempt n waits base * 2^(n-1).
// Not safe for concurrent use; the connection manager guards it.
type Policy struct {
	base        time.Duration
	maxAttempts int
	attempts    int
}

// New creates a Policy. Non-positive arguments fall back to the defaults.
func New(base time.Duration, maxAttempts int) *Policy {
	if base <= 0 {
		base = DefaultBase
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Policy{base: base, maxAttempts: maxAttempts}
}

// Next consumes one attempt and returns its delay. ok is false once the
// ceiling is reached; the counter is then left unchanged.
func (p *Policy) Next() (delay time.Duration, ok bool) {
	if p.attempts >= p.maxAttempts {
		return 0, false
	}
	p.attempts++
	return p.base << (p.attempts - 1), true
}

// Reset zeroes the attempt counter.
func (p *Policy) Reset() {
	p.attempts = 0
}

// Attempts returns the number of attempts consumed since the last Reset.
func (p *Policy) Attempts() int {
	return p.attempts
}

// Exhausted reports whether no attempts remain.
func (p *Policy) Exhausted() bool {
	return p.attempts >= p.maxAttempts
}

// MaxAttempts returns the attempt ceiling.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}
