// Package retry implements the bounded-retry policies shared by query
// reads and mutations. Policies are plain declarative values (status
// ranges and exception lists, not closures) so they can be inspected
// and tested in isolation.
package retry

import (
	"time"

	"github.com/fabwerk/mes-edge-client/pkg/client"
)

// StatusRange is an inclusive range of HTTP statuses.
type StatusRange struct {
	From int
	To   int
}

// Contains returns true if status falls inside the range.
func (r StatusRange) Contains(status int) bool {
	return status >= r.From && status <= r.To
}

// Policy holds the retry configuration for one call-site category.
type Policy struct {
	// Scope labels the category for logs and metrics ("query", "mutation").
	Scope string

	// MaxAttempts is the total attempt budget including the first try.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// Multiplier is the exponential backoff factor.
	Multiplier float64

	// NonRetryable lists status ranges that never retry.
	NonRetryable []StatusRange

	// Exceptions lists statuses inside NonRetryable that retry anyway.
	Exceptions []int
}

// QueryPolicy returns the retry policy for query fetches: up to 3
// attempts, 4xx errors non-retryable except 408 and 429 since they
// represent request errors repetition cannot fix.
func QueryPolicy() Policy {
	return Policy{
		Scope:          "query",
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		NonRetryable:   []StatusRange{{From: 400, To: 499}},
		Exceptions:     []int{408, 429},
	}
}

// MutationPolicy returns the retry policy for mutations: a single
// retry, far more conservative than queries because mutations may have
// side effects.
func MutationPolicy() Policy {
	return Policy{
		Scope:          "mutation",
		MaxAttempts:    2,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		NonRetryable:   []StatusRange{{From: 400, To: 499}},
		Exceptions:     []int{408, 429},
	}
}

// Retryable reports whether err may be retried under the policy.
// Errors without an HTTP status (network, timeout, decode) are always
// retryable; HTTP errors consult the non-retryable ranges and their
// exceptions.
func (p Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	status := client.StatusOf(err)
	if status == 0 {
		return true
	}

	for _, exception := range p.Exceptions {
		if status == exception {
			return true
		}
	}
	for _, r := range p.NonRetryable {
		if r.Contains(status) {
			return false
		}
	}
	return true
}

// Delay returns the backoff before retry number attempt (0-based):
// min(initial * multiplier^attempt, max).
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
	}
	if capped := float64(p.MaxBackoff); delay > capped {
		delay = capped
	}
	return time.Duration(delay)
}
