// Package guard holds in-process protections shared by the API and the outbox relay:
// a per-key sliding-window rate limiter and a per-key circuit breaker.
package guard

import "time"

// Decision is the outcome of a guard check.
type Decision struct {
	Allowed    bool
	Reason     string
	Guard      string // which guard blocked
	RetryAfter time.Duration
}

func allow() Decision { return Decision{Allowed: true} }
