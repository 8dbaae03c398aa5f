package guard

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter implements a sliding window rate limiter.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the given limit per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Check records an attempt for key and reports whether it is within the limit.
// Rejected attempts are not counted.
func (rl *RateLimiter) Check(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	// Remove expired entries
	entries := rl.windows[key]
	valid := entries[:0]
	for _, t := range entries {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.windows[key] = valid
		return Decision{
			Reason:     fmt.Sprintf("rate limit exceeded: %d/%s", rl.limit, rl.window),
			Guard:      "rate_limiter",
			RetryAfter: valid[0].Add(rl.window).Sub(now),
		}
	}

	rl.windows[key] = append(valid, now)
	return allow()
}
