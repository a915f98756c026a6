package backend

import (
	"sync"
	"time"
)

// RateLimiter bounds how often a given operation key may run inside a
// sliding window. It refuses rather than blocks: callers that are over
// budget get false and decide for themselves what to do.
type RateLimiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// NewRateLimiter allows max calls per key within window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within budget.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := l.requests[key][:0]
	for _, t := range l.requests[key] {
		if now.Sub(t) < l.window {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.max {
		l.requests[key] = valid
		return false
	}
	l.requests[key] = append(valid, now)
	return true
}
