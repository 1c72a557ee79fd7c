package sync

import (
	"sync"
	"time"
)

// RateLimiter bounds the number of sync sessions a single peer may start
// within a sliding window, per spec.md §4.6's "rate-limit sessions per
// peer (configurable, default: bounded N sessions per minute)".
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	attempts map[[16]byte][]time.Time
}

// NewRateLimiter returns a limiter allowing at most max session starts
// per peer within window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{window: window, max: max, attempts: make(map[[16]byte][]time.Time)}
}

// DefaultSyncRateLimit is spec.md §4.6's suggested default: a bounded
// number of sessions per peer per minute.
const DefaultSyncRateLimit = 6

// Allow records an attempt for peerFp at now and reports whether it is
// within the configured rate.
func (r *RateLimiter) Allow(peerFp [16]byte, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.window)
	kept := r.attempts[peerFp][:0]
	for _, t := range r.attempts[peerFp] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= r.max {
		r.attempts[peerFp] = kept
		return false
	}
	kept = append(kept, now)
	r.attempts[peerFp] = kept
	return true
}
