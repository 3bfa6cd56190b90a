package main

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

// ClientLimiter throttles requests per client identifier. It is injected into
// the App so a distributed implementation can replace the in-memory one
// without touching call sites.
type ClientLimiter interface {
	Allow(clientID string) bool
}

// SlidingWindowLimiter keeps, per client, the timestamps of requests seen in
// the trailing window and refuses once the window holds Ceiling entries.
// State is process-local and non-persistent: across restarts or N serving
// instances a client can see up to N×Ceiling requests per window. That is a
// known scaling limitation of this implementation, not a bug.
type SlidingWindowLimiter struct {
	Ceiling int
	Window  time.Duration

	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewSlidingWindowLimiter returns a limiter allowing ceiling requests per
// client per window.
func NewSlidingWindowLimiter(ceiling int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		Ceiling: ceiling,
		Window:  window,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow prunes timestamps older than the window, then admits the request only
// if the pruned window is below the ceiling. A refused attempt is not
// recorded and does not extend the client's window.
func (l *SlidingWindowLimiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.Window)
	window := lo.Filter(l.windows[clientID], func(ts time.Time, _ int) bool {
		return ts.After(cutoff)
	})

	if len(window) >= l.Ceiling {
		l.windows[clientID] = window
		return false
	}

	l.windows[clientID] = append(window, now)
	return true
}
