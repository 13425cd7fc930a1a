package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// retention bounds the limiter table; entries older than this are swept
// lazily on every check.
const retention = time.Minute

// QueryLimiter throttles repeats of the same normalized query text within a
// fixed window. Keys are query text only, independent of result content.
// Safe for concurrent use.
type QueryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewQueryLimiter(window time.Duration) *QueryLimiter {
	return &QueryLimiter{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// NewTestLimiter injects a clock for tests.
func NewTestLimiter(window time.Duration, now func() time.Time) *QueryLimiter {
	l := NewQueryLimiter(window)
	l.now = now
	return l
}

// Throttled reports whether the query was already seen within the window.
// When not throttled, the query's last-seen timestamp is updated.
func (l *QueryLimiter) Throttled(query string) bool {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.seen[key]; ok && now.Sub(last) < l.window {
		return true
	}
	l.seen[key] = now

	cutoff := now.Add(-retention)
	for k, v := range l.seen {
		if v.Before(cutoff) {
			delete(l.seen, k)
		}
	}

	return false
}

// Peek reports whether the query is currently throttled without recording an
// observation. Used on the page path so rendering a results page does not
// lock out the summary request the page itself is about to make.
func (l *QueryLimiter) Peek(query string) bool {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.seen[key]
	return ok && l.now().Sub(last) < l.window
}

// Len reports the current table size.
func (l *QueryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
