package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter counts requests per key inside a fixed window. It backs
// the feedback endpoint, where the key is the client address, so the state
// stays small and an in-process map is enough.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]limiterWindow
}

type limiterWindow struct {
	used     int
	resetsAt time.Time
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]limiterWindow),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || now.After(current.resetsAt) {
		l.windows[key] = limiterWindow{used: 1, resetsAt: now.Add(l.window)}
		l.dropExpiredLocked(now)
		return true
	}

	if current.used >= l.limit {
		return false
	}
	current.used++
	l.windows[key] = current
	return true
}

func (l *fixedWindowLimiter) dropExpiredLocked(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.resetsAt) {
			delete(l.windows, key)
		}
	}
}
