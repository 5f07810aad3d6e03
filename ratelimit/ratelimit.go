// Package ratelimit implements a fixed-window request limiter keyed by
// (client address, route). Counting is in-process; in a multi-instance
// deployment each instance enforces the cap independently.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultCapacity is the number of requests allowed per window.
	DefaultCapacity = 100
	// DefaultWindow is the fixed window length.
	DefaultWindow = 60 * time.Second
	// defaultMaxEntries caps the bucket map so hostile address churn cannot
	// grow it without bound.
	defaultMaxEntries = 100_000
)

// Config tunes a Limiter. Zero values take the defaults above.
type Config struct {
	Capacity   int
	Window     time.Duration
	MaxEntries int
	// OnReject is called once per rejected request.
	OnReject func()
}

type bucket struct {
	count       int
	windowStart time.Time
}

// Limiter counts requests per (address, route) key in fixed windows. The
// first request of a window starts it; the count resets when a request
// arrives after the window has elapsed. Safe for concurrent use.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New constructs a Limiter, applying defaults for unset config values.
func New(cfg Config) *Limiter {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = defaultMaxEntries
	}
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a request for the given address and route. It reports
// whether the request is within the window's capacity and, when it is not,
// how long until the window resets.
func (l *Limiter) Allow(addr, route string) (bool, time.Duration) {
	key := addr + "|" + route
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxEntries {
			l.evictStaleLocked(now)
		}
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}

	if now.Sub(b.windowStart) >= l.cfg.Window {
		b.windowStart = now
		b.count = 0
	}

	if b.count >= l.cfg.Capacity {
		if l.cfg.OnReject != nil {
			l.cfg.OnReject()
		}
		return false, b.windowStart.Add(l.cfg.Window).Sub(now)
	}
	b.count++
	return true, 0
}

// evictStaleLocked drops buckets whose window has already elapsed. Called
// with the mutex held when the map hits its cap.
func (l *Limiter) evictStaleLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.cfg.Window {
			delete(l.buckets, key)
		}
	}
}

// Len returns the current number of tracked buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
