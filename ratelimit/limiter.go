// Package ratelimit caps how often content-bearing frames may be sent.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults applied by New when a field is left zero.
const (
	DefaultWindow   = 60 * time.Second
	DefaultMaxSends = 20
)

// Config controls a Limiter.
type Config struct {
	Enabled  bool
	Window   time.Duration
	MaxSends int
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// Limiter is a sliding-window send counter. It remembers the timestamps of
// recent allowed sends and refuses a new one once MaxSends of them fall
// inside the trailing Window.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	entries []time.Time
}

// New creates a limiter.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxSends <= 0 {
		cfg.MaxSends = DefaultMaxSends
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		entries: make([]time.Time, 0, cfg.MaxSends),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether the limiter enforces anything.
func (l *Limiter) Enabled() bool { return l.cfg.Enabled }

// Allow checks and records in one step: if fewer than MaxSends sends fall
// inside the window it records now and returns true, otherwise it returns
// false and records nothing. A disabled limiter always allows.
func (l *Limiter) Allow() bool {
	if !l.cfg.Enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	if len(l.entries) >= l.cfg.MaxSends {
		return false
	}
	l.entries = append(l.entries, now)
	return true
}

// evict drops entries that have left the window. Caller holds mu.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	start := 0
	for start < len(l.entries) && !l.entries[start].After(cutoff) {
		start++
	}
	if start > 0 {
		l.entries = append(l.entries[:0], l.entries[start:]...)
	}
}

// Len returns the number of sends currently inside the window.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.entries)
}

// Reset forgets all recorded sends.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
