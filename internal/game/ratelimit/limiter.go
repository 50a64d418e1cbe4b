// Package ratelimit provides a fixed-window per-frame-type throttle.
// Each connection owns one Limiter; each recognized frame type gets its
// own one-second window bucket.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed bucket duration.
const Window = time.Second

// Rates maps a frame type to its per-window budget. Types absent from
// the map are unlimited.
type Rates map[string]int

// DefaultRates returns the stock per-second budgets.
func DefaultRates() Rates {
	return Rates{
		"position-update": 30,
		"chat":            5,
		"action":          20,
	}
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter tracks fixed-window counters per frame type. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	rates   Rates
	buckets map[string]*bucket
	now     func() time.Time
}

// New creates a Limiter with the given budgets.
//
// Precondition: rates must be non-nil.
// Postcondition: Returns a Limiter whose buckets are empty.
func New(rates Rates) *Limiter {
	return &Limiter{
		rates:   rates,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// NewWithClock creates a Limiter with an injected time source, for
// tests that need deterministic window boundaries.
func NewWithClock(rates Rates, now func() time.Time) *Limiter {
	l := New(rates)
	l.now = now
	return l
}

// Allow counts a frame of the given type against its window and reports
// whether it is within budget. Bucket state mutates on every call,
// including rejected ones. Unrecognized types always pass.
func (l *Limiter) Allow(frameType string) bool {
	max, limited := l.rates[frameType]
	if !limited {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[frameType]
	if !ok {
		b = &bucket{}
		l.buckets[frameType] = b
	}
	if now.After(b.resetAt) {
		b.count = 0
		b.resetAt = now.Add(Window)
	}
	b.count++
	return b.count <= max
}
