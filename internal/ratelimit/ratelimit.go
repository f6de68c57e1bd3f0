// Package ratelimit provides the per-key token bucket used for login attempts
// and attachment uploads.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter refills rate tokens per window for every key. A nil Limiter or a
// non-positive rate allows everything.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
	now     func() time.Time
}

type bucket struct {
	tokens   int
	lastFill time.Time
}

func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
		now:     time.Now,
	}
}

// Allow takes a token for key. When none is left it reports how long until
// the next one is due.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l == nil || l.rate <= 0 || l.window <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.rate - 1, lastFill: now}
		return true, 0
	}

	perToken := l.window / time.Duration(l.rate)
	if refill := int(now.Sub(b.lastFill) / perToken); refill > 0 {
		b.tokens = min(l.rate, b.tokens+refill)
		b.lastFill = b.lastFill.Add(time.Duration(refill) * perToken)
	}
	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, b.lastFill.Add(perToken).Sub(now)
}

// Reset forgets key, e.g. after a successful login.
func (l *Limiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}
