package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key. Buckets idle for longer than ttl are dropped on the next sweep.
type Limiter struct {
	mu    sync.Mutex
	m     map[string]*entry
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time
}

// New creates a keyed limiter allowing perSecond events with the given burst.
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		m:     make(map[string]*entry),
		limit: rate.Limit(perSecond),
		burst: burst,
		ttl:   10 * time.Minute,
		now:   time.Now,
	}
}

func (l *Limiter) get(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Allow reports whether one event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).AllowN(l.now(), 1)
}

// Wait blocks until an event for key is permitted or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}

// Sweep drops buckets not used within ttl and returns how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.ttl)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, e := range l.m {
		if e.lastSeen.Before(cutoff) {
			delete(l.m, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
