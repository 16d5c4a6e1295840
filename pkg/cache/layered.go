package cache

import (
	"context"
	"time"
)

// LayeredOption configures LayeredCache.
type LayeredOption func(*layeredSettings)

type layeredSettings struct {
	size int
	ttl  time.Duration
}

// WithLayeredMemorySize bounds the L1 entries.
func WithLayeredMemorySize(n int) LayeredOption {
	return func(s *layeredSettings) {
		if n > 0 {
			s.size = n
		}
	}
}

// WithLayeredMemoryTTL caps how long L1 keeps an entry, whatever the remote TTL.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(s *layeredSettings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// LayeredCache reads through a short lived in-process L1 to a shared L2 and writes through to both.
// Locks live only in L2 so they hold across instances.
type LayeredCache struct {
	l1    *MemoryCache
	l2    Service
	l1TTL time.Duration
}

func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	s := layeredSettings{size: 1000, ttl: time.Minute}
	for _, opt := range opts {
		opt(&s)
	}
	return &LayeredCache{
		l1:    NewMemoryCache(WithMemoryMaxSize(s.size), WithMemoryDefaultTTL(s.ttl)),
		l2:    remote,
		l1TTL: s.ttl,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := lc.l2.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	l1 := lc.l1TTL
	if ttl > 0 && ttl < l1 {
		l1 = ttl
	}
	return lc.l1.Set(ctx, key, value, l1)
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest any) error {
	if lc.l1.Get(ctx, key, dest) == nil {
		return nil
	}
	var raw []byte
	if err := lc.l2.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.l1.Set(ctx, key, raw, lc.l1TTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.l1.Delete(ctx, keys...)
	return lc.l2.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.l1.DeleteByPattern(ctx, pattern)
	return lc.l2.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	if hit, _ := lc.l1.Exists(ctx, keys...); hit {
		return true, nil
	}
	return lc.l2.Exists(ctx, keys...)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.l2.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.l2.Unlock(ctx, key)
}

// Close stops the L1 sweeper. The remote client belongs to the caller.
func (lc *LayeredCache) Close() error {
	return lc.l1.Close()
}
