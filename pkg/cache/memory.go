package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// MemoryOption configures MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the number of entries; the least recently used one is evicted first.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(mc *MemoryCache) {
		if n > 0 {
			mc.maxSize = n
		}
	}
}

// WithMemoryDefaultTTL applies to Set calls without a TTL.
func WithMemoryDefaultTTL(ttl time.Duration) MemoryOption {
	return func(mc *MemoryCache) {
		if ttl > 0 {
			mc.defaultTTL = ttl
		}
	}
}

// WithMemoryCleanup sets how often expired entries are swept.
func WithMemoryCleanup(every time.Duration) MemoryOption {
	return func(mc *MemoryCache) {
		if every > 0 {
			mc.sweepEvery = every
		}
	}
}

type memoryEntry struct {
	key      string
	data     []byte
	expireAt time.Time
}

// MemoryCache is an in-process LRU. It is the L1 of LayeredCache and the whole cache when Redis is off.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	order      *list.List // front is most recently used
	maxSize    int
	defaultTTL time.Duration
	sweepEvery time.Duration
	stop       chan struct{}
	closeOnce  sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	mc := &MemoryCache{
		items:      make(map[string]*list.Element),
		order:      list.New(),
		maxSize:    1000,
		defaultTTL: 24 * time.Hour,
		sweepEvery: 5 * time.Minute,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(mc)
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = mc.defaultTTL
	}
	mc.mu.Lock()
	mc.put(key, data, time.Now().Add(ttl))
	mc.mu.Unlock()
	return nil
}

// put requires mu.
func (mc *MemoryCache) put(key string, data []byte, expireAt time.Time) {
	if el, ok := mc.items[key]; ok {
		e := el.Value.(*memoryEntry)
		e.data, e.expireAt = data, expireAt
		mc.order.MoveToFront(el)
		return
	}
	if mc.order.Len() >= mc.maxSize {
		if oldest := mc.order.Back(); oldest != nil {
			mc.remove(oldest)
		}
	}
	mc.items[key] = mc.order.PushFront(&memoryEntry{key: key, data: data, expireAt: expireAt})
}

// live returns the entry for key when present and unexpired, dropping it otherwise. Requires mu.
func (mc *MemoryCache) live(key string, now time.Time) (*list.Element, bool) {
	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	if now.After(el.Value.(*memoryEntry).expireAt) {
		mc.remove(el)
		return nil, false
	}
	return el, true
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest any) error {
	mc.mu.Lock()
	el, ok := mc.live(key, time.Now())
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.order.MoveToFront(el)
	data := el.Value.(*memoryEntry).data
	mc.mu.Unlock()
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

// DeleteByPattern removes keys matching a glob such as "forecast:*".
func (mc *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k, el := range mc.items {
		if ok, _ := path.Match(pattern, k); ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, k := range keys {
		if _, ok := mc.live(k, now); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	if _, held := mc.live(key, now); held {
		return false, nil
	}
	mc.put(key, []byte("locked"), now.Add(ttl))
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// Len counts stored entries, expired ones included until they are swept or touched.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.order.Len()
}

func (mc *MemoryCache) sweep() {
	t := time.NewTicker(mc.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-mc.stop:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if now.After(el.Value.(*memoryEntry).expireAt) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stop) })
	return nil
}
