package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 200

// RedisCache stores entries in Redis under "<prefix>:<key>". The client is owned by the caller and
// usually shared with the job queue.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisCache(rdb redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "stockcast"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) key(k string) string { return c.prefix + ":" + k }

func (c *RedisCache) keys(ks []string) []string {
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = c.key(k)
	}
	return out
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return err
	}
	return decode(data, dest)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Unlink(ctx, c.keys(keys)...).Err()
}

// DeleteByPattern scans for the prefixed pattern and unlinks matches in batches.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, c.key(pattern), scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.rdb.Unlink(ctx, batch...).Err()
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return flush()
}

func (c *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.keys(keys)...).Result()
	return n > 0, err
}

// TryLock takes key with SET NX; the lock expires on its own after ttl.
func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.key(key), "locked", ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}
