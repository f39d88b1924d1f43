package cache

import (
	"context"
	"time"
)

// LayeredCache keeps a short-lived in-process copy of Redis entries. Reads try the
// local copy first; writes and deletes go to Redis before the local copy.
type LayeredCache struct {
	local    *MemoryCache
	remote   *RedisCache
	localTTL time.Duration
}

func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := defaultLayeredConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		local:    NewMemoryCache(WithMemoryMaxSize(cfg.LocalSize)),
		remote:   remote,
		localTTL: cfg.LocalTTL,
	}
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	return c.local.Set(ctx, key, value, c.ttlFor(expiration))
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.local.Get(ctx, key, dest) == nil {
		return nil
	}
	if err := c.remote.Get(ctx, key, dest); err != nil {
		return err
	}
	// Another process may delete the Redis entry; the local copy lives at most localTTL.
	_ = c.local.Set(ctx, key, dest, c.localTTL)
	return nil
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	err := c.remote.Delete(ctx, keys...)
	_ = c.local.Delete(ctx, keys...)
	return err
}

func (c *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	err := c.remote.DeleteByPattern(ctx, pattern)
	_ = c.local.DeleteByPattern(ctx, pattern)
	return err
}

// TryLock bypasses the local layer so the lock is shared between processes.
func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.remote.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key string) error {
	return c.remote.Unlock(ctx, key)
}

func (c *LayeredCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}

func (c *LayeredCache) ttlFor(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < c.localTTL {
		return expiration
	}
	return c.localTTL
}
