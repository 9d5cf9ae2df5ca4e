package cache

import (
	"context"
	"time"
)

// LayeredCache implements two-level cache (L1: Memory, L2: shared store, usually Redis).
type LayeredCache struct {
	memCache *MemoryCache
	remote   Store
	memTTL   time.Duration
}

func NewLayeredCache(remote Store, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		memCache: NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote:   remote,
		memTTL:   cfg.MemoryTTL,
	}
}

// SetBytes writes through: L2 first, then memory.
func (lc *LayeredCache) SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if err := lc.remote.SetBytes(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.memCache.SetBytes(ctx, key, value, lc.l1TTL(expiration))
	return nil
}

func (lc *LayeredCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	if b, ok, _ := lc.memCache.GetBytes(ctx, key); ok {
		return b, true, nil
	}
	b, ok, err := lc.remote.GetBytes(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = lc.memCache.SetBytes(ctx, key, b, lc.memTTL)
	return b, true, nil
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.remote.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.remote.Unlock(ctx, key)
}

// Ping checks the shared layer when it is a remote server.
func (lc *LayeredCache) Ping(ctx context.Context) error {
	if p, ok := lc.remote.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes both cache layers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.remote.Close()
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration <= 0 || (lc.memTTL > 0 && lc.memTTL < expiration) {
		return lc.memTTL
	}
	return expiration
}
