package cache

import (
	"context"
	"time"
)

// Store is a byte oriented key/value cache with per-key expiration.
// A zero expiration keeps the entry until it is evicted. TryLock/Unlock
// give a short lived exclusive marker on a key.
type Store interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, expiration time.Duration) error
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by stores backed by a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}
