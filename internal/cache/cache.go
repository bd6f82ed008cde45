// Package cache provides the cache-aside store for REST snapshot responses.
//
// Redis is used when reachable; otherwise an in-process map with the same
// TTL semantics takes over.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// DefaultTTL is how long a snapshot response stays cached.
const DefaultTTL = 60 * time.Second

// PingTimeout bounds the startup reachability check against Redis.
const PingTimeout = time.Second

// Cache stores opaque values by key with a TTL.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Backend names the implementation ("redis" or "memory").
	Backend() string

	// Close releases resources.
	Close() error
}

// New returns a Redis cache when redisURL is set and answers a ping within
// PingTimeout, and a Memory cache otherwise.
func New(ctx context.Context, redisURL string, logger *slog.Logger) Cache {
	if logger == nil {
		logger = slog.Default()
	}

	if redisURL == "" {
		logger.Info("snapshot cache using memory backend")
		return NewMemory()
	}

	r, err := NewRedis(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, using memory cache", "error", err)
		return NewMemory()
	}

	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, using memory cache", "error", err)
		r.Close()
		return NewMemory()
	}

	logger.Info("snapshot cache using redis backend")
	return r
}
