package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per key in fixed windows shared by every
// service instance
type RedisRateLimiter struct {
	client    *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter creates a limiter allowing limit requests per window.
// Keys are stored under keyPrefix + "ratelimit:".
func NewRedisRateLimiter(client *redis.Client, keyPrefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix + "ratelimit:",
		limit:     limit,
		window:    window,
	}
}

// Allow increments the counter for key and reports whether the request is
// within the limit, along with the requests left in the window.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	k := l.counterKey(key)

	// NX keeps the expiry of the first hit so the window does not slide.
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}

	count := int(incr.Val())
	remaining := max(l.limit-count, 0)
	return count <= l.limit, remaining, nil
}

func (l *RedisRateLimiter) counterKey(key string) string {
	return l.keyPrefix + key
}

// Limit returns the number of requests allowed per window
func (l *RedisRateLimiter) Limit() int {
	return l.limit
}
