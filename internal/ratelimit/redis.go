package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter allows perMinute requests per key in fixed one-minute
// windows. The counter key expires shortly after its window closes.
type RedisLimiter struct {
	client    redis.UniversalClient
	prefix    string
	perMinute int64
	now       func() time.Time
}

// NewRedisLimiter creates a limiter. The client is owned by the caller and
// is not closed by Close.
func NewRedisLimiter(client redis.UniversalClient, prefix string, perMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, perMinute: int64(perMinute), now: time.Now}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Truncate(time.Minute)
	windowKey := fmt.Sprintf("%s%s:%d", l.prefix, key, window.Unix())

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, time.Minute+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("ratelimit: redis: %w", err)
	}
	return incr.Val() <= l.perMinute, nil
}

// Close is a no-op.
func (l *RedisLimiter) Close() error { return nil }
