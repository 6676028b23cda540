package httpx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every replica.
// It allows RequestsPerWindow per key per window; Burst is ignored.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// NewRedisLimiter creates a limiter whose keys are namespaced under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(cfg.RequestsPerWindow),
		window: cfg.Window,
		Now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.Now()
	slot := now.UnixNano() / int64(l.window)
	k := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis limiter: %w", err)
	}

	if incr.Val() <= l.limit {
		return Decision{Allowed: true}, nil
	}
	reset := time.Unix(0, (slot+1)*int64(l.window))
	return Decision{RetryAfter: reset.Sub(now)}, nil
}

// RedisLimiterFactory builds a RedisLimiter per profile, keyed
// "{prefix}:{profile}:{key}:{window}".
func RedisLimiterFactory(client redis.Cmdable, prefix string) LimiterFactory {
	return func(name string, cfg RateLimitConfig) Limiter {
		return NewRedisLimiter(client, prefix+":"+name, cfg)
	}
}
