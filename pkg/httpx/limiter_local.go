package httpx

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// DefaultLocalLimiterSize caps the number of tracked keys per limiter.
const DefaultLocalLimiterSize = 10_000

// LocalLimiter is an in-process token-bucket limiter. Buckets live in an
// expiring LRU so idle or one-off keys are dropped.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// NewLocalLimiter returns a LocalLimiter tracking at most size keys.
func NewLocalLimiter(cfg RateLimitConfig, size int) *LocalLimiter {
	if size <= 0 {
		size = DefaultLocalLimiterSize
	}
	perSecond := float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()

	// A bucket idle for longer than its refill time is full again, so
	// forgetting it changes nothing.
	ttl := cfg.Window
	if refill := time.Duration(float64(cfg.Burst) / perSecond * float64(time.Second)); refill > ttl {
		ttl = refill
	}

	return &LocalLimiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		limit:   rate.Limit(perSecond),
		burst:   cfg.Burst,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-adding refreshes the entry's expiry.
	l.buckets.Add(key, lim)
	l.mu.Unlock()

	if lim.Allow() {
		return Decision{Allowed: true}, nil
	}

	res := lim.Reserve()
	delay := res.Delay()
	res.Cancel()
	return Decision{RetryAfter: delay}, nil
}

// LocalLimiterFactory builds a LocalLimiter per profile.
func LocalLimiterFactory(size int) LimiterFactory {
	return func(_ string, cfg RateLimitConfig) Limiter {
		return NewLocalLimiter(cfg, size)
	}
}
