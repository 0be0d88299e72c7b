package security

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles the operator routes. Reconciliations are expensive and
// a stuck script must not be able to hammer the roster and signal tables.
type RateLimiter interface {
	Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (int, error)
}

type InMemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewInMemoryRateLimiter() *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Run evicts idle identifiers until ctx is done.
func (rl *InMemoryRateLimiter) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-every)
			for key, hits := range rl.windows {
				if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// prune drops hits older than window. Callers hold mu.
func (rl *InMemoryRateLimiter) prune(identifier string, window time.Duration) []time.Time {
	start := rl.now().Add(-window)
	hits := rl.windows[identifier]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(start) {
			kept = append(kept, t)
		}
	}
	rl.windows[identifier] = kept
	return kept
}

func (rl *InMemoryRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	hits := rl.prune(identifier, window)
	if len(hits) >= limit {
		return false, nil
	}
	rl.windows[identifier] = append(hits, rl.now())
	return true, nil
}

func (rl *InMemoryRateLimiter) Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return max(limit-len(rl.prune(identifier, window)), 0), nil
}

// RedisRateLimiter is a fixed-window counter shared by every API instance.
type RedisRateLimiter struct {
	client redis.Cmdable
	prefix string
}

func NewRedisRateLimiter(client redis.Cmdable) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: "absences:rl:",
	}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (bool, error) {
	key := rl.prefix + identifier

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline failed: %w", err)
	}

	return incr.Val() <= int64(limit), nil
}

func (rl *RedisRateLimiter) Remaining(ctx context.Context, identifier string, limit int, window time.Duration) (int, error) {
	count, err := rl.client.Get(ctx, rl.prefix+identifier).Int()
	if err == redis.Nil {
		return limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return max(limit-count, 0), nil
}

// RouteRateLimitMiddleware limits per authenticated principal, or per client IP
// when the route is public. Limiter failures let the request through.
func RouteRateLimitMiddleware(rl RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		identifier := c.ClientIP()
		if principal, ok := PrincipalFromContext(ctx); ok && principal != "" {
			identifier = "p:" + principal
		}

		allowed, err := rl.Allow(ctx, identifier, limit, window)
		if err != nil {
			c.Next()
			return
		}

		remaining, _ := rl.Remaining(ctx, identifier, limit, window)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "TOO_MANY_REQUESTS",
					"message": "Rate limit exceeded. Please try again later.",
				},
			})
			return
		}

		c.Next()
	}
}
