package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// RequestRateLimit is a fixed-window limiter keyed by authenticated
// user, falling back to client IP. Bind it to mutation-heavy routes
// like request submission.
func (r *RateLimiter) RequestRateLimit(limit int, window time.Duration) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		identity := e.RealIP()
		if e.Auth != nil {
			identity = fmt.Sprintf("user:%s", e.Auth.Id)
		}

		key := fmt.Sprintf("ratelimit:%s:%s", e.Request.URL.Path, identity)
		if !r.allow(e.Request.Context(), key, limit, window) {
			return apis.NewTooManyRequestsError("Rate limit exceeded. Please try again later.", nil)
		}

		return e.Next()
	}
}

// AntiBotMiddleware rejects requests with obviously scripted user
// agents and throttles aggressive clients per IP.
func (r *RateLimiter) AntiBotMiddleware() func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		userAgent := e.Request.Header.Get("User-Agent")
		if r.isSuspiciousUserAgent(userAgent) {
			return apis.NewForbiddenError("Access denied", nil)
		}

		key := fmt.Sprintf("antibot:%s", e.RealIP())
		if !r.allow(e.Request.Context(), key, 120, time.Minute) {
			return apis.NewTooManyRequestsError("Too many requests", nil)
		}

		return e.Next()
	}
}

// allow applies one fixed-window hit against key. Redis errors fail
// open.
func (r *RateLimiter) allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}
	return count <= int64(limit)
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
