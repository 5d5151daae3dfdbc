package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/groveauth/grove/pkg/httputil"
)

// RateLimitConfig bounds requests per key per window
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimiter is a Redis-backed fixed-window rate limiter shared across
// instances. It guards the DNS verification endpoint so that repeated
// verify calls cannot be used to hammer external resolvers.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	prefix string
}

// NewRateLimiter creates a new Redis-backed rate limiter
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig, prefix string) *RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks whether a request for key is within the window limit. Redis
// errors fail open: rate limiting protects a convenience path and must not
// take the service down with it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Reset clears the window for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// LimitByPathVar returns middleware rate limiting by a mux path variable.
// A nil limiter disables limiting.
func LimitByPathVar(limiter *RateLimiter, varName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := mux.Vars(r)[varName]
			if key == "" {
				key = r.RemoteAddr
			}
			allowed, _ := limiter.Allow(r.Context(), key)
			if !allowed {
				httputil.WriteTooManyRequests(w, "rate limit exceeded, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
