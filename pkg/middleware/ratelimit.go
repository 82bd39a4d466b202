package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/observability"
)

// LoginRateLimiter throttles login attempts per client IP using a
// redis fixed window. On redis errors it fails open so an unavailable
// cache never locks everyone out.
type LoginRateLimiter struct {
	redis    *redis.Client
	logger   *observability.Logger
	attempts int
	window   time.Duration
	prefix   string
}

// NewLoginRateLimiter creates a login rate limiter. A nil redis client
// disables limiting entirely.
func NewLoginRateLimiter(redisClient *redis.Client, logger *observability.Logger, attempts int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		redis:    redisClient,
		logger:   logger,
		attempts: attempts,
		window:   window,
		prefix:   "ratelimit:login",
	}
}

// Allow checks whether another attempt from this key is permitted
func (rl *LoginRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on redis errors to prevent service disruption
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.attempts), nil
}

// Handler wraps a handler with the rate limit check
func (rl *LoginRateLimiter) Handler(next http.Handler) http.Handler {
	if rl.redis == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, err := rl.Allow(r.Context(), clientIP(r))
		if err != nil {
			rl.logger.WithError(err).Warn("login rate limiter unavailable")
		}

		if !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rl.window.Seconds()))
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "Too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the originating client address
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
