package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinicore/clinicore-backend/pkg/config"
	"github.com/clinicore/clinicore-backend/pkg/errors"
	"github.com/clinicore/clinicore-backend/pkg/httputil"
	"github.com/clinicore/clinicore-backend/pkg/logger"
)

// NewRedisClient creates a Redis client from a redis:// URL
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Limiter is a fixed-window rate limiter backed by Redis. Each client IP gets
// a counter keyed by the current window; the first hit in a window sets the
// key expiry to the window length.
type Limiter struct {
	client   *redis.Client
	window   time.Duration
	requests int
	logger   *logger.Logger
}

// New creates a new rate limiter
func New(client *redis.Client, cfg *config.RateLimitConfig, log *logger.Logger) *Limiter {
	return &Limiter{
		client:   client,
		window:   cfg.Window,
		requests: cfg.Requests,
		logger:   log,
	}
}

// Middleware enforces the limit and sets the standard X-RateLimit-* headers.
// Redis outages fail open: a request is never rejected because the limiter
// store is unreachable.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		windowStart := time.Now().Truncate(l.window)
		key := fmt.Sprintf("ratelimit:%s:%d", ip, windowStart.Unix())

		count, err := l.client.Incr(r.Context(), key).Result()
		if err != nil {
			l.logger.Warn().Err(err).Msg("rate limiter unavailable, failing open")
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			l.client.Expire(r.Context(), key, l.window)
		}

		remaining := int64(l.requests) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := windowStart.Add(l.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.requests))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(l.requests) {
			retryAfter := strconv.Itoa(int(time.Until(reset).Seconds()) + 1)
			w.Header().Set("Retry-After", retryAfter)
			httputil.Error(w, errors.RateLimited(retryAfter))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the remote address without the port. chi's RealIP
// middleware has already rewritten RemoteAddr from trusted proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
