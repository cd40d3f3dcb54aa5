package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
)

const (
	// RateLimitWindow is the fixed counting window
	RateLimitWindow = time.Minute
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked after exceeding the limit
	BlockedIPDuration = 15 * time.Minute
)

// RedisRateLimiter counts requests per client IP in fixed windows shared by
// every instance. Clients that exceed the limit are blocked for
// BlockedIPDuration. Redis errors let the request through.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
}

func NewRedisRateLimiter(client *redis.Client, limitPerWindow int) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limitPerWindow}
}

func (l *RedisRateLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.client == nil || l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ipAddress := clientip.RealClientIP(r)

		blocked, err := l.IsBlocked(ctx, ipAddress)
		if err == nil && blocked {
			writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
			return
		}

		count, err := l.hit(ctx, ipAddress)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > int64(l.limit) {
			if err := l.client.Set(ctx, BlockedIPKeyPrefix+ipAddress, "1", BlockedIPDuration).Err(); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("ip", ipAddress).Msg("failed to block ip")
			}
			writeErrorBody(w, http.StatusTooManyRequests, errorBody{
				Message:    "Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.",
				RetryAfter: int(BlockedIPDuration.Seconds()),
			})
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(l.limit)-count, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(RateLimitWindow).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// hit increments the window counter, starting the window on the first hit.
func (l *RedisRateLimiter) hit(ctx context.Context, ipAddress string) (int64, error) {
	key := RateLimitKeyPrefix + ipAddress
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, RateLimitWindow).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// IsBlocked checks if an IP is currently blocked
func (l *RedisRateLimiter) IsBlocked(ctx context.Context, ipAddress string) (bool, error) {
	count, err := l.client.Exists(ctx, BlockedIPKeyPrefix+ipAddress).Result()
	return count > 0, err
}

// Unblock removes an IP from the blocked list
func (l *RedisRateLimiter) Unblock(ctx context.Context, ipAddress string) error {
	return l.client.Del(ctx, BlockedIPKeyPrefix+ipAddress).Err()
}
