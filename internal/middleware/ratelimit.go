package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
)

// rateLimitKeyPrefix namespaces limiter counters in Redis.
const rateLimitKeyPrefix = "ratelimit:"

// RateLimit returns middleware that allows maxRequests per client IP in each
// fixed window, counted in Redis so the limit holds across instances. name
// separates the counters of different routes. If Redis is unreachable the
// request is let through and a warning logged.
func RateLimit(rdb redis.Cmdable, name string, maxRequests int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			now := time.Now()
			slot := now.UnixNano() / int64(window)
			key := fmt.Sprintf("%s%s:%s:%d", rateLimitKeyPrefix, name, c.RealIP(), slot)

			count, err := incrWindow(c.Request().Context(), rdb, key, window)
			if err != nil {
				slog.Warn("rate limiter unavailable",
					slog.String("limiter", name),
					slog.Any("error", err),
				)
				return next(c)
			}

			if count > int64(maxRequests) {
				reset := time.Unix(0, (slot+1)*int64(window))
				retryAfter := int(reset.Sub(now).Seconds()) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return apperror.NewTooManyRequests("Too many attempts. Please wait a minute and try again.")
			}

			return next(c)
		}
	}
}

// incrWindow bumps the counter and sets its expiry in one round trip.
func incrWindow(ctx context.Context, rdb redis.Cmdable, key string, window time.Duration) (int64, error) {
	pipe := rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
