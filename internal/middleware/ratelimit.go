package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/credential-service/internal/ratelimit"
)

// RateLimit admits requests through limiter under category. Rejected
// requests get 429 with Retry-After. Limiter errors fail open.
func RateLimit(limiter ratelimit.Limiter, category string, rule ratelimit.Rule, log *zap.Logger) echo.MiddlewareFunc {
	if limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := ClientKey(c)
			res, err := limiter.Admit(c.Request().Context(), category, key, rule)
			if err != nil {
				log.Warn("rate limiter unavailable, admitting request",
					zap.String("category", category), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				secs := int(res.RetryAfter(time.Now()) / time.Second)
				h.Set("Retry-After", strconv.Itoa(secs))
				log.Info("rate limit exceeded",
					zap.String("category", category),
					zap.String("client", key),
					zap.String("request_id", RequestID(c)))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
