package middleware

import (
	"fmt"
	"math"

	"github.com/labstack/echo/v4"

	"helpdesk/internal/infrastructure/ratelimit"
	"helpdesk/pkg/errors"
	"helpdesk/pkg/logger"
	"helpdesk/pkg/response"
)

// RateLimit throttles requests per client IP under the given action bucket.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return rateLimit(limiter, action, func(c echo.Context) string {
		return c.RealIP()
	})
}

// RateLimitPerConversation keys the bucket by client IP and the :id route
// parameter, so agents sharing an office IP do not drain each other's budget
// across conversations.
func RateLimitPerConversation(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return rateLimit(limiter, action, func(c echo.Context) string {
		return c.RealIP() + "/" + c.Param("id")
	})
}

func rateLimit(limiter *ratelimit.RateLimiter, action string, keyFunc func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := keyFunc(c)

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("RATE LIMIT: Blocked %s request from %s (retry in %ds)", action, key, retryAfter)
				c.Response().Header().Set("Retry-After", fmt.Sprint(retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
