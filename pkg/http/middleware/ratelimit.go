package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// LimitChecker is the slice of the rate limiter the middleware needs.
type LimitChecker interface {
	CheckLimit(identifier string) bool
}

// RateLimit denies requests over the caller's window budget with 429 and a
// Retry-After hint. Callers are identified by client IP.
func RateLimit(limiter LimitChecker, retryAfter time.Duration) echo.MiddlewareFunc {
	if retryAfter <= 0 {
		retryAfter = time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.CheckLimit(c.RealIP()) {
				c.Response().Header().Set("Retry-After",
					strconv.Itoa(int(retryAfter/time.Second)))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": "Too Many Requests",
				})
			}
			return next(c)
		}
	}
}
