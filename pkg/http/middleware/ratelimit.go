package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// KeyedLimiter decides whether a request identified by key may proceed.
type KeyedLimiter interface {
	Allow(key string) bool
}

// RateLimit rejects requests over the per-client budget with 429. Paths in skip are never limited.
func RateLimit(l KeyedLimiter, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok {
				return next(c)
			}
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				// same envelope as pkg/http.AppErrorResponse, which this package cannot import
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"status":  http.StatusTooManyRequests,
					"message": http.StatusText(http.StatusTooManyRequests),
					"data": []map[string]string{{
						"code":    "ERR_RATE_LIMITED",
						"message": "rate limit exceeded, retry later",
					}},
				})
			}
			return next(c)
		}
	}
}
