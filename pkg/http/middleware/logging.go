package middleware

import (
	"time"

	"StockCast/pkg/logger"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestID assigns an X-Request-Id to every request that does not carry one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
				c.Request().Header.Set(echo.HeaderXRequestID, id)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}

// RequestLogging logs HTTP requests.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []logger.Field{
				logger.String("request_id", req.Header.Get(echo.HeaderXRequestID)),
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.String("remote", c.RealIP()),
				logger.Int("status", res.Status),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if res.Status >= 500 {
				l.Warn("http request", fields...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
