package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"StockCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Recover turns a handler panic into a 500 in the AppError envelope and logs the stack.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				l.Error("handler panic",
					logger.String("request_id", c.Request().Header.Get(echo.HeaderXRequestID)),
					logger.String("route", c.Path()),
					logger.String("panic", fmt.Sprint(r)),
					logger.String("stack", string(debug.Stack())),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, echo.Map{
					"status":  http.StatusInternalServerError,
					"message": "internal server error",
					"data":    []echo.Map{{"code": "ERR_INTERNAL", "message": "internal server error"}},
				})
			}()
			return next(c)
		}
	}
}
