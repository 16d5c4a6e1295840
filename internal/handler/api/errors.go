package api

import (
	"github.com/labstack/echo/v4"

	"StockCast/internal/domain/errs"
	xhttp "StockCast/pkg/http"
	xlogger "StockCast/pkg/logger"
)

// toAppError maps the domain taxonomy onto HTTP. Internal failures never leak their message.
func toAppError(err error) *xhttp.AppError {
	msg := errs.MessageOf(err)
	switch errs.KindOf(err) {
	case errs.KindInvalidArgument:
		return xhttp.BadRequestError(msg).WithError(err)
	case errs.KindNotFound:
		return xhttp.NotFoundError(msg).WithError(err)
	case errs.KindUnavailable:
		return xhttp.ServiceUnavailableError(msg).WithError(err)
	default:
		return xhttp.InternalError("internal server error").WithError(err)
	}
}

func (h *Handler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	fields := []xlogger.Field{
		xlogger.String("op", op),
		xlogger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		xlogger.Error(err),
	}
	if errs.KindOf(err) == errs.KindInternal {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Debug("request rejected", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}
