package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse is the envelope of every /api/v1 body and of every error.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_LEN"`
	Field   string                 `json:"field,omitempty" example:"initial_prices"`
	Message string                 `json:"message,omitempty" example:"initial_prices must contain exactly 100 values"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps a list with its total count.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

func envelope(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return envelope(c, http.StatusOK, data)
}

// AcceptedResponse answers a request whose work continues in the background.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return envelope(c, http.StatusAccepted, data)
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return envelope(c, http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

// BadRequestResponse renders the output of ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, details interface{}) error {
	return envelope(c, http.StatusBadRequest, details)
}

func InternalServerErrorResponse(c echo.Context) error {
	return AppErrorResponse(c, InternalError("internal server error"))
}

// AppErrorResponse renders err when it is an *AppError and a generic 500 otherwise.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = InternalError("internal server error")
	}
	return envelope(c, appErr.Status, []*AppError{appErr})
}
