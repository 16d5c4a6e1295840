package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the API renders to clients. Status selects the HTTP status; Err is
// logged but never serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates an application error with an explicit code.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusMethodNotAllowed:    "ERR_METHOD_NOT_ALLOWED",
	http.StatusTooManyRequests:     "ERR_RATE_LIMITED",
	http.StatusInternalServerError: "ERR_INTERNAL",
	http.StatusServiceUnavailable:  "ERR_SERVICE_UNAVAILABLE",
}

// CodeForStatus returns the error code rendered for an HTTP status.
func CodeForStatus(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	return "ERR_HTTP"
}

// errorForStatus creates an error whose code follows from status.
func errorForStatus(status int, message string) *AppError {
	return NewAppError(CodeForStatus(status), "", message, status)
}

func NotFoundError(message string) *AppError {
	return errorForStatus(http.StatusNotFound, message)
}

func BadRequestError(message string) *AppError {
	return errorForStatus(http.StatusBadRequest, message)
}

func ServiceUnavailableError(message string) *AppError {
	return errorForStatus(http.StatusServiceUnavailable, message)
}

func InternalError(message string) *AppError {
	return errorForStatus(http.StatusInternalServerError, message)
}
