// Package errs defines the error taxonomy shared by the forecasting core and its collaborators.
// Transport layers translate a Kind into their own status codes; no HTTP concept lives here.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindUnavailable     Kind = "unavailable"
	KindInternal        Kind = "internal"
)

// Sentinels usable with errors.Is.
var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument, Message: "invalid argument"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnavailable     = &Error{Kind: KindUnavailable, Message: "service unavailable"}
	ErrInternal        = &Error{Kind: KindInternal, Message: "internal error"}
)

// Error carries a Kind, a caller-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works for every not-found error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, op, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, a...)}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, op string, cause error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, a...), Err: cause}
}

// InvalidArgument is a shorthand for New(KindInvalidArgument, ...).
func InvalidArgument(op, format string, a ...interface{}) *Error {
	return New(KindInvalidArgument, op, format, a...)
}

// NotFound is a shorthand for New(KindNotFound, ...).
func NotFound(op, format string, a ...interface{}) *Error {
	return New(KindNotFound, op, format, a...)
}

// Unavailable is a shorthand for New(KindUnavailable, ...).
func Unavailable(op, format string, a ...interface{}) *Error {
	return New(KindUnavailable, op, format, a...)
}

// Internal wraps cause as an internal failure.
func Internal(op string, cause error, format string, a ...interface{}) *Error {
	return Wrap(KindInternal, op, cause, format, a...)
}

// KindOf reports the Kind of err. Errors outside the taxonomy are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message of err, without the cause chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
