package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report the wire name of a field, not the Go name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ValidationErrors lists every rejected field of one request.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate applies defaults and validation tags outside of a request, e.g. to a WebSocket message.
// The returned error is ValidationErrors.
func Validate(v interface{}) error {
	if err := defaults.Set(v); err != nil {
		return describe(err)
	}
	if err := validate.Struct(v); err != nil {
		return describe(err)
	}
	return nil
}

// ReadAndValidateRequest binds the body, query and path params into req, applies `default` tags
// and validates it. It returns nil when req is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) ValidationErrors {
	if err := c.Bind(req); err != nil {
		return describe(err)
	}
	if err := defaults.Set(req); err != nil {
		return describe(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return describe(err)
	}
	return nil
}

func describe(err error) ValidationErrors {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make(ValidationErrors, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return ValidationErrors{{Code: "ERR_MALFORMED", Message: msg}}
}

var tagMessages = map[string]string{
	"required": "%s is required",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be greater than or equal to %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be less than or equal to %s",
	"uuid":     "%s must be a UUID",
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	isString := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "len":
		if isString {
			return fmt.Sprintf("%s must be exactly %s characters", field, param)
		}
		return fmt.Sprintf("%s must contain exactly %s values", field, param)
	case "min", "max":
		bound := "at least"
		if fe.Tag() == "max" {
			bound = "at most"
		}
		if isString {
			return fmt.Sprintf("%s must be %s %s characters", field, bound, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, bound, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	}

	if format, ok := tagMessages[fe.Tag()]; ok {
		if strings.Count(format, "%s") == 2 {
			return fmt.Sprintf(format, field, param)
		}
		return fmt.Sprintf(format, field)
	}
	return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	switch fe.Tag() {
	case "len":
		return map[string]interface{}{"len": fe.Param()}
	case "min", "gte":
		return map[string]interface{}{"min": fe.Param()}
	case "max", "lte":
		return map[string]interface{}{"max": fe.Param()}
	case "gt", "lt":
		return map[string]interface{}{"value": fe.Param()}
	case "oneof":
		return map[string]interface{}{"options": strings.Split(fe.Param(), " ")}
	}
	return nil
}
