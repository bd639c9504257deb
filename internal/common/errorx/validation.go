package errorx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromBindError converts a gin binding failure into a 400 with a field list
func FromBindError(err error) *APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{
				Field:   fieldPath(fe),
				Message: describe(fe),
				Value:   fe.Value(),
			})
		}
		return ErrInvalidInput.WithMessage("Validation failed").WithFieldErrors(fields...)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return ErrInvalidFormat.WithMessage("Request body is empty")
	case errors.As(err, &syntaxErr):
		return ErrInvalidFormat.WithDetail("offset", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return ErrInvalidInput.WithMessage("Validation failed").WithFieldErrors(FieldError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type),
		})
	}
	return ErrInvalidInput.WithDetail("reason", err.Error())
}

// Validation builds a 400 from explicit field failures
func Validation(fields ...FieldError) *APIError {
	return ErrInvalidInput.WithMessage("Validation failed").WithFieldErrors(fields...)
}

// fieldPath drops the top level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", minMaxUnit(fe))
	case "max":
		return fmt.Sprintf("must be at most %s", minMaxUnit(fe))
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "agriyear":
		return "must be a year between 1950 and 2100"
	case "role":
		return "must be one of [guest user admin researcher]"
	case "eqfield":
		return fmt.Sprintf("must match %s", fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

func minMaxUnit(fe validator.FieldError) string {
	switch fe.Kind().String() {
	case "string":
		return fe.Param() + " characters"
	case "slice", "map", "array":
		return fe.Param() + " items"
	}
	return fe.Param()
}
