package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/hera/backend/internal/application/dispatch"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/interfaces/http/dto"
)

// ErrRequestTooLarge is reported when a body is cut off by BodyLimit
var ErrRequestTooLarge = shared.NewDomainError(shared.CategoryInput, dto.CodeRequestTooLarge,
	"Request body exceeds maximum allowed size")

// SetupValidator makes validation errors report JSON field names
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// BindError converts a body decoding or validation failure to an
// INVALID_REQUEST rejection listing the offending fields
func BindError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrRequestTooLarge.WithDetail("limit", maxErr.Limit)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]dto.ValidationDetail, 0, len(validationErrors))
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   fieldPath(e),
				Message: getValidationMessage(e),
			})
		}
		return dispatch.ErrInvalidRequest.WithDetail("fields", details)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return dispatch.ErrInvalidRequest.WithDetail("reason", "malformed JSON").
			WithDetail("offset", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return dispatch.ErrInvalidRequest.WithDetail("reason", "wrong JSON type").
			WithDetail("field", typeErr.Field)
	}
	return dispatch.ErrInvalidRequest.WithDetail("reason", err.Error())
}

// fieldPath drops the root struct name from a namespace such as
// EntityRequest.dynamic_fields[0].field_name
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	default:
		return "Invalid value"
	}
}
