package dto

import (
	"errors"
	"net/http"

	"github.com/hera/backend/internal/domain/shared"
)

// Transport-level error codes. Domain rejections carry their own codes.
const (
	CodeNotFound              = "not_found"
	CodeRateLimited           = "rate_limited"
	CodeRequestTooLarge       = "request_too_large"
	CodeIdempotencyInProgress = "idempotency_in_progress"
	CodeInternal              = "INTERNAL_ERROR"
)

// CategoryHTTPStatus maps error categories to HTTP status codes
var CategoryHTTPStatus = map[shared.ErrorCategory]int{
	shared.CategoryIdentity:  http.StatusUnauthorized,
	shared.CategoryTenant:    http.StatusForbidden,
	shared.CategoryActor:     http.StatusForbidden,
	shared.CategoryGuardrail: http.StatusBadRequest,
	shared.CategoryInput:     http.StatusBadRequest,
	shared.CategoryNotFound:  http.StatusNotFound,
	shared.CategoryConflict:  http.StatusConflict,
	shared.CategoryStore:     http.StatusInternalServerError,
	shared.CategoryInternal:  http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for a category.
// Returns 500 Internal Server Error if the category is not mapped.
func GetHTTPStatus(category shared.ErrorCategory) int {
	if status, ok := CategoryHTTPStatus[category]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the error envelope every failed request receives
type ErrorResponse struct {
	Error   string         `json:"error"`
	RID     string         `json:"rid"`
	Message string         `json:"message,omitempty"`
	Hint    string         `json:"hint,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// NewErrorResponse creates an envelope for a transport-level failure
func NewErrorResponse(code, message, requestID string) ErrorResponse {
	return ErrorResponse{
		Error:   code,
		RID:     requestID,
		Message: message,
	}
}

// FromError converts err to its status code and envelope. Errors that are not
// domain errors are reported as internal without leaking their text.
func FromError(err error, requestID string) (int, ErrorResponse) {
	var de *shared.DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError,
			NewErrorResponse(CodeInternal, "An unexpected error occurred", requestID)
	}
	resp := ErrorResponse{
		Error:   de.Code,
		RID:     requestID,
		Message: de.Message,
		Hint:    de.Hint,
	}
	if len(de.Detail) > 0 {
		resp.Detail = de.Detail
	}
	return GetHTTPStatus(de.Category), resp
}

// ValidationDetail describes one invalid request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
