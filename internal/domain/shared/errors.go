package shared

import "fmt"

// ErrorCategory groups error codes by the layer that raised them.
// The HTTP layer maps categories to status codes.
type ErrorCategory string

const (
	CategoryIdentity  ErrorCategory = "IDENTITY"
	CategoryTenant    ErrorCategory = "TENANT"
	CategoryActor     ErrorCategory = "ACTOR"
	CategoryGuardrail ErrorCategory = "GUARDRAIL"
	CategoryInput     ErrorCategory = "INPUT"
	CategoryNotFound  ErrorCategory = "NOT_FOUND"
	CategoryConflict  ErrorCategory = "CONFLICT"
	CategoryStore     ErrorCategory = "STORE"
	CategoryInternal  ErrorCategory = "INTERNAL"
)

// DomainError represents a domain-level rejection
type DomainError struct {
	Code     string         `json:"code"`
	Category ErrorCategory  `json:"category"`
	Message  string         `json:"message"`
	Hint     string         `json:"hint,omitempty"`
	Detail   map[string]any `json:"detail,omitempty"`
	cause    error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches any DomainError carrying the same code, so sentinel values
// work with errors.Is even after WithDetail/WithHint copies.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(category ErrorCategory, code, message string) *DomainError {
	return &DomainError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// WithHint returns a copy of the error carrying a remediation hint
func (e *DomainError) WithHint(hint string) *DomainError {
	cp := e.clone()
	cp.Hint = hint
	return cp
}

// WithDetail returns a copy of the error with an extra detail entry
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	cp := e.clone()
	cp.Detail[key] = value
	return cp
}

// WithCause returns a copy of the error wrapping cause
func (e *DomainError) WithCause(cause error) *DomainError {
	cp := e.clone()
	cp.cause = cause
	return cp
}

func (e *DomainError) clone() *DomainError {
	detail := make(map[string]any, len(e.Detail)+1)
	for k, v := range e.Detail {
		detail[k] = v
	}
	return &DomainError{
		Code:     e.Code,
		Category: e.Category,
		Message:  e.Message,
		Hint:     e.Hint,
		Detail:   detail,
		cause:    e.cause,
	}
}

// Common domain errors
var (
	ErrNotFound     = NewDomainError(CategoryNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidInput = NewDomainError(CategoryInput, "INVALID_INPUT", "Invalid input provided")
	ErrConflict     = NewDomainError(CategoryConflict, "CONFLICT", "Request conflicts with current state")
	ErrInternal     = NewDomainError(CategoryInternal, "INTERNAL_ERROR", "An unexpected error occurred")
)

// NewStoreError wraps an error returned by the underlying atomic store.
// The native message is kept verbatim so callers see exactly what the store said.
func NewStoreError(err error) *DomainError {
	return NewDomainError(CategoryStore, "STORE_ERROR", err.Error()).WithCause(err)
}
