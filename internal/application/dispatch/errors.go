package dispatch

import "github.com/hera/backend/internal/domain/shared"

// Dispatcher rejections that are not guardrail or actor violations
var (
	ErrInvalidRequest = shared.NewDomainError(shared.CategoryInput, "INVALID_REQUEST",
		"Request payload is invalid")
	ErrUnsupportedOperation = shared.NewDomainError(shared.CategoryInput, "UNSUPPORTED_OPERATION",
		"Operation must be one of CREATE, READ, UPDATE, DELETE, ARCHIVE")
	ErrUnknownCommandOp = shared.NewDomainError(shared.CategoryInput, "UNKNOWN_COMMAND_OP",
		"Command op must be entities or transactions")
	ErrIDRequired = shared.NewDomainError(shared.CategoryInput, "ID_REQUIRED",
		"This operation requires the id of an existing row")
	ErrFieldNotRenderable = shared.NewDomainError(shared.CategoryInternal, "FIELD_VALUE_NOT_RENDERABLE",
		"A stored dynamic field value could not be rendered")
)

func missingField(name string) error {
	return ErrInvalidRequest.WithDetail("field", name).WithHint(name + " is required")
}
