package guardrail

import "github.com/hera/backend/internal/domain/shared"

// Guardrail violations. All are terminal for the request.
var (
	ErrSmartCodeMissing = shared.NewDomainError(shared.CategoryGuardrail, "SMARTCODE_MISSING",
		"Smart code is required").
		WithHint("Provide a smart code such as HERA.SALON.SERVICE.CATALOG.v1")
	ErrSmartCodeRegexFail = shared.NewDomainError(shared.CategoryGuardrail, "SMARTCODE_REGEX_FAIL",
		"Smart code is malformed").
		WithHint("Expected HERA followed by 3 to 10 uppercase segments and a .vN version suffix")
	ErrSmartCodePrefixMismatch = shared.NewDomainError(shared.CategoryGuardrail, "SMARTCODE_PREFIX_MISMATCH",
		"Smart code does not belong to the required family")

	ErrOrgFilterMissing = shared.NewDomainError(shared.CategoryGuardrail, "ORG_FILTER_MISSING",
		"Payload organization_id is required").
		WithHint("Include organization_id equal to the organization you are acting in")
	ErrOrgFilterMismatch = shared.NewDomainError(shared.CategoryGuardrail, "ORG_FILTER_MISMATCH",
		"Payload organization_id does not match the resolved organization")

	ErrGLSideRequired = shared.NewDomainError(shared.CategoryGuardrail, "GL_SIDE_REQUIRED",
		"GL lines require side DR or CR")
	ErrNegativeGLAmount = shared.NewDomainError(shared.CategoryGuardrail, "NEGATIVE_GL_AMOUNT",
		"GL line amount must not be negative").
		WithHint("Express credits with side CR and a positive amount")
	ErrGLCurrencyInvalid = shared.NewDomainError(shared.CategoryGuardrail, "GL_CURRENCY_INVALID",
		"GL line currency is not an ISO 4217 code")
	ErrGLNotBalanced = shared.NewDomainError(shared.CategoryGuardrail, "GL_NOT_BALANCED",
		"Debits and credits are not balanced").
		WithHint("Per currency, the sum of DR amounts must equal the sum of CR amounts")
)
