package guardrail

import "strings"

// SmartCodeValidator checks smart codes against the policy pattern.
// It is purely syntactic; taxonomy registration is not consulted.
type SmartCodeValidator struct {
	policy *Policy
}

// NewSmartCodeValidator creates a validator bound to policy
func NewSmartCodeValidator(policy *Policy) *SmartCodeValidator {
	return &SmartCodeValidator{policy: policy}
}

// Validate checks code for presence and well-formedness
func (v *SmartCodeValidator) Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrSmartCodeMissing
	}
	if !v.policy.pattern.MatchString(code) {
		return ErrSmartCodeRegexFail.WithDetail("smart_code", code)
	}
	return nil
}

// ValidateFamily checks code and additionally requires it to start with the
// dotted prefix family, e.g. "HERA.FIN.GL".
func (v *SmartCodeValidator) ValidateFamily(code, family string) error {
	if err := v.Validate(code); err != nil {
		return err
	}
	if family == "" {
		return nil
	}
	family = strings.TrimSuffix(family, ".")
	if !strings.HasPrefix(code, family+".") {
		return ErrSmartCodePrefixMismatch.
			WithDetail("smart_code", code).
			WithDetail("required_family", family)
	}
	return nil
}
