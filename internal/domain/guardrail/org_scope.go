package guardrail

import (
	"strings"

	"github.com/google/uuid"
)

// OrgScopeEnforcer compares the organization id carried by a payload with
// the resolved tenant context. It has no opt-out.
type OrgScopeEnforcer struct {
	policy *Policy
}

// NewOrgScopeEnforcer creates an enforcer bound to policy
func NewOrgScopeEnforcer(policy *Policy) *OrgScopeEnforcer {
	return &OrgScopeEnforcer{policy: policy}
}

// Enforce rejects a payload whose organization_id is absent or differs from
// resolved. An unparsable id is a mismatch.
func (e *OrgScopeEnforcer) Enforce(resolved uuid.UUID, payloadOrganizationID string) error {
	raw := strings.TrimSpace(payloadOrganizationID)
	if raw == "" {
		return ErrOrgFilterMissing
	}
	got, err := uuid.Parse(raw)
	if err != nil || got != resolved {
		return ErrOrgFilterMismatch.
			WithDetail("expected_organization_id", resolved.String()).
			WithDetail("payload_organization_id", raw)
	}
	return nil
}

// EnforceAll applies Enforce to every nested organization id, stopping at
// the first violation. Nested rows may omit the id; they inherit the header's.
func (e *OrgScopeEnforcer) EnforceAll(resolved uuid.UUID, header string, nested ...string) error {
	if err := e.Enforce(resolved, header); err != nil {
		return err
	}
	for _, n := range nested {
		if strings.TrimSpace(n) == "" {
			continue
		}
		if err := e.Enforce(resolved, n); err != nil {
			return err
		}
	}
	return nil
}
