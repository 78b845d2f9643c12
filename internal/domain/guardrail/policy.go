// Package guardrail holds the pure validators that every write passes before dispatch.
package guardrail

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PolicyConfig is the raw input for building a Policy
type PolicyConfig struct {
	Namespace              string
	MinSegments            int
	MaxSegments            int
	GLTolerance            decimal.Decimal
	DocumentCurrency       string
	PlatformOrganizationID uuid.UUID
	// RequiredFamilies maps an entity or transaction type to the smart-code
	// family its header code must belong to
	RequiredFamilies map[string]string
}

// DefaultPolicyConfig returns the production guardrail settings
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Namespace:              "HERA",
		MinSegments:            3,
		MaxSegments:            10,
		GLTolerance:            decimal.NewFromFloat(0.01),
		DocumentCurrency:       "DOC",
		PlatformOrganizationID: uuid.Nil,
	}
}

// Policy is the compiled, immutable guardrail configuration. It is built once
// at startup and shared read-only by all validators and goroutines.
type Policy struct {
	pattern          *regexp.Regexp
	tolerance        decimal.Decimal
	documentCurrency string
	platformOrgID    uuid.UUID
	families         map[string]string
}

var namespacePattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// NewPolicy validates cfg and compiles the smart-code pattern
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	if !namespacePattern.MatchString(cfg.Namespace) {
		return nil, fmt.Errorf("guardrail: namespace %q must be an uppercase token", cfg.Namespace)
	}
	if cfg.MinSegments < 1 || cfg.MaxSegments < cfg.MinSegments {
		return nil, fmt.Errorf("guardrail: invalid segment bounds %d..%d", cfg.MinSegments, cfg.MaxSegments)
	}
	if cfg.GLTolerance.IsNegative() {
		return nil, fmt.Errorf("guardrail: GL tolerance must not be negative")
	}
	if strings.TrimSpace(cfg.DocumentCurrency) == "" {
		return nil, fmt.Errorf("guardrail: document currency sentinel is required")
	}

	families := make(map[string]string, len(cfg.RequiredFamilies))
	for kind, family := range cfg.RequiredFamilies {
		family = strings.TrimSuffix(strings.TrimSpace(family), ".")
		if !strings.HasPrefix(family, cfg.Namespace+".") {
			return nil, fmt.Errorf("guardrail: family %q for %q is outside namespace %s", family, kind, cfg.Namespace)
		}
		families[strings.ToUpper(strings.TrimSpace(kind))] = family
	}

	expr := fmt.Sprintf(`^%s(\.[A-Z0-9][A-Z0-9_]*){%d,%d}\.v[0-9]+$`,
		regexp.QuoteMeta(cfg.Namespace), cfg.MinSegments, cfg.MaxSegments)
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("guardrail: compile smart code pattern: %w", err)
	}

	return &Policy{
		pattern:          pattern,
		tolerance:        cfg.GLTolerance,
		documentCurrency: strings.ToUpper(cfg.DocumentCurrency),
		platformOrgID:    cfg.PlatformOrganizationID,
		families:         families,
	}, nil
}

// RequiredFamily returns the smart-code family required for kind, or ""
func (p *Policy) RequiredFamily(kind string) string {
	return p.families[strings.ToUpper(kind)]
}

// PlatformOrganizationID returns the reserved non-tenant organization id
func (p *Policy) PlatformOrganizationID() uuid.UUID { return p.platformOrgID }
