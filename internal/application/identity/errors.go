package identity

import "github.com/hera/backend/internal/domain/shared"

// Identity and tenant-context rejections raised while resolving a caller
var (
	ErrInvalidToken = shared.NewDomainError(shared.CategoryIdentity, "invalid_token",
		"Bearer credential is missing or could not be verified")
	ErrIdentityNotResolved = shared.NewDomainError(shared.CategoryIdentity, "identity_not_resolved",
		"Credential subject is not mapped to an actor").
		WithHint("Provision a USER entity with a matching external_user_id")
	ErrNoOrganizationContext = shared.NewDomainError(shared.CategoryTenant, "no_organization_context",
		"No organization could be determined for this request").
		WithHint("Send X-Organization-Id or use a token carrying organization_id")
	ErrActorNotMember = shared.NewDomainError(shared.CategoryTenant, "actor_not_member",
		"Actor is not an active member of the organization")
)
