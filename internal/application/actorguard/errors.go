package actorguard

import "github.com/hera/backend/internal/domain/shared"

// Actor integrity rejections, in the order the guard checks them
var (
	ErrActorUserIDRequired = shared.NewDomainError(shared.CategoryActor, "ACTOR_USER_ID_REQUIRED",
		"Actor user id is required for this operation").
		WithHint("Pass the resolved actor id; mutations are always stamped with an actor")
	ErrOrganizationIDRequired = shared.NewDomainError(shared.CategoryActor, "ORGANIZATION_ID_REQUIRED",
		"Organization id is required for this operation").
		WithHint("Pass the resolved organization id")
	ErrInvalidActorNullUUID = shared.NewDomainError(shared.CategoryActor, "INVALID_ACTOR_NULL_UUID",
		"Actor id must not be the all-zero UUID").
		WithHint("The all-zero id is a sentinel, not a user")
	ErrInvalidOrganizationPlatformUUID = shared.NewDomainError(shared.CategoryActor, "INVALID_ORGANIZATION_PLATFORM_UUID",
		"Business mutations are not permitted in the platform organization").
		WithHint("Target a tenant organization")
	ErrActorEntityNotFound = shared.NewDomainError(shared.CategoryActor, "ACTOR_ENTITY_NOT_FOUND",
		"Actor id does not resolve to an entity in the platform or target organization").
		WithHint("Provision a USER entity for this actor")
	ErrInvalidActorEntityType = shared.NewDomainError(shared.CategoryActor, "INVALID_ACTOR_ENTITY_TYPE",
		"Actor entity is not of type USER")
	ErrOrganizationEntityNotFound = shared.NewDomainError(shared.CategoryTenant, "ORGANIZATION_ENTITY_NOT_FOUND",
		"Organization id does not resolve to an ORGANIZATION entity").
		WithHint("Create the organization root entity before writing business data")
	ErrActorNotMemberOfOrganization = shared.NewDomainError(shared.CategoryActor, "ACTOR_NOT_MEMBER_OF_ORGANIZATION",
		"Actor has no active membership in the organization").
		WithHint("Add an active MEMBER_OF or USER_MEMBER_OF_ORG relationship")
)
