// Package universal models the six generic tables every business object is stored in.
package universal

// Entity types with meaning to the access layer
const (
	EntityTypeUser         = "USER"
	EntityTypeOrganization = "ORGANIZATION"
)

// Membership relationship types
const (
	RelationshipMemberOf        = "MEMBER_OF"
	RelationshipUserMemberOfOrg = "USER_MEMBER_OF_ORG"
)

// ExternalUserIDField is the dynamic field on USER entities holding the
// credential subject they are mapped from.
const ExternalUserIDField = "external_user_id"

// Status values used for entities and transactions
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
	StatusDraft    = "draft"
	StatusPosted   = "posted"
)

// MembershipTypes returns the relationship types that grant organization membership
func MembershipTypes() []string {
	return []string{RelationshipMemberOf, RelationshipUserMemberOfOrg}
}

// HiddenStatuses returns the statuses excluded from default listings
func HiddenStatuses() []string {
	return []string{StatusArchived, StatusDeleted}
}
