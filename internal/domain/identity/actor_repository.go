// Package identity defines how callers map to actor entities and how actors
// belong to organizations.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Membership is one active membership edge from an actor to an organization
type Membership struct {
	OrganizationID   uuid.UUID
	RelationshipType string
}

// ActorRepository is the read-only identity and membership store
type ActorRepository interface {
	// FindActorByExternalID maps a credential subject to a USER entity id.
	// Returns shared.ErrNotFound when no mapping exists.
	FindActorByExternalID(ctx context.Context, externalUserID string) (uuid.UUID, error)

	// ListActiveMemberships returns the actor's active memberships, oldest first
	ListActiveMemberships(ctx context.Context, actorID uuid.UUID) ([]Membership, error)

	// HasActiveMembership reports whether an active MEMBER_OF or
	// USER_MEMBER_OF_ORG edge connects actor to organization, where the edge
	// itself lives in one of scopes.
	HasActiveMembership(ctx context.Context, actorID, organizationID uuid.UUID, scopes ...uuid.UUID) (bool, error)

	// FindEntityType returns the entity_type of entityID when the entity lives
	// in one of scopes. Returns shared.ErrNotFound otherwise.
	FindEntityType(ctx context.Context, entityID uuid.UUID, scopes ...uuid.UUID) (string, error)
}
