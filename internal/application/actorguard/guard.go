// Package actorguard enforces actor requirements inside the mutation path,
// independently of how the caller was resolved.
package actorguard

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/domain/identity"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/logger"
)

// Guard checks that an actor may mutate data in an organization
type Guard struct {
	actors     identity.ActorRepository
	platformID uuid.UUID
	onReject   func(code string)
}

// Option configures a Guard
type Option func(*Guard)

// WithRejectionHook is called with the error code of every rejection
func WithRejectionHook(fn func(code string)) Option {
	return func(g *Guard) {
		g.onReject = fn
	}
}

// New creates a Guard. platformID is the reserved non-tenant organization.
func New(actors identity.ActorRepository, platformID uuid.UUID, opts ...Option) *Guard {
	g := &Guard{
		actors:     actors,
		platformID: platformID,
		onReject:   func(string) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Require runs every actor check in order and returns the first violation.
// fn names the calling operation and is recorded on every rejection together
// with the actor and organization ids. Nil ids count as absent.
func (g *Guard) Require(ctx context.Context, fn string, actorID, organizationID *uuid.UUID) error {
	reject := func(base *shared.DomainError) error {
		err := base.
			WithDetail("function", fn).
			WithDetail("actor_id", idString(actorID)).
			WithDetail("organization_id", idString(organizationID))
		logger.L(ctx).Warn("Actor requirement rejected",
			zap.String("code", base.Code),
			zap.String("function", fn),
			zap.String("actor_id", idString(actorID)),
			zap.String("organization_id", idString(organizationID)))
		g.onReject(base.Code)
		return err
	}

	if actorID == nil {
		return reject(ErrActorUserIDRequired)
	}
	if organizationID == nil {
		return reject(ErrOrganizationIDRequired)
	}
	if *actorID == uuid.Nil {
		return reject(ErrInvalidActorNullUUID)
	}
	if *organizationID == g.platformID {
		return reject(ErrInvalidOrganizationPlatformUUID)
	}
	if *organizationID == uuid.Nil {
		return reject(ErrInvalidActorNullUUID)
	}

	scopes := []uuid.UUID{g.platformID, *organizationID}

	actorType, err := g.actors.FindEntityType(ctx, *actorID, scopes...)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return reject(ErrActorEntityNotFound)
	case err != nil:
		return shared.NewStoreError(err)
	case actorType != universal.EntityTypeUser:
		return reject(ErrInvalidActorEntityType.WithDetail("entity_type", actorType))
	}

	orgType, err := g.actors.FindEntityType(ctx, *organizationID, scopes...)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return reject(ErrOrganizationEntityNotFound)
	case err != nil:
		return shared.NewStoreError(err)
	case orgType != universal.EntityTypeOrganization:
		return reject(ErrOrganizationEntityNotFound.WithDetail("entity_type", orgType))
	}

	member, err := g.actors.HasActiveMembership(ctx, *actorID, *organizationID, scopes...)
	if err != nil {
		return shared.NewStoreError(err)
	}
	if !member {
		return reject(ErrActorNotMemberOfOrganization)
	}
	return nil
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
