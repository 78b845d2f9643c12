// Package identity resolves bearer credentials to an actor and tenant context.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainidentity "github.com/hera/backend/internal/domain/identity"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/infrastructure/auth"
)

// TokenVerifier verifies bearer credentials
type TokenVerifier interface {
	ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

// OrganizationSource records which input chose the organization
type OrganizationSource string

const (
	SourceHeader     OrganizationSource = "header"
	SourceClaim      OrganizationSource = "claim"
	SourceMembership OrganizationSource = "membership"
)

// ResolveInput is what the transport layer extracts from a request
type ResolveInput struct {
	BearerToken        string
	OrganizationHeader string
}

// ResolvedContext is the caller identity every later stage works against
type ResolvedContext struct {
	ActorID            uuid.UUID
	OrganizationID     uuid.UUID
	ExternalUserID     string
	Email              string
	OrganizationSource OrganizationSource
}

// Resolver turns a bearer credential and optional tenant hint into a
// ResolvedContext. It only reads from the identity store.
type Resolver struct {
	verifier      TokenVerifier
	actors        domainidentity.ActorRepository
	platformOrgID uuid.UUID
	logger        *zap.Logger
}

// NewResolver creates a new resolver. platformOrgID is the namespace whose
// membership edges count for every tenant and which is never selected as a
// tenant itself.
func NewResolver(verifier TokenVerifier, actors domainidentity.ActorRepository, platformOrgID uuid.UUID, logger *zap.Logger) *Resolver {
	return &Resolver{
		verifier:      verifier,
		actors:        actors,
		platformOrgID: platformOrgID,
		logger:        logger,
	}
}

// Resolve runs credential verification, identity mapping, organization
// selection and the membership check, failing at the first step that does
// not resolve.
func (r *Resolver) Resolve(ctx context.Context, input ResolveInput) (*ResolvedContext, error) {
	token := strings.TrimSpace(input.BearerToken)
	if token == "" {
		return nil, ErrInvalidToken.WithDetail("reason", "missing bearer credential")
	}
	claims, err := r.verifier.ValidateAccessToken(ctx, token)
	if err != nil {
		r.logger.Warn("Bearer credential rejected", zap.Error(err))
		if isCredentialError(err) {
			return nil, ErrInvalidToken.WithDetail("reason", err.Error())
		}
		return nil, shared.NewStoreError(err)
	}

	actorID, err := r.actors.FindActorByExternalID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.logger.Warn("Credential subject not mapped to an actor", zap.String("subject", claims.Subject))
			return nil, ErrIdentityNotResolved.WithDetail("subject", claims.Subject)
		}
		return nil, shared.NewStoreError(err)
	}

	orgID, source, err := r.selectOrganization(ctx, actorID, input.OrganizationHeader, claims.OrganizationID)
	if err != nil {
		return nil, err
	}

	member, err := r.actors.HasActiveMembership(ctx, actorID, orgID,
		r.platformOrgID, orgID)
	if err != nil {
		return nil, shared.NewStoreError(err)
	}
	if !member {
		r.logger.Warn("Actor is not a member of requested organization",
			zap.String("actor_id", actorID.String()),
			zap.String("organization_id", orgID.String()),
			zap.String("source", string(source)))
		return nil, ErrActorNotMember.
			WithDetail("actor_id", actorID.String()).
			WithDetail("organization_id", orgID.String())
	}

	return &ResolvedContext{
		ActorID:            actorID,
		OrganizationID:     orgID,
		ExternalUserID:     claims.Subject,
		Email:              claims.Email,
		OrganizationSource: source,
	}, nil
}

// selectOrganization applies header > claim > first active membership. An
// explicit hint that is not a UUID is rejected rather than skipped.
func (r *Resolver) selectOrganization(ctx context.Context, actorID uuid.UUID, header, claim string) (uuid.UUID, OrganizationSource, error) {
	if h := strings.TrimSpace(header); h != "" {
		id, err := uuid.Parse(h)
		if err != nil {
			return uuid.Nil, "", ErrNoOrganizationContext.
				WithDetail("reason", "X-Organization-Id is not a UUID").
				WithDetail("value", h)
		}
		return id, SourceHeader, nil
	}
	if c := strings.TrimSpace(claim); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			return uuid.Nil, "", ErrNoOrganizationContext.
				WithDetail("reason", "organization_id claim is not a UUID")
		}
		return id, SourceClaim, nil
	}

	memberships, err := r.actors.ListActiveMemberships(ctx, actorID)
	if err != nil {
		return uuid.Nil, "", shared.NewStoreError(err)
	}
	for _, m := range memberships {
		if m.OrganizationID != r.platformOrgID {
			return m.OrganizationID, SourceMembership, nil
		}
	}
	return uuid.Nil, "", ErrNoOrganizationContext.WithDetail("actor_id", actorID.String())
}

func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrTokenNotYetValid) ||
		errors.Is(err, auth.ErrMissingSubject) ||
		errors.Is(err, auth.ErrTokenRevoked)
}
