package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainidentity "github.com/hera/backend/internal/domain/identity"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/infrastructure/auth"
)

type resolverFixture struct {
	verifier *MockTokenVerifier
	actors   *MockActorRepository
	resolver *Resolver
	actorID  uuid.UUID
	orgID    uuid.UUID
}

func newResolverFixture() *resolverFixture {
	f := &resolverFixture{
		verifier: new(MockTokenVerifier),
		actors:   new(MockActorRepository),
		actorID:  uuid.New(),
		orgID:    uuid.New(),
	}
	f.resolver = NewResolver(f.verifier, f.actors, uuid.Nil, zap.NewNop())
	return f
}

func claimsFor(subject, org string) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		OrganizationID:   org,
		Email:            subject + "@example.com",
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("header wins over claim", func(t *testing.T) {
		f := newResolverFixture()
		claimOrg := uuid.New()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", claimOrg.String()), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("HasActiveMembership", ctx, f.actorID, f.orgID, []uuid.UUID{uuid.Nil, f.orgID}).Return(true, nil)

		rc, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok", OrganizationHeader: f.orgID.String()})
		require.NoError(t, err)
		assert.Equal(t, f.actorID, rc.ActorID)
		assert.Equal(t, f.orgID, rc.OrganizationID)
		assert.Equal(t, SourceHeader, rc.OrganizationSource)
		assert.Equal(t, "ext-1", rc.ExternalUserID)
		f.actors.AssertNotCalled(t, "ListActiveMemberships", mock.Anything, mock.Anything)
	})

	t.Run("claim used when header absent", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", f.orgID.String()), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("HasActiveMembership", ctx, f.actorID, f.orgID, mock.Anything).Return(true, nil)

		rc, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		require.NoError(t, err)
		assert.Equal(t, SourceClaim, rc.OrganizationSource)
		assert.Equal(t, f.orgID, rc.OrganizationID)
	})

	t.Run("first non-platform membership as fallback", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("ListActiveMemberships", ctx, f.actorID).Return([]domainidentity.Membership{
			{OrganizationID: uuid.Nil, RelationshipType: "MEMBER_OF"},
			{OrganizationID: f.orgID, RelationshipType: "USER_MEMBER_OF_ORG"},
			{OrganizationID: uuid.New(), RelationshipType: "MEMBER_OF"},
		}, nil)
		f.actors.On("HasActiveMembership", ctx, f.actorID, f.orgID, mock.Anything).Return(true, nil)

		rc, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		require.NoError(t, err)
		assert.Equal(t, SourceMembership, rc.OrganizationSource)
		assert.Equal(t, f.orgID, rc.OrganizationID)
	})

	t.Run("configured platform organization is used for scopes and skipped as tenant", func(t *testing.T) {
		f := newResolverFixture()
		platform := uuid.MustParse("7f000000-0000-4000-8000-000000000001")
		f.resolver = NewResolver(f.verifier, f.actors, platform, zap.NewNop())
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("ListActiveMemberships", ctx, f.actorID).Return([]domainidentity.Membership{
			{OrganizationID: platform, RelationshipType: "MEMBER_OF"},
			{OrganizationID: f.orgID, RelationshipType: "USER_MEMBER_OF_ORG"},
		}, nil)
		f.actors.On("HasActiveMembership", ctx, f.actorID, f.orgID, []uuid.UUID{platform, f.orgID}).Return(true, nil)

		rc, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		require.NoError(t, err)
		assert.Equal(t, f.orgID, rc.OrganizationID)
		f.actors.AssertExpectations(t)
	})

	t.Run("missing bearer", func(t *testing.T) {
		f := newResolverFixture()
		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "  "})
		assert.True(t, errors.Is(err, ErrInvalidToken))
		f.verifier.AssertNotCalled(t, "ValidateAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("credential rejected", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(nil, auth.ErrExpiredToken)

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		assert.True(t, errors.Is(err, ErrInvalidToken))
	})

	t.Run("revocation backend failure is not an identity failure", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(nil, errors.New("redis down"))

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, shared.CategoryStore, de.Category)
	})

	t.Run("subject not mapped", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ghost", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ghost").Return(uuid.Nil, shared.ErrNotFound)

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		assert.True(t, errors.Is(err, ErrIdentityNotResolved))
	})

	t.Run("store error during mapping", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(uuid.Nil, errors.New("connection reset"))

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "connection reset", de.Message)
	})

	t.Run("no organization context", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("ListActiveMemberships", ctx, f.actorID).Return([]domainidentity.Membership{}, nil)

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok"})
		assert.True(t, errors.Is(err, ErrNoOrganizationContext))
	})

	t.Run("malformed header is not silently skipped", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", f.orgID.String()), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok", OrganizationHeader: "acme"})
		assert.True(t, errors.Is(err, ErrNoOrganizationContext))
	})

	t.Run("actor not member", func(t *testing.T) {
		f := newResolverFixture()
		f.verifier.On("ValidateAccessToken", ctx, "tok").Return(claimsFor("ext-1", ""), nil)
		f.actors.On("FindActorByExternalID", ctx, "ext-1").Return(f.actorID, nil)
		f.actors.On("HasActiveMembership", ctx, f.actorID, f.orgID, mock.Anything).Return(false, nil)

		_, err := f.resolver.Resolve(ctx, ResolveInput{BearerToken: "tok", OrganizationHeader: f.orgID.String()})
		require.True(t, errors.Is(err, ErrActorNotMember))

		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, shared.CategoryTenant, de.Category)
		assert.Equal(t, f.orgID.String(), de.Detail["organization_id"])
	})
}
