package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	domainidentity "github.com/hera/backend/internal/domain/identity"
	"github.com/hera/backend/internal/infrastructure/auth"
)

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) ValidateAccessToken(ctx context.Context, token string) (*auth.Claims, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

// MockActorRepository is a mock implementation of domainidentity.ActorRepository
type MockActorRepository struct {
	mock.Mock
}

func (m *MockActorRepository) FindActorByExternalID(ctx context.Context, externalUserID string) (uuid.UUID, error) {
	args := m.Called(ctx, externalUserID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockActorRepository) ListActiveMemberships(ctx context.Context, actorID uuid.UUID) ([]domainidentity.Membership, error) {
	args := m.Called(ctx, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainidentity.Membership), args.Error(1)
}

func (m *MockActorRepository) HasActiveMembership(ctx context.Context, actorID, organizationID uuid.UUID, scopes ...uuid.UUID) (bool, error) {
	args := m.Called(ctx, actorID, organizationID, scopes)
	return args.Bool(0), args.Error(1)
}

func (m *MockActorRepository) FindEntityType(ctx context.Context, entityID uuid.UUID, scopes ...uuid.UUID) (string, error) {
	args := m.Called(ctx, entityID, scopes)
	return args.String(0), args.Error(1)
}
