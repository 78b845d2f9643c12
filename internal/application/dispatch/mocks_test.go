package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hera/backend/internal/domain/universal"
)

// MockAtomicStore is a mock implementation of universal.AtomicStore
type MockAtomicStore struct {
	mock.Mock
}

func (m *MockAtomicStore) CreateEntity(ctx context.Context, agg *universal.EntityAggregate) error {
	args := m.Called(ctx, agg)
	return args.Error(0)
}

func (m *MockAtomicStore) UpdateEntity(ctx context.Context, entity *universal.Entity, fields []universal.DynamicField, relationships []universal.Relationship) error {
	args := m.Called(ctx, entity, fields, relationships)
	return args.Error(0)
}

func (m *MockAtomicStore) SetEntityStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*universal.Entity, error) {
	args := m.Called(ctx, organizationID, id, status, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*universal.Entity), args.Error(1)
}

func (m *MockAtomicStore) GetEntity(ctx context.Context, organizationID, id uuid.UUID) (*universal.EntityAggregate, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*universal.EntityAggregate), args.Error(1)
}

func (m *MockAtomicStore) ListEntities(ctx context.Context, query universal.EntityQuery) ([]universal.Entity, int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]universal.Entity), args.Get(1).(int64), args.Error(2)
}

func (m *MockAtomicStore) CreateTransaction(ctx context.Context, txn *universal.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockAtomicStore) UpdateTransaction(ctx context.Context, txn *universal.Transaction, replaceLines bool) error {
	args := m.Called(ctx, txn, replaceLines)
	return args.Error(0)
}

func (m *MockAtomicStore) SetTransactionStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*universal.Transaction, error) {
	args := m.Called(ctx, organizationID, id, status, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*universal.Transaction), args.Error(1)
}

func (m *MockAtomicStore) GetTransaction(ctx context.Context, organizationID, id uuid.UUID) (*universal.Transaction, error) {
	args := m.Called(ctx, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*universal.Transaction), args.Error(1)
}

func (m *MockAtomicStore) ListTransactions(ctx context.Context, query universal.TransactionQuery) ([]universal.Transaction, int64, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]universal.Transaction), args.Get(1).(int64), args.Error(2)
}

// MockActorGuard is a mock implementation of ActorGuard
type MockActorGuard struct {
	mock.Mock
}

func (m *MockActorGuard) Require(ctx context.Context, fn string, actorID, organizationID *uuid.UUID) error {
	args := m.Called(ctx, fn, actorID, organizationID)
	return args.Error(0)
}

// recordingRecorder captures Recorder calls
type recordingRecorder struct {
	outcomes   []string
	rejections []string
}

func (r *recordingRecorder) Dispatch(family Family, op Operation, outcome string) {
	r.outcomes = append(r.outcomes, string(family)+"."+string(op)+"="+outcome)
}

func (r *recordingRecorder) Rejection(code string) {
	r.rejections = append(r.rejections, code)
}
