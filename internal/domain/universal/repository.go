package universal

import (
	"context"

	"github.com/google/uuid"

	"github.com/hera/backend/internal/domain/shared"
)

// ErrRelationshipTargetNotFound is returned when a relationship endpoint is
// not an entity of the writing organization
var ErrRelationshipTargetNotFound = shared.NewDomainError(shared.CategoryInput, "RELATIONSHIP_TARGET_NOT_FOUND",
	"Relationship target entity does not exist in this organization")

// EntityQuery filters an entity listing. OrganizationID is mandatory.
type EntityQuery struct {
	OrganizationID  uuid.UUID
	EntityType      string
	SmartCodePrefix string
	Status          string
	IncludeArchived bool
	Page            shared.Page
}

// TransactionQuery filters a transaction listing. OrganizationID is mandatory.
type TransactionQuery struct {
	OrganizationID  uuid.UUID
	TransactionType string
	SmartCodePrefix string
	Status          string
	IncludeArchived bool
	Page            shared.Page
}

// AtomicStore executes generic mutations as single indivisible units. A nil
// error means the whole header plus children write committed. Lookups return
// shared.ErrNotFound for rows that are absent or belong to another organization.
type AtomicStore interface {
	CreateEntity(ctx context.Context, agg *EntityAggregate) error
	// UpdateEntity replaces the header, upserts fields by name and adds relationships
	UpdateEntity(ctx context.Context, entity *Entity, fields []DynamicField, relationships []Relationship) error
	SetEntityStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*Entity, error)
	GetEntity(ctx context.Context, organizationID, id uuid.UUID) (*EntityAggregate, error)
	ListEntities(ctx context.Context, query EntityQuery) ([]Entity, int64, error)

	CreateTransaction(ctx context.Context, txn *Transaction) error
	// UpdateTransaction replaces the header and, when replaceLines is set, the whole line set
	UpdateTransaction(ctx context.Context, txn *Transaction, replaceLines bool) error
	SetTransactionStatus(ctx context.Context, organizationID, id uuid.UUID, status string, actorID uuid.UUID) (*Transaction, error)
	GetTransaction(ctx context.Context, organizationID, id uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, query TransactionQuery) ([]Transaction, int64, error)
}
