package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides identity and audit stamps shared by every universal row
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *uuid.UUID
	UpdatedBy *uuid.UUID
}

// NewBaseEntity creates a new base entity with generated ID stamped by actor
func NewBaseEntity(actorID uuid.UUID) BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: &actorID,
		UpdatedBy: &actorID,
	}
}

// Touch records a modification by actor
func (e *BaseEntity) Touch(actorID uuid.UUID) {
	e.UpdatedAt = time.Now().UTC()
	e.UpdatedBy = &actorID
}
