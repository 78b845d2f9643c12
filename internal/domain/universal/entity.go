package universal

import (
	"github.com/google/uuid"

	"github.com/hera/backend/internal/domain/shared"
)

// Entity is any business noun stored in core_entities
type Entity struct {
	shared.BaseEntity
	OrganizationID uuid.UUID
	EntityType     string
	EntityName     string
	EntityCode     string
	SmartCode      string
	Status         string
	Metadata       map[string]any
}

// Relationship is a typed, directed edge between two entities
type Relationship struct {
	shared.BaseEntity
	OrganizationID   uuid.UUID
	SourceEntityID   uuid.UUID
	TargetEntityID   uuid.UUID
	RelationshipType string
	IsActive         bool
	SmartCode        string
}

// EntityAggregate is an entity together with the rows it owns or originates
type EntityAggregate struct {
	Entity        Entity
	Fields        []DynamicField
	Relationships []Relationship
}
