package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/hera/backend/internal/domain/shared"
)

// RowModel is the id and timestamp columns present on every table
type RowModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// StampedModel adds the acting user columns written on every tenant row.
// The organization registry and transaction lines have none.
type StampedModel struct {
	RowModel
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	UpdatedBy *uuid.UUID `gorm:"type:uuid"`
}

func stamped(e shared.BaseEntity) StampedModel {
	return StampedModel{
		RowModel:  RowModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt},
		CreatedBy: e.CreatedBy,
		UpdatedBy: e.UpdatedBy,
	}
}

func (m *StampedModel) header() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		CreatedBy: m.CreatedBy,
		UpdatedBy: m.UpdatedBy,
	}
}
