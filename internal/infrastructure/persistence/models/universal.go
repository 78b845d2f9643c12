package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hera/backend/internal/domain/universal"
)

// OrganizationModel is the tenant registry row
type OrganizationModel struct {
	RowModel
	OrganizationName string `gorm:"size:255;not null"`
	OrganizationCode string `gorm:"size:100;uniqueIndex"`
	Settings         string `gorm:"type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (OrganizationModel) TableName() string {
	return "core_organizations"
}

// FromDomain populates the model from a domain organization
func (m *OrganizationModel) FromDomain(o *universal.Organization) {
	m.ID = o.ID
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
	m.OrganizationName = o.Name
	m.OrganizationCode = o.Code
	m.Settings = EncodeJSON(o.Settings)
}

// ToDomain converts the model to a domain organization
func (m *OrganizationModel) ToDomain() *universal.Organization {
	return &universal.Organization{
		ID:        m.ID,
		Name:      m.OrganizationName,
		Code:      m.OrganizationCode,
		Settings:  decodeJSON(m.Settings),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// EntityModel is a row of core_entities
type EntityModel struct {
	StampedModel
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index"`
	EntityType     string    `gorm:"size:100;not null;index"`
	EntityName     string    `gorm:"size:255;not null"`
	EntityCode     string    `gorm:"size:100"`
	SmartCode      string    `gorm:"size:255;not null;index"`
	Status         string    `gorm:"size:50;not null"`
	Metadata       string    `gorm:"type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (EntityModel) TableName() string {
	return "core_entities"
}

// FromDomain populates the model from a domain entity
func (m *EntityModel) FromDomain(e *universal.Entity) {
	m.StampedModel = stamped(e.BaseEntity)
	m.OrganizationID = e.OrganizationID
	m.EntityType = e.EntityType
	m.EntityName = e.EntityName
	m.EntityCode = e.EntityCode
	m.SmartCode = e.SmartCode
	m.Status = e.Status
	m.Metadata = EncodeJSON(e.Metadata)
}

// ToDomain converts the model to a domain entity
func (m *EntityModel) ToDomain() *universal.Entity {
	return &universal.Entity{
		BaseEntity:     m.header(),
		OrganizationID: m.OrganizationID,
		EntityType:     m.EntityType,
		EntityName:     m.EntityName,
		EntityCode:     m.EntityCode,
		SmartCode:      m.SmartCode,
		Status:         m.Status,
		Metadata:       decodeJSON(m.Metadata),
	}
}

// DynamicDataModel is a row of core_dynamic_data. Exactly one value column
// is non-null; the field type is derived from which one.
type DynamicDataModel struct {
	StampedModel
	OrganizationID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	EntityID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_core_dynamic_data_entity_field"`
	FieldName         string     `gorm:"size:100;not null;uniqueIndex:idx_core_dynamic_data_entity_field"`
	FieldValueText    *string    `gorm:"type:text"`
	FieldValueNumber  *float64   `gorm:"type:double precision"`
	FieldValueBoolean *bool
	FieldValueDate    *time.Time
	FieldValueJSON    *string    `gorm:"column:field_value_json;type:jsonb"`
	SmartCode         string     `gorm:"size:255;not null"`
}

// TableName returns the table name for GORM
func (DynamicDataModel) TableName() string {
	return "core_dynamic_data"
}

// ValueColumns lists the value slot columns, all rewritten on upsert
var ValueColumns = []string{
	"field_value_text",
	"field_value_number",
	"field_value_boolean",
	"field_value_date",
	"field_value_json",
}

// FromDomain populates the model from a domain dynamic field
func (m *DynamicDataModel) FromDomain(f *universal.DynamicField) {
	m.StampedModel = stamped(f.BaseEntity)
	m.OrganizationID = f.OrganizationID
	m.EntityID = f.EntityID
	m.FieldName = f.FieldName
	m.SmartCode = f.SmartCode
	m.FieldValueText, m.FieldValueNumber, m.FieldValueBoolean, m.FieldValueDate, m.FieldValueJSON = nil, nil, nil, nil, nil
	switch v := f.Value.(type) {
	case universal.TextValue:
		s := string(v)
		m.FieldValueText = &s
	case universal.NumberValue:
		n := float64(v)
		m.FieldValueNumber = &n
	case universal.BooleanValue:
		b := bool(v)
		m.FieldValueBoolean = &b
	case universal.DateValue:
		t := time.Time(v).UTC()
		m.FieldValueDate = &t
	case universal.JSONValue:
		s := string(v)
		m.FieldValueJSON = &s
	}
}

// ToDomain converts the model to a domain dynamic field
func (m *DynamicDataModel) ToDomain() *universal.DynamicField {
	f := &universal.DynamicField{
		BaseEntity:     m.header(),
		EntityID:       m.EntityID,
		OrganizationID: m.OrganizationID,
		FieldName:      m.FieldName,
		SmartCode:      m.SmartCode,
	}
	switch {
	case m.FieldValueText != nil:
		f.Value = universal.TextValue(*m.FieldValueText)
	case m.FieldValueNumber != nil:
		f.Value = universal.NumberValue(*m.FieldValueNumber)
	case m.FieldValueBoolean != nil:
		f.Value = universal.BooleanValue(*m.FieldValueBoolean)
	case m.FieldValueDate != nil:
		f.Value = universal.DateValue(m.FieldValueDate.UTC())
	case m.FieldValueJSON != nil:
		f.Value = universal.JSONValue(json.RawMessage(*m.FieldValueJSON))
	}
	return f
}

// RelationshipModel is a row of core_relationships
type RelationshipModel struct {
	StampedModel
	OrganizationID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SourceEntityID   uuid.UUID `gorm:"type:uuid;not null;index"`
	TargetEntityID   uuid.UUID `gorm:"type:uuid;not null;index"`
	RelationshipType string    `gorm:"size:100;not null;index"`
	IsActive         bool      `gorm:"not null"`
	SmartCode        string    `gorm:"size:255;not null"`
}

// TableName returns the table name for GORM
func (RelationshipModel) TableName() string {
	return "core_relationships"
}

// FromDomain populates the model from a domain relationship
func (m *RelationshipModel) FromDomain(r *universal.Relationship) {
	m.StampedModel = stamped(r.BaseEntity)
	m.OrganizationID = r.OrganizationID
	m.SourceEntityID = r.SourceEntityID
	m.TargetEntityID = r.TargetEntityID
	m.RelationshipType = r.RelationshipType
	m.IsActive = r.IsActive
	m.SmartCode = r.SmartCode
}

// ToDomain converts the model to a domain relationship
func (m *RelationshipModel) ToDomain() *universal.Relationship {
	return &universal.Relationship{
		BaseEntity:       m.header(),
		OrganizationID:   m.OrganizationID,
		SourceEntityID:   m.SourceEntityID,
		TargetEntityID:   m.TargetEntityID,
		RelationshipType: m.RelationshipType,
		IsActive:         m.IsActive,
		SmartCode:        m.SmartCode,
	}
}

// TransactionModel is a row of universal_transactions
type TransactionModel struct {
	StampedModel
	OrganizationID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransactionType string          `gorm:"size:100;not null;index"`
	TransactionCode string          `gorm:"size:100"`
	TransactionDate time.Time       `gorm:"not null;index"`
	SmartCode       string          `gorm:"size:255;not null;index"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Currency        string          `gorm:"size:10"`
	Status          string          `gorm:"size:50;not null"`
	Metadata        string          `gorm:"type:jsonb;default:'{}'"`
	SourceEntityID  *uuid.UUID      `gorm:"type:uuid"`
	TargetEntityID  *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "universal_transactions"
}

// FromDomain populates the header model from a domain transaction
func (m *TransactionModel) FromDomain(t *universal.Transaction) {
	m.StampedModel = stamped(t.BaseEntity)
	m.OrganizationID = t.OrganizationID
	m.TransactionType = t.TransactionType
	m.TransactionCode = t.TransactionCode
	m.TransactionDate = t.TransactionDate
	m.SmartCode = t.SmartCode
	m.TotalAmount = t.TotalAmount
	m.Currency = t.Currency
	m.Status = t.Status
	m.Metadata = EncodeJSON(t.Metadata)
	m.SourceEntityID = t.SourceEntityID
	m.TargetEntityID = t.TargetEntityID
}

// ToDomain converts the header model to a domain transaction without lines
func (m *TransactionModel) ToDomain() *universal.Transaction {
	return &universal.Transaction{
		BaseEntity:      m.header(),
		OrganizationID:  m.OrganizationID,
		TransactionType: m.TransactionType,
		TransactionCode: m.TransactionCode,
		TransactionDate: m.TransactionDate,
		SmartCode:       m.SmartCode,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		Status:          m.Status,
		Metadata:        decodeJSON(m.Metadata),
		SourceEntityID:  m.SourceEntityID,
		TargetEntityID:  m.TargetEntityID,
	}
}

// TransactionLineModel is a row of universal_transaction_lines
type TransactionLineModel struct {
	RowModel
	TransactionID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber     int             `gorm:"not null"`
	SmartCode      string          `gorm:"size:255;not null"`
	EntityID       *uuid.UUID      `gorm:"type:uuid"`
	Description    string          `gorm:"size:1000"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Unit           string          `gorm:"size:50"`
	UnitAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	LineAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	Side           string          `gorm:"size:2"`
	Currency       string          `gorm:"size:10"`
	Metadata       string          `gorm:"type:jsonb;default:'{}'"`
}

// TableName returns the table name for GORM
func (TransactionLineModel) TableName() string {
	return "universal_transaction_lines"
}

// FromDomain populates the model from a domain line
func (m *TransactionLineModel) FromDomain(l *universal.TransactionLine, at time.Time) {
	m.ID = l.ID
	m.CreatedAt = at
	m.UpdatedAt = at
	m.TransactionID = l.TransactionID
	m.OrganizationID = l.OrganizationID
	m.LineNumber = l.LineNumber
	m.SmartCode = l.SmartCode
	m.EntityID = l.EntityID
	m.Description = l.Description
	m.Quantity = l.Quantity
	m.Unit = l.Unit
	m.UnitAmount = l.UnitAmount
	m.LineAmount = l.LineAmount
	m.Side = string(l.Side)
	m.Currency = l.Currency
	m.Metadata = EncodeJSON(l.Metadata)
}

// ToDomain converts the model to a domain line
func (m *TransactionLineModel) ToDomain() universal.TransactionLine {
	return universal.TransactionLine{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		OrganizationID: m.OrganizationID,
		LineNumber:     m.LineNumber,
		SmartCode:      m.SmartCode,
		EntityID:       m.EntityID,
		Description:    m.Description,
		Quantity:       m.Quantity,
		Unit:           m.Unit,
		UnitAmount:     m.UnitAmount,
		LineAmount:     m.LineAmount,
		Side:           universal.Side(m.Side),
		Currency:       m.Currency,
		Metadata:       decodeJSON(m.Metadata),
	}
}

// UniversalModels returns every model of the six generic tables, in
// dependency order
func UniversalModels() []any {
	return []any{
		&OrganizationModel{},
		&EntityModel{},
		&DynamicDataModel{},
		&RelationshipModel{},
		&TransactionModel{},
		&TransactionLineModel{},
	}
}

// EncodeJSON renders a metadata map as jsonb text
func EncodeJSON(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeJSON(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
