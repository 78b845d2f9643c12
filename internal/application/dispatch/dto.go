package dispatch

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
)

// Operation is a generic CRUD verb
type Operation string

const (
	OpCreate  Operation = "CREATE"
	OpRead    Operation = "READ"
	OpUpdate  Operation = "UPDATE"
	OpDelete  Operation = "DELETE"
	OpArchive Operation = "ARCHIVE"
)

// IsValid checks if the operation is one of the generic verbs
func (o Operation) IsValid() bool {
	switch o {
	case OpCreate, OpRead, OpUpdate, OpDelete, OpArchive:
		return true
	}
	return false
}

// Family is the generic table family a request is routed to
type Family string

const (
	FamilyEntities     Family = "entities"
	FamilyTransactions Family = "transactions"
)

// ParseFamily maps a legacy command op onto a table family
func ParseFamily(op string) (Family, error) {
	switch Family(op) {
	case FamilyEntities, FamilyTransactions:
		return Family(op), nil
	}
	return "", ErrUnknownCommandOp.WithDetail("op", op)
}

// Caller is the resolved identity a request runs as. Nil ids are absent.
type Caller struct {
	ActorID        *uuid.UUID
	OrganizationID *uuid.UUID
}

// Options tune reads and transaction posting
type Options struct {
	AutoPostIf      string `json:"auto_post_if"`
	IncludeArchived bool   `json:"include_archived"`
	Limit           int    `json:"limit" binding:"omitempty,min=1,max=200"`
	Offset          int    `json:"offset" binding:"omitempty,min=0"`
}

// Page returns the normalized paging window
func (o Options) Page() shared.Page {
	return shared.Page{Limit: o.Limit, Offset: o.Offset}.Normalize()
}

// EntityData is the entity header of a request. On READ without id the
// entity_type, smart_code (prefix) and status fields act as filters. CREATE
// always assigns a new id.
type EntityData struct {
	ID             *uuid.UUID     `json:"id"`
	OrganizationID string         `json:"organization_id"`
	EntityType     string         `json:"entity_type" binding:"max=100"`
	EntityName     string         `json:"entity_name" binding:"max=255"`
	EntityCode     string         `json:"entity_code" binding:"max=100"`
	SmartCode      string         `json:"smart_code" binding:"max=255"`
	Status         string         `json:"status" binding:"max=50"`
	Metadata       map[string]any `json:"metadata"`
}

// FieldInput assigns one dynamic field
type FieldInput struct {
	OrganizationID string              `json:"organization_id"`
	FieldName      string              `json:"field_name" binding:"required,max=100"`
	FieldType      universal.FieldType `json:"field_type" binding:"omitempty,oneof=text number boolean date json"`
	FieldValue     json.RawMessage     `json:"field_value"`
	SmartCode      string              `json:"smart_code"`
}

// RelationshipInput adds an edge from the entity being written
type RelationshipInput struct {
	OrganizationID   string    `json:"organization_id"`
	ToEntityID       uuid.UUID `json:"to_entity_id" binding:"required"`
	RelationshipType string    `json:"relationship_type" binding:"required,max=100"`
	SmartCode        string    `json:"smart_code"`
	IsActive         *bool     `json:"is_active"`
}

// EntityRequest is a generic entity operation
type EntityRequest struct {
	Operation     Operation           `json:"operation" binding:"required,oneof=CREATE READ UPDATE DELETE ARCHIVE"`
	EntityData    EntityData          `json:"entity_data"`
	DynamicFields []FieldInput        `json:"dynamic_fields" binding:"omitempty,dive"`
	Relationships []RelationshipInput `json:"relationships" binding:"omitempty,dive"`
	Options       Options             `json:"options"`
}

// TransactionData is the transaction header of a request. On READ without id
// the transaction_type, smart_code (prefix) and status fields act as filters.
// CREATE always assigns a new id.
type TransactionData struct {
	ID              *uuid.UUID       `json:"id"`
	OrganizationID  string           `json:"organization_id"`
	TransactionType string           `json:"transaction_type" binding:"max=100"`
	TransactionCode string           `json:"transaction_code" binding:"max=100"`
	TransactionDate string           `json:"transaction_date"`
	SmartCode       string           `json:"smart_code" binding:"max=255"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	Currency        string           `json:"currency" binding:"max=10"`
	Status          string           `json:"status" binding:"max=50"`
	Metadata        map[string]any   `json:"metadata"`
	SourceEntityID  *uuid.UUID       `json:"source_entity_id"`
	TargetEntityID  *uuid.UUID       `json:"target_entity_id"`
}

// LineInput is one transaction line. Side and currency are only checked on
// GL lines.
type LineInput struct {
	OrganizationID string           `json:"organization_id"`
	SmartCode      string           `json:"smart_code"`
	EntityID       *uuid.UUID       `json:"entity_id"`
	Description    string           `json:"description" binding:"max=1000"`
	Quantity       *decimal.Decimal `json:"quantity"`
	Unit           string           `json:"unit" binding:"max=50"`
	UnitAmount     *decimal.Decimal `json:"unit_amount"`
	LineAmount     *decimal.Decimal `json:"line_amount"`
	Side           string           `json:"side"`
	Currency       string           `json:"currency" binding:"max=10"`
	Metadata       map[string]any   `json:"metadata"`
}

// TransactionRequest is a generic transaction operation. A nil Lines slice
// means no lines were supplied, which matters for UPDATE.
type TransactionRequest struct {
	Operation       Operation       `json:"operation" binding:"required,oneof=CREATE READ UPDATE DELETE ARCHIVE"`
	TransactionData TransactionData `json:"transaction_data"`
	Lines           []LineInput     `json:"lines" binding:"omitempty,dive"`
	Options         Options         `json:"options"`
}

// FieldResponse is a dynamic field in API responses
type FieldResponse struct {
	ID         uuid.UUID           `json:"id"`
	FieldName  string              `json:"field_name"`
	FieldType  universal.FieldType `json:"field_type"`
	FieldValue json.RawMessage     `json:"field_value"`
	SmartCode  string              `json:"smart_code"`
}

// RelationshipResponse is a relationship in API responses
type RelationshipResponse struct {
	ID               uuid.UUID `json:"id"`
	SourceEntityID   uuid.UUID `json:"source_entity_id"`
	TargetEntityID   uuid.UUID `json:"target_entity_id"`
	RelationshipType string    `json:"relationship_type"`
	IsActive         bool      `json:"is_active"`
	SmartCode        string    `json:"smart_code"`
}

// EntityResponse is an entity in API responses
type EntityResponse struct {
	ID             uuid.UUID              `json:"id"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	EntityType     string                 `json:"entity_type"`
	EntityName     string                 `json:"entity_name"`
	EntityCode     string                 `json:"entity_code,omitempty"`
	SmartCode      string                 `json:"smart_code"`
	Status         string                 `json:"status"`
	Metadata       map[string]any         `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	CreatedBy      *uuid.UUID             `json:"created_by,omitempty"`
	UpdatedBy      *uuid.UUID             `json:"updated_by,omitempty"`
	DynamicFields  []FieldResponse        `json:"dynamic_fields,omitempty"`
	Relationships  []RelationshipResponse `json:"relationships,omitempty"`
}

// EntityResult is the outcome of an entity operation. Single-row operations
// fill Entity; listings fill Page.
type EntityResult struct {
	Operation         Operation                         `json:"operation"`
	Entity            *EntityResponse                   `json:"entity,omitempty"`
	Page              *shared.Paginated[EntityResponse] `json:"page,omitempty"`
	FieldCount        int                               `json:"field_count"`
	RelationshipCount int                               `json:"relationship_count"`
}

// LineResponse is a transaction line in API responses
type LineResponse struct {
	ID          uuid.UUID       `json:"id"`
	LineNumber  int             `json:"line_number"`
	SmartCode   string          `json:"smart_code"`
	EntityID    *uuid.UUID      `json:"entity_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	LineAmount  decimal.Decimal `json:"line_amount"`
	Side        string          `json:"side,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// CurrencyTotalsResponse is the DR/CR summary of one currency
type CurrencyTotalsResponse struct {
	Currency   string          `json:"currency"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Difference decimal.Decimal `json:"difference"`
	LineCount  int             `json:"line_count"`
}

// TransactionResponse is a transaction in API responses
type TransactionResponse struct {
	ID              uuid.UUID                `json:"id"`
	OrganizationID  uuid.UUID                `json:"organization_id"`
	TransactionType string                   `json:"transaction_type"`
	TransactionCode string                   `json:"transaction_code,omitempty"`
	TransactionDate time.Time                `json:"transaction_date"`
	SmartCode       string                   `json:"smart_code"`
	TotalAmount     decimal.Decimal          `json:"total_amount"`
	Currency        string                   `json:"currency,omitempty"`
	Status          string                   `json:"status"`
	Metadata        map[string]any           `json:"metadata,omitempty"`
	SourceEntityID  *uuid.UUID               `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID               `json:"target_entity_id,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
	CreatedBy       *uuid.UUID               `json:"created_by,omitempty"`
	UpdatedBy       *uuid.UUID               `json:"updated_by,omitempty"`
	Lines           []LineResponse           `json:"lines,omitempty"`
	GLTotals        []CurrencyTotalsResponse `json:"gl_totals,omitempty"`
}

// TransactionResult is the outcome of a transaction operation
type TransactionResult struct {
	Operation   Operation                              `json:"operation"`
	Transaction *TransactionResponse                   `json:"transaction,omitempty"`
	Page        *shared.Paginated[TransactionResponse] `json:"page,omitempty"`
	LineCount   int                                    `json:"line_count"`
	GLLineCount int                                    `json:"gl_line_count"`
	AutoPosted  *bool                                  `json:"auto_posted,omitempty"`
}

// ToEntityResponse converts an aggregate to its API form
func ToEntityResponse(agg *universal.EntityAggregate) (EntityResponse, error) {
	e := agg.Entity
	resp := EntityResponse{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		EntityName:     e.EntityName,
		EntityCode:     e.EntityCode,
		SmartCode:      e.SmartCode,
		Status:         e.Status,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		CreatedBy:      e.CreatedBy,
		UpdatedBy:      e.UpdatedBy,
	}
	for i := range agg.Fields {
		f := &agg.Fields[i]
		raw, err := universal.MarshalFieldValue(f.Value)
		if err != nil {
			return EntityResponse{}, ErrFieldNotRenderable.
				WithDetail("field_name", f.FieldName).
				WithCause(err)
		}
		resp.DynamicFields = append(resp.DynamicFields, FieldResponse{
			ID:         f.ID,
			FieldName:  f.FieldName,
			FieldType:  f.FieldType(),
			FieldValue: raw,
			SmartCode:  f.SmartCode,
		})
	}
	for _, r := range agg.Relationships {
		resp.Relationships = append(resp.Relationships, RelationshipResponse{
			ID:               r.ID,
			SourceEntityID:   r.SourceEntityID,
			TargetEntityID:   r.TargetEntityID,
			RelationshipType: r.RelationshipType,
			IsActive:         r.IsActive,
			SmartCode:        r.SmartCode,
		})
	}
	return resp, nil
}

// ToTransactionResponse converts a transaction and its GL summary to API form
func ToTransactionResponse(txn *universal.Transaction, summary guardrail.GLSummary) TransactionResponse {
	resp := TransactionResponse{
		ID:              txn.ID,
		OrganizationID:  txn.OrganizationID,
		TransactionType: txn.TransactionType,
		TransactionCode: txn.TransactionCode,
		TransactionDate: txn.TransactionDate,
		SmartCode:       txn.SmartCode,
		TotalAmount:     txn.TotalAmount,
		Currency:        txn.Currency,
		Status:          txn.Status,
		Metadata:        txn.Metadata,
		SourceEntityID:  txn.SourceEntityID,
		TargetEntityID:  txn.TargetEntityID,
		CreatedAt:       txn.CreatedAt,
		UpdatedAt:       txn.UpdatedAt,
		CreatedBy:       txn.CreatedBy,
		UpdatedBy:       txn.UpdatedBy,
	}
	for _, l := range txn.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:          l.ID,
			LineNumber:  l.LineNumber,
			SmartCode:   l.SmartCode,
			EntityID:    l.EntityID,
			Description: l.Description,
			Quantity:    l.Quantity,
			Unit:        l.Unit,
			UnitAmount:  l.UnitAmount,
			LineAmount:  l.LineAmount,
			Side:        string(l.Side),
			Currency:    l.Currency,
			Metadata:    l.Metadata,
		})
	}
	for _, c := range summary.Currencies {
		resp.GLTotals = append(resp.GLTotals, CurrencyTotalsResponse{
			Currency:   c.Currency,
			Debit:      c.Debit,
			Credit:     c.Credit,
			Difference: c.Difference,
			LineCount:  c.LineCount,
		})
	}
	return resp
}
