package universal

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hera/backend/internal/domain/shared"
)

// Side is the debit/credit discriminator of a GL line
type Side string

const (
	SideDebit  Side = "DR"
	SideCredit Side = "CR"
)

// IsValid checks if the side is DR or CR
func (s Side) IsValid() bool {
	return s == SideDebit || s == SideCredit
}

// Transaction is a business event header
type Transaction struct {
	shared.BaseEntity
	OrganizationID  uuid.UUID
	TransactionType string
	TransactionCode string
	TransactionDate time.Time
	SmartCode       string
	TotalAmount     decimal.Decimal
	Currency        string
	Status          string
	Metadata        map[string]any
	SourceEntityID  *uuid.UUID
	TargetEntityID  *uuid.UUID
	Lines           []TransactionLine
}

// TransactionLine is a component of a transaction
type TransactionLine struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	OrganizationID uuid.UUID
	LineNumber     int
	SmartCode      string
	EntityID       *uuid.UUID
	Description    string
	Quantity       decimal.Decimal
	Unit           string
	UnitAmount     decimal.Decimal
	LineAmount     decimal.Decimal
	Side           Side
	Currency       string
	Metadata       map[string]any
}

// IsGL reports whether the line's smart code carries a GL segment
func (l *TransactionLine) IsGL() bool {
	for _, seg := range strings.Split(l.SmartCode, ".") {
		if seg == "GL" {
			return true
		}
	}
	return false
}

// AssignLineNumbers numbers lines 1..n in order and binds them to the header
func (t *Transaction) AssignLineNumbers() {
	for i := range t.Lines {
		t.Lines[i].LineNumber = i + 1
		t.Lines[i].TransactionID = t.ID
		t.Lines[i].OrganizationID = t.OrganizationID
		if t.Lines[i].ID == uuid.Nil {
			t.Lines[i].ID = uuid.New()
		}
	}
}
