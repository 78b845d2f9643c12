package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hera/backend/internal/domain/autopost"
	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
	"github.com/hera/backend/internal/infrastructure/telemetry"
)

// DispatchTransaction runs a generic operation against the transaction family
func (d *Dispatcher) DispatchTransaction(ctx context.Context, caller Caller, req TransactionRequest) (result *TransactionResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, string(FamilyTransactions), strings.ToLower(string(req.Operation)))
	defer span.End()
	defer func() { d.observe(ctx, span, FamilyTransactions, req.Operation, caller, err) }()

	nested := make([]string, 0, len(req.Lines))
	for _, l := range req.Lines {
		nested = append(nested, l.OrganizationID)
	}

	orgID, actorID, err := d.admit(ctx, FamilyTransactions, req.Operation, caller, req.TransactionData.OrganizationID, nested)
	if err != nil {
		return nil, err
	}

	switch req.Operation {
	case OpCreate:
		return d.createTransaction(ctx, orgID, actorID, req)
	case OpRead:
		return d.readTransaction(ctx, orgID, req)
	case OpUpdate:
		return d.updateTransaction(ctx, orgID, actorID, req)
	case OpDelete:
		return d.setTransactionStatus(ctx, orgID, actorID, req, universal.StatusDeleted)
	default:
		return d.setTransactionStatus(ctx, orgID, actorID, req, universal.StatusArchived)
	}
}

func (d *Dispatcher) createTransaction(ctx context.Context, orgID, actorID uuid.UUID, req TransactionRequest) (*TransactionResult, error) {
	data := req.TransactionData
	if strings.TrimSpace(data.TransactionType) == "" {
		return nil, missingField("transaction_type")
	}
	if err := d.validateHeader(data.SmartCode, data.TransactionType, "transaction_data"); err != nil {
		return nil, err
	}
	date, err := d.transactionDate(data.TransactionDate)
	if err != nil {
		return nil, err
	}

	lines, err := d.buildLines(req.Lines, data.Currency)
	if err != nil {
		return nil, err
	}
	summary, err := d.gl.Validate(lines)
	if err != nil {
		return nil, err
	}

	txn := &universal.Transaction{
		BaseEntity:      shared.NewBaseEntity(actorID),
		OrganizationID:  orgID,
		TransactionType: data.TransactionType,
		TransactionCode: data.TransactionCode,
		TransactionDate: date,
		SmartCode:       data.SmartCode,
		Currency:        data.Currency,
		Status:          data.Status,
		Metadata:        data.Metadata,
		SourceEntityID:  data.SourceEntityID,
		TargetEntityID:  data.TargetEntityID,
		Lines:           lines,
	}
	if data.TotalAmount != nil {
		txn.TotalAmount = *data.TotalAmount
	}

	var autoPosted *bool
	if cond := strings.TrimSpace(req.Options.AutoPostIf); cond != "" {
		posted, err := autopost.Evaluate(cond, autopost.Variables{
			TotalAmount:     txn.TotalAmount,
			LineCount:       len(lines),
			Currency:        txn.Currency,
			TransactionType: txn.TransactionType,
			SmartCode:       txn.SmartCode,
			HasGLLines:      summary.GLLines > 0,
		})
		if err != nil {
			return nil, err
		}
		autoPosted = &posted
		txn.Status = universal.StatusDraft
		if posted {
			txn.Status = universal.StatusPosted
		}
	}
	if txn.Status == "" {
		txn.Status = universal.StatusDraft
	}
	txn.AssignLineNumbers()

	if err := d.store.CreateTransaction(ctx, txn); err != nil {
		return nil, storeError(err)
	}
	result := transactionResult(OpCreate, txn, summary)
	result.AutoPosted = autoPosted
	return result, nil
}

func (d *Dispatcher) readTransaction(ctx context.Context, orgID uuid.UUID, req TransactionRequest) (*TransactionResult, error) {
	data := req.TransactionData
	if data.ID != nil {
		txn, err := d.store.GetTransaction(ctx, orgID, *data.ID)
		if err != nil {
			return nil, storeError(err)
		}
		return transactionResult(OpRead, txn, d.gl.Summarize(txn.Lines)), nil
	}

	page := req.Options.Page()
	items, total, err := d.store.ListTransactions(ctx, universal.TransactionQuery{
		OrganizationID:  orgID,
		TransactionType: data.TransactionType,
		SmartCodePrefix: data.SmartCode,
		Status:          data.Status,
		IncludeArchived: req.Options.IncludeArchived,
		Page:            page,
	})
	if err != nil {
		return nil, storeError(err)
	}
	responses := make([]TransactionResponse, 0, len(items))
	for i := range items {
		responses = append(responses, ToTransactionResponse(&items[i], guardrail.GLSummary{}))
	}
	paginated := shared.NewPaginated(responses, total, page)
	return &TransactionResult{Operation: OpRead, Page: &paginated}, nil
}

func (d *Dispatcher) updateTransaction(ctx context.Context, orgID, actorID uuid.UUID, req TransactionRequest) (*TransactionResult, error) {
	data := req.TransactionData
	if data.ID == nil {
		return nil, ErrIDRequired.WithDetail("operation", string(OpUpdate))
	}
	if data.SmartCode != "" {
		if err := d.validateCode(data.SmartCode, "transaction_data"); err != nil {
			return nil, err
		}
	}

	txn, err := d.store.GetTransaction(ctx, orgID, *data.ID)
	if err != nil {
		return nil, storeError(err)
	}
	if data.TransactionType != "" {
		txn.TransactionType = data.TransactionType
	}
	if data.TransactionCode != "" {
		txn.TransactionCode = data.TransactionCode
	}
	if data.TransactionDate != "" {
		date, err := d.transactionDate(data.TransactionDate)
		if err != nil {
			return nil, err
		}
		txn.TransactionDate = date
	}
	if data.SmartCode != "" {
		txn.SmartCode = data.SmartCode
	}
	if data.TotalAmount != nil {
		txn.TotalAmount = *data.TotalAmount
	}
	if data.Currency != "" {
		txn.Currency = data.Currency
	}
	if data.Status != "" {
		txn.Status = data.Status
	}
	if data.Metadata != nil {
		txn.Metadata = data.Metadata
	}
	if data.SourceEntityID != nil {
		txn.SourceEntityID = data.SourceEntityID
	}
	if data.TargetEntityID != nil {
		txn.TargetEntityID = data.TargetEntityID
	}
	if data.SmartCode != "" || data.TransactionType != "" {
		if err := d.validateHeader(txn.SmartCode, txn.TransactionType, "transaction_data"); err != nil {
			return nil, err
		}
	}

	replaceLines := req.Lines != nil
	if replaceLines {
		lines, err := d.buildLines(req.Lines, txn.Currency)
		if err != nil {
			return nil, err
		}
		txn.Lines = lines
	}
	summary, err := d.gl.Validate(txn.Lines)
	if err != nil {
		return nil, err
	}

	txn.Touch(actorID)
	txn.AssignLineNumbers()
	if err := d.store.UpdateTransaction(ctx, txn, replaceLines); err != nil {
		return nil, storeError(err)
	}
	return transactionResult(OpUpdate, txn, summary), nil
}

func (d *Dispatcher) setTransactionStatus(ctx context.Context, orgID, actorID uuid.UUID, req TransactionRequest, status string) (*TransactionResult, error) {
	if req.TransactionData.ID == nil {
		return nil, ErrIDRequired.WithDetail("operation", string(req.Operation))
	}
	txn, err := d.store.SetTransactionStatus(ctx, orgID, *req.TransactionData.ID, status, actorID)
	if err != nil {
		return nil, storeError(err)
	}
	return transactionResult(req.Operation, txn, d.gl.Summarize(txn.Lines)), nil
}

// buildLines translates line items into transaction lines. A line without
// a currency inherits the header currency.
func (d *Dispatcher) buildLines(inputs []LineInput, headerCurrency string) ([]universal.TransactionLine, error) {
	lines := make([]universal.TransactionLine, 0, len(inputs))
	for i, in := range inputs {
		if err := d.validateCode(in.SmartCode, fmt.Sprintf("lines[%d]", i)); err != nil {
			return nil, err
		}

		quantity := decimal.NewFromInt(1)
		if in.Quantity != nil {
			quantity = *in.Quantity
		}
		var unitAmount decimal.Decimal
		if in.UnitAmount != nil {
			unitAmount = *in.UnitAmount
		}
		lineAmount := quantity.Mul(unitAmount)
		if in.LineAmount != nil {
			lineAmount = *in.LineAmount
		}
		currency := in.Currency
		if currency == "" {
			currency = headerCurrency
		}

		lines = append(lines, universal.TransactionLine{
			SmartCode:   in.SmartCode,
			EntityID:    in.EntityID,
			Description: in.Description,
			Quantity:    quantity,
			Unit:        in.Unit,
			UnitAmount:  unitAmount,
			LineAmount:  lineAmount,
			Side:        universal.Side(in.Side),
			Currency:    currency,
			Metadata:    in.Metadata,
		})
	}
	return lines, nil
}

func (d *Dispatcher) transactionDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return d.now(), nil
	}
	t, err := universal.ParseDate(raw)
	if err != nil {
		return time.Time{}, ErrInvalidRequest.
			WithDetail("field", "transaction_date").
			WithHint("transaction_date takes an RFC3339 or YYYY-MM-DD string")
	}
	return t, nil
}

func transactionResult(op Operation, txn *universal.Transaction, summary guardrail.GLSummary) *TransactionResult {
	resp := ToTransactionResponse(txn, summary)
	return &TransactionResult{
		Operation:   op,
		Transaction: &resp,
		LineCount:   len(txn.Lines),
		GLLineCount: summary.GLLines,
	}
}
