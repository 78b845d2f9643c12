package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/domain/universal"
)

const (
	journalCode = "HERA.FIN.GL.JOURNAL.v1"
	glLineCode  = "HERA.FIN.GL.LINE.v1"
	saleCode    = "HERA.SALON.SALE.TXN.v1"
	saleLine    = "HERA.SALON.SALE.LINE.v1"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func glLine(side, amount, currency string) LineInput {
	return LineInput{SmartCode: glLineCode, Side: side, LineAmount: dec(amount), Currency: currency}
}

func journalRequest(org uuid.UUID, lines ...LineInput) TransactionRequest {
	return TransactionRequest{
		Operation: OpCreate,
		TransactionData: TransactionData{
			OrganizationID:  org.String(),
			TransactionType: "journal_entry",
			SmartCode:       journalCode,
			TotalAmount:     dec("1000"),
			Currency:        "AED",
		},
		Lines: lines,
	}
}

func balancedLines() []LineInput {
	return []LineInput{
		glLine("DR", "1000", "AED"),
		glLine("CR", "950", "AED"),
		glLine("CR", "50", "AED"),
	}
}

func TestDispatchTransaction_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("balanced journal is stored as draft", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.MatchedBy(func(txn *universal.Transaction) bool {
			return txn.OrganizationID == f.org &&
				txn.Status == universal.StatusDraft &&
				txn.TransactionDate.Equal(fixedNow) &&
				len(txn.Lines) == 3 &&
				txn.Lines[2].LineNumber == 3 &&
				txn.Lines[2].TransactionID == txn.ID &&
				txn.Lines[2].OrganizationID == f.org
		})).Return(nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller, journalRequest(f.org, balancedLines()...))
		require.NoError(t, err)
		assert.Equal(t, 3, result.LineCount)
		assert.Equal(t, 3, result.GLLineCount)
		require.Len(t, result.Transaction.GLTotals, 1)
		totals := result.Transaction.GLTotals[0]
		assert.Equal(t, "AED", totals.Currency)
		assert.True(t, totals.Debit.Equal(decimal.NewFromInt(1000)))
		assert.True(t, totals.Credit.Equal(decimal.NewFromInt(1000)))
		assert.Nil(t, result.AutoPosted)
		assert.Equal(t, []string{"transactions.CREATE=ok"}, f.recorder.outcomes)
	})

	t.Run("client supplied id is replaced", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		supplied := uuid.New()
		req := journalRequest(f.org, balancedLines()...)
		req.TransactionData.ID = &supplied

		f.store.On("CreateTransaction", ctx, mock.MatchedBy(func(txn *universal.Transaction) bool {
			return txn.ID != supplied && txn.Lines[0].TransactionID == txn.ID
		})).Return(nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
		assert.NotEqual(t, supplied, result.Transaction.ID)
		f.store.AssertExpectations(t)
	})

	t.Run("guardrail violations never reach the store", func(t *testing.T) {
		tests := []struct {
			name  string
			lines []LineInput
			code  string
		}{
			{"unbalanced", []LineInput{glLine("DR", "1000", "AED"), glLine("CR", "950", "AED")}, "GL_NOT_BALANCED"},
			{"missing side", []LineInput{glLine("", "10", "AED"), glLine("CR", "10", "AED")}, "GL_SIDE_REQUIRED"},
			{"lowercase side", []LineInput{glLine("dr", "10", "AED"), glLine("CR", "10", "AED")}, "GL_SIDE_REQUIRED"},
			{"negative amount", []LineInput{glLine("DR", "-10", "AED"), glLine("CR", "-10", "AED")}, "NEGATIVE_GL_AMOUNT"},
			{"unbalanced in one currency", []LineInput{
				glLine("DR", "100", "USD"), glLine("CR", "100", "USD"),
				glLine("DR", "10", "EUR"), glLine("CR", "9", "EUR"),
			}, "GL_NOT_BALANCED"},
			{"malformed line smart code", []LineInput{{SmartCode: "HERA.GL.v1"}}, "SMARTCODE_REGEX_FAIL"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				f.allow()

				_, err := f.d.DispatchTransaction(ctx, f.caller, journalRequest(f.org, tt.lines...))
				assert.Equal(t, tt.code, codeOf(t, err))
				assert.Equal(t, []string{tt.code}, f.recorder.rejections)
				f.store.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("non GL lines are not balanced", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		req := journalRequest(f.org,
			LineInput{SmartCode: saleLine, Quantity: dec("2"), UnitAmount: dec("75.50")},
			LineInput{SmartCode: saleLine, LineAmount: dec("-20")},
		)
		req.TransactionData.SmartCode = saleCode

		result, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
		assert.Equal(t, 0, result.GLLineCount)
		assert.True(t, result.Transaction.Lines[0].LineAmount.Equal(decimal.RequireFromString("151")))
		assert.True(t, result.Transaction.Lines[1].Quantity.Equal(decimal.NewFromInt(1)))
	})

	t.Run("lines inherit the header currency", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller,
			journalRequest(f.org, glLine("DR", "5", ""), glLine("CR", "5", "")))
		require.NoError(t, err)
		assert.Equal(t, "AED", result.Transaction.Lines[0].Currency)
		assert.Equal(t, "AED", result.Transaction.GLTotals[0].Currency)
	})

	t.Run("line organization must match", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		lines := balancedLines()
		lines[1].OrganizationID = uuid.NewString()

		_, err := f.d.DispatchTransaction(ctx, f.caller, journalRequest(f.org, lines...))
		assert.Equal(t, "ORG_FILTER_MISMATCH", codeOf(t, err))
	})

	t.Run("rejects malformed transaction date", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		req := journalRequest(f.org, balancedLines()...)
		req.TransactionData.TransactionDate = "01/03/2024"

		_, err := f.d.DispatchTransaction(ctx, f.caller, req)
		assert.Equal(t, "INVALID_REQUEST", codeOf(t, err))
	})

	t.Run("accepts date-only transaction date", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		req := journalRequest(f.org, balancedLines()...)
		req.TransactionData.TransactionDate = "2024-01-15"

		result, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-15", result.Transaction.TransactionDate.Format("2006-01-02"))
	})
}

func TestDispatchTransaction_AutoPost(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		condition string
		status    string
		posted    bool
	}{
		{"condition holds", "total_amount >= 1000 AND currency == 'AED'", universal.StatusPosted, true},
		{"condition fails", "total_amount > 1000 || line_count > 5", universal.StatusDraft, false},
		{"GL lines present", "has_gl_lines == true", universal.StatusPosted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.allow()
			f.store.On("CreateTransaction", ctx, mock.MatchedBy(func(txn *universal.Transaction) bool {
				return txn.Status == tt.status
			})).Return(nil)
			req := journalRequest(f.org, balancedLines()...)
			req.TransactionData.Status = "pending"
			req.Options.AutoPostIf = tt.condition

			result, err := f.d.DispatchTransaction(ctx, f.caller, req)
			require.NoError(t, err)
			require.NotNil(t, result.AutoPosted)
			assert.Equal(t, tt.posted, *result.AutoPosted)
			assert.Equal(t, tt.status, result.Transaction.Status)
		})
	}

	t.Run("caller status is kept without a condition", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		req := journalRequest(f.org, balancedLines()...)
		req.TransactionData.Status = universal.StatusPosted

		result, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
		assert.Equal(t, universal.StatusPosted, result.Transaction.Status)
	})

	t.Run("invalid condition is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		req := journalRequest(f.org, balancedLines()...)
		req.Options.AutoPostIf = "__import__('os').system('id')"

		_, err := f.d.DispatchTransaction(ctx, f.caller, req)
		assert.Equal(t, "INVALID_AUTO_POST_CONDITION", codeOf(t, err))
		f.store.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
	})
}

func TestDispatchTransaction_RequiredFamily(t *testing.T) {
	ctx := context.Background()
	cfg := guardrail.DefaultPolicyConfig()
	cfg.RequiredFamilies = map[string]string{"journal_entry": "HERA.FIN.GL."}

	t.Run("journal in the GL family is stored", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)

		_, err := f.d.DispatchTransaction(ctx, f.caller, journalRequest(f.org, balancedLines()...))
		require.NoError(t, err)
	})

	t.Run("journal outside the GL family is rejected", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		req := journalRequest(f.org, balancedLines()...)
		req.TransactionData.SmartCode = saleCode

		_, err := f.d.DispatchTransaction(ctx, f.caller, req)
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "SMARTCODE_PREFIX_MISMATCH", de.Code)
		assert.Equal(t, "HERA.FIN.GL", de.Detail["required_family"])
		assert.Equal(t, "transaction_data", de.Detail["location"])
		f.store.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
	})

	t.Run("unconfigured types accept any valid code", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		f.store.On("CreateTransaction", ctx, mock.Anything).Return(nil)
		req := journalRequest(f.org, LineInput{SmartCode: saleLine, LineAmount: dec("10")})
		req.TransactionData.TransactionType = "sale"
		req.TransactionData.SmartCode = saleCode

		_, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
	})

	t.Run("replacement code is checked on update", func(t *testing.T) {
		f := newFixtureWith(t, cfg)
		f.allow()
		stored := storedJournal(f.org)
		f.store.On("GetTransaction", ctx, f.org, stored.ID).Return(stored, nil)

		_, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
			Operation:       OpUpdate,
			TransactionData: TransactionData{ID: &stored.ID, OrganizationID: f.org.String(), SmartCode: saleCode},
		})
		assert.Equal(t, "SMARTCODE_PREFIX_MISMATCH", codeOf(t, err))
		f.store.AssertNotCalled(t, "UpdateTransaction", mock.Anything, mock.Anything, mock.Anything)
	})
}

func storedJournal(org uuid.UUID) *universal.Transaction {
	txn := &universal.Transaction{
		BaseEntity:      shared.BaseEntity{ID: uuid.New()},
		OrganizationID:  org,
		TransactionType: "journal_entry",
		SmartCode:       journalCode,
		Currency:        "AED",
		Status:          universal.StatusPosted,
		Lines: []universal.TransactionLine{
			{SmartCode: glLineCode, Side: universal.SideDebit, LineAmount: decimal.NewFromInt(1000), Currency: "AED"},
			{SmartCode: glLineCode, Side: universal.SideCredit, LineAmount: decimal.NewFromInt(950), Currency: "AED"},
			{SmartCode: glLineCode, Side: universal.SideCredit, LineAmount: decimal.NewFromInt(50), Currency: "AED"},
		},
	}
	txn.AssignLineNumbers()
	return txn
}

func TestDispatchTransaction_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("by id recomputes GL totals", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		stored := storedJournal(f.org)
		f.store.On("GetTransaction", ctx, f.org, stored.ID).Return(stored, nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
			Operation:       OpRead,
			TransactionData: TransactionData{ID: &stored.ID, OrganizationID: f.org.String()},
		})
		require.NoError(t, err)
		require.Len(t, result.Transaction.GLTotals, 1)
		assert.True(t, result.Transaction.GLTotals[0].Debit.Equal(decimal.NewFromInt(1000)))
		assert.True(t, result.Transaction.GLTotals[0].Credit.Equal(decimal.NewFromInt(1000)))
		assert.True(t, result.Transaction.GLTotals[0].Difference.IsZero())
		assert.Equal(t, 3, result.LineCount)
	})

	t.Run("list passes filters", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("ListTransactions", ctx, universal.TransactionQuery{
			OrganizationID:  f.org,
			TransactionType: "sale",
			Status:          universal.StatusPosted,
			Page:            shared.Page{Limit: 10, Offset: 20},
		}).Return([]universal.Transaction{}, int64(0), nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
			Operation: OpRead,
			TransactionData: TransactionData{
				OrganizationID:  f.org.String(),
				TransactionType: "sale",
				Status:          universal.StatusPosted,
			},
			Options: Options{Limit: 10, Offset: 20},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Page.Items)
		assert.Equal(t, 10, result.Page.Limit)
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		f.store.On("ListTransactions", ctx, mock.Anything).Return(nil, int64(0), errors.New("connection reset by peer"))

		_, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
			Operation:       OpRead,
			TransactionData: TransactionData{OrganizationID: f.org.String()},
		})
		require.Error(t, err)
		assert.Equal(t, "STORE_ERROR: connection reset by peer", err.Error())
	})
}

func TestDispatchTransaction_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("header only keeps lines", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		stored := storedJournal(f.org)
		f.store.On("GetTransaction", ctx, f.org, stored.ID).Return(stored, nil)
		f.store.On("UpdateTransaction", ctx, mock.MatchedBy(func(txn *universal.Transaction) bool {
			return txn.TransactionCode == "JE-42" && len(txn.Lines) == 3
		}), false).Return(nil)

		result, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
			Operation: OpUpdate,
			TransactionData: TransactionData{
				ID:              &stored.ID,
				OrganizationID:  f.org.String(),
				TransactionCode: "JE-42",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "JE-42", result.Transaction.TransactionCode)
		f.store.AssertExpectations(t)
	})

	t.Run("supplied lines replace the set", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		stored := storedJournal(f.org)
		f.store.On("GetTransaction", ctx, f.org, stored.ID).Return(stored, nil)
		f.store.On("UpdateTransaction", ctx, mock.MatchedBy(func(txn *universal.Transaction) bool {
			return len(txn.Lines) == 2 && txn.Lines[1].LineNumber == 2
		}), true).Return(nil)

		req := journalRequest(f.org, glLine("DR", "20", "AED"), glLine("CR", "20", "AED"))
		req.Operation = OpUpdate
		req.TransactionData.ID = &stored.ID

		result, err := f.d.DispatchTransaction(ctx, f.caller, req)
		require.NoError(t, err)
		assert.Equal(t, 2, result.LineCount)
	})

	t.Run("replacement lines are re-validated", func(t *testing.T) {
		f := newFixture(t)
		f.allow()
		stored := storedJournal(f.org)
		f.store.On("GetTransaction", ctx, f.org, stored.ID).Return(stored, nil)

		req := journalRequest(f.org, glLine("DR", "20", "AED"))
		req.Operation = OpUpdate
		req.TransactionData.ID = &stored.ID

		_, err := f.d.DispatchTransaction(ctx, f.caller, req)
		assert.Equal(t, "GL_NOT_BALANCED", codeOf(t, err))
		f.store.AssertNotCalled(t, "UpdateTransaction", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDispatchTransaction_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.allow()
	stored := storedJournal(f.org)
	stored.Status = universal.StatusDeleted
	f.store.On("SetTransactionStatus", ctx, f.org, stored.ID, universal.StatusDeleted, f.actor).Return(stored, nil)

	result, err := f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
		Operation:       OpDelete,
		TransactionData: TransactionData{ID: &stored.ID, OrganizationID: f.org.String()},
	})
	require.NoError(t, err)
	assert.Equal(t, universal.StatusDeleted, result.Transaction.Status)

	_, err = f.d.DispatchTransaction(ctx, f.caller, TransactionRequest{
		Operation:       OpArchive,
		TransactionData: TransactionData{OrganizationID: f.org.String()},
	})
	assert.Equal(t, "ID_REQUIRED", codeOf(t, err))
}
