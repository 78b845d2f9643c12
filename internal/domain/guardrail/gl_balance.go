package guardrail

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/hera/backend/internal/domain/universal"
)

// CurrencyTotals holds the DR and CR sums of one currency group
type CurrencyTotals struct {
	Currency   string          `json:"currency"`
	Debit      decimal.Decimal `json:"debit"`
	Credit     decimal.Decimal `json:"credit"`
	Difference decimal.Decimal `json:"difference"`
	LineCount  int             `json:"line_count"`
}

// Balanced reports whether the group is balanced within tolerance
func (c CurrencyTotals) Balanced(tolerance decimal.Decimal) bool {
	return c.Difference.Abs().LessThanOrEqual(tolerance)
}

// GLSummary is the per-currency result of a GL balance check, ordered by currency
type GLSummary struct {
	Currencies []CurrencyTotals `json:"currencies"`
	GLLines    int              `json:"gl_lines"`
}

// Totals returns the group for currency, if present
func (s GLSummary) Totals(cur string) (CurrencyTotals, bool) {
	for _, c := range s.Currencies {
		if c.Currency == cur {
			return c, true
		}
	}
	return CurrencyTotals{}, false
}

// GLBalanceValidator enforces double-entry balance on GL lines. Lines whose
// smart code lacks a GL segment are ignored.
type GLBalanceValidator struct {
	policy *Policy
}

// NewGLBalanceValidator creates a validator bound to policy
func NewGLBalanceValidator(policy *Policy) *GLBalanceValidator {
	return &GLBalanceValidator{policy: policy}
}

// Validate checks every GL line and the per-currency balance. Line-level
// violations are reported for the first offending line in order.
func (v *GLBalanceValidator) Validate(lines []universal.TransactionLine) (GLSummary, error) {
	for i := range lines {
		line := &lines[i]
		if !line.IsGL() {
			continue
		}
		if !line.Side.IsValid() {
			return GLSummary{}, ErrGLSideRequired.
				WithDetail("line_index", i).
				WithDetail("side", string(line.Side))
		}
		if line.LineAmount.IsNegative() {
			return GLSummary{}, ErrNegativeGLAmount.
				WithDetail("line_index", i).
				WithDetail("amount", line.LineAmount.String())
		}
		if cur := v.currencyOf(line); cur != v.policy.documentCurrency {
			if _, err := currency.ParseISO(cur); err != nil {
				return GLSummary{}, ErrGLCurrencyInvalid.
					WithDetail("line_index", i).
					WithDetail("currency", cur)
			}
		}
	}

	summary := v.Summarize(lines)
	for _, group := range summary.Currencies {
		if !group.Balanced(v.policy.tolerance) {
			return summary, ErrGLNotBalanced.
				WithDetail("currency", group.Currency).
				WithDetail("debit", group.Debit.String()).
				WithDetail("credit", group.Credit.String()).
				WithDetail("difference", group.Difference.String())
		}
	}
	return summary, nil
}

// Summarize computes per-currency totals without validating. Used to report
// totals for stored transactions.
func (v *GLBalanceValidator) Summarize(lines []universal.TransactionLine) GLSummary {
	groups := make(map[string]*CurrencyTotals)
	summary := GLSummary{}
	for i := range lines {
		line := &lines[i]
		if !line.IsGL() {
			continue
		}
		summary.GLLines++
		cur := v.currencyOf(line)
		g, ok := groups[cur]
		if !ok {
			g = &CurrencyTotals{Currency: cur, Debit: decimal.Zero, Credit: decimal.Zero}
			groups[cur] = g
		}
		switch line.Side {
		case universal.SideDebit:
			g.Debit = g.Debit.Add(line.LineAmount)
		case universal.SideCredit:
			g.Credit = g.Credit.Add(line.LineAmount)
		}
		g.LineCount++
	}

	summary.Currencies = make([]CurrencyTotals, 0, len(groups))
	for _, g := range groups {
		g.Difference = g.Debit.Sub(g.Credit)
		summary.Currencies = append(summary.Currencies, *g)
	}
	sort.Slice(summary.Currencies, func(i, j int) bool {
		return summary.Currencies[i].Currency < summary.Currencies[j].Currency
	})
	return summary
}

func (v *GLBalanceValidator) currencyOf(line *universal.TransactionLine) string {
	cur := strings.ToUpper(strings.TrimSpace(line.Currency))
	if cur == "" {
		return v.policy.documentCurrency
	}
	return cur
}
