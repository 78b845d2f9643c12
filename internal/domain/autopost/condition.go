package autopost

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hera/backend/internal/domain/shared"
)

// ErrInvalidCondition is returned for conditions that do not parse or type-check
var ErrInvalidCondition = shared.NewDomainError(shared.CategoryInput, "INVALID_AUTO_POST_CONDITION",
	"Auto-post condition is invalid").
	WithHint("Use comparisons like total_amount >= 1000 AND currency == 'AED'")

// MaxConditionLength caps the source length accepted by Parse
const MaxConditionLength = 512

func syntaxError(pos int, format string, args ...any) error {
	return ErrInvalidCondition.
		WithDetail("position", pos).
		WithDetail("reason", fmt.Sprintf(format, args...))
}

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
)

func (k valueKind) String() string {
	switch k {
	case kindNumber:
		return "number"
	case kindString:
		return "string"
	default:
		return "boolean"
	}
}

// variables is the closed set of identifiers a condition may reference
var variables = map[string]valueKind{
	"total_amount":     kindNumber,
	"line_count":       kindNumber,
	"currency":         kindString,
	"transaction_type": kindString,
	"smart_code":       kindString,
	"has_gl_lines":     kindBool,
}

// Variables are the values a condition is evaluated against
type Variables struct {
	TotalAmount     decimal.Decimal
	LineCount       int
	Currency        string
	TransactionType string
	SmartCode       string
	HasGLLines      bool
}

func (v Variables) number(name string) decimal.Decimal {
	if name == "line_count" {
		return decimal.NewFromInt(int64(v.LineCount))
	}
	return v.TotalAmount
}

func (v Variables) text(name string) string {
	switch name {
	case "currency":
		return v.Currency
	case "transaction_type":
		return v.TransactionType
	default:
		return v.SmartCode
	}
}

type node interface {
	eval(v Variables) bool
}

type andNode struct{ left, right node }
type orNode struct{ left, right node }
type notNode struct{ inner node }

type compareNode struct {
	ident string
	op    string
	num   decimal.Decimal
	str   string
	flag  bool
	kind  valueKind
}

func (n andNode) eval(v Variables) bool { return n.left.eval(v) && n.right.eval(v) }
func (n orNode) eval(v Variables) bool  { return n.left.eval(v) || n.right.eval(v) }
func (n notNode) eval(v Variables) bool { return !n.inner.eval(v) }

func (n compareNode) eval(v Variables) bool {
	switch n.kind {
	case kindString:
		return (v.text(n.ident) == n.str) == (n.op == "==")
	case kindBool:
		return (v.HasGLLines == n.flag) == (n.op == "==")
	}
	c := v.number(n.ident).Cmp(n.num)
	switch n.op {
	case "==":
		return c == 0
	case "!=":
		return c != 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	default:
		return c < 0
	}
}

// Condition is a parsed, type-checked auto-post condition. It is immutable
// and safe for concurrent use.
type Condition struct {
	source string
	root   node
}

// String returns the source text
func (c *Condition) String() string { return c.source }

// Eval evaluates the condition against vars
func (c *Condition) Eval(vars Variables) bool {
	return c.root.eval(vars)
}

// Parse parses src into a Condition
func Parse(src string) (*Condition, error) {
	if strings.TrimSpace(src) == "" {
		return nil, syntaxError(0, "empty condition")
	}
	if len(src) > MaxConditionLength {
		return nil, syntaxError(MaxConditionLength, "condition longer than %d bytes", MaxConditionLength)
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, syntaxError(tok.pos, "unexpected %s", tok)
	}
	return &Condition{source: src, root: root}, nil
}

// Evaluate parses and evaluates src in one step
func Evaluate(src string, vars Variables) (bool, error) {
	c, err := Parse(src)
	if err != nil {
		return false, err
	}
	return c.Eval(vars), nil
}
