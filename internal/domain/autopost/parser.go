package autopost

import "github.com/shopspring/decimal"

type parser struct {
	tokens []token
	pos    int
	depth  int
}

const maxNesting = 32

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// or := and ('OR' and)*
func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left, right}
	}
	return left, nil
}

// and := unary ('AND' unary)*
func (p *parser) parseAnd() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = andNode{left, right}
	}
	return left, nil
}

// unary := 'NOT' unary | '(' or ')' | cmp
func (p *parser) parseUnary() (node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxNesting {
		return nil, syntaxError(p.peek().pos, "condition nested too deeply")
	}

	switch tok := p.peek(); tok.kind {
	case tokNot:
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner}, nil
	case tokLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, syntaxError(closing.pos, "expected ) but found %s", closing)
		}
		return inner, nil
	default:
		return p.parseCompare()
	}
}

// cmp := ident op literal
func (p *parser) parseCompare() (node, error) {
	ident := p.next()
	if ident.kind != tokIdent {
		return nil, syntaxError(ident.pos, "expected variable but found %s", ident)
	}
	kind, ok := variables[ident.text]
	if !ok {
		return nil, syntaxError(ident.pos, "unknown variable %q", ident.text)
	}

	op := p.next()
	if op.kind != tokOp {
		return nil, syntaxError(op.pos, "expected comparison operator but found %s", op)
	}

	lit := p.next()
	n := compareNode{ident: ident.text, op: op.text, kind: kind}
	switch lit.kind {
	case tokNumber:
		if kind != kindNumber {
			return nil, syntaxError(lit.pos, "%s is a %s, not a number", ident.text, kind)
		}
		d, err := decimal.NewFromString(lit.text)
		if err != nil {
			return nil, syntaxError(lit.pos, "invalid number %q", lit.text)
		}
		n.num = d
	case tokString:
		if kind != kindString {
			return nil, syntaxError(lit.pos, "%s is a %s, not a string", ident.text, kind)
		}
		if op.text != "==" && op.text != "!=" {
			return nil, syntaxError(op.pos, "strings only support == and !=")
		}
		n.str = lit.text
	case tokTrue, tokFalse:
		if kind != kindBool {
			return nil, syntaxError(lit.pos, "%s is a %s, not a boolean", ident.text, kind)
		}
		if op.text != "==" && op.text != "!=" {
			return nil, syntaxError(op.pos, "booleans only support == and !=")
		}
		n.flag = lit.kind == tokTrue
	default:
		return nil, syntaxError(lit.pos, "expected literal but found %s", lit)
	}
	return n, nil
}
