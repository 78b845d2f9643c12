// Package autopost parses and evaluates auto-post conditions. The grammar is
// fixed and identifiers resolve only against a closed variable set; nothing
// in a condition is ever executed.
package autopost

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

func lex(src string) ([]token, error) {
	var tokens []token
	rs := []rune(src)
	i := 0
	for i < len(rs) {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case r == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(rs) || rs[i+1] != r {
				return nil, syntaxError(i, "unexpected %q", string(r))
			}
			kind := tokAnd
			if r == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind, string([]rune{r, r}), i})
			i += 2
		case strings.ContainsRune("=!<>", r):
			start := i
			if i+1 < len(rs) && rs[i+1] == '=' {
				i += 2
			} else {
				i++
			}
			text := string(rs[start:i])
			switch text {
			case "==", "!=", ">=", "<=", ">", "<":
				tokens = append(tokens, token{tokOp, text, start})
			case "!":
				tokens = append(tokens, token{tokNot, text, start})
			default:
				return nil, syntaxError(start, "unknown operator %q", text)
			}
		case r == '\'' || r == '"':
			start := i
			i++
			var sb strings.Builder
			for i < len(rs) && rs[i] != r {
				if rs[i] == '\\' && i+1 < len(rs) {
					i++
				}
				sb.WriteRune(rs[i])
				i++
			}
			if i >= len(rs) {
				return nil, syntaxError(start, "unterminated string")
			}
			i++
			tokens = append(tokens, token{tokString, sb.String(), start})
		case unicode.IsDigit(r) || r == '-' || r == '.':
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			tokens = append(tokens, token{tokNumber, string(rs[start:i]), start})
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i]) || rs[i] == '_') {
				i++
			}
			word := string(rs[start:i])
			switch strings.ToUpper(word) {
			case "AND":
				tokens = append(tokens, token{tokAnd, word, start})
			case "OR":
				tokens = append(tokens, token{tokOr, word, start})
			case "NOT":
				tokens = append(tokens, token{tokNot, word, start})
			case "TRUE":
				tokens = append(tokens, token{tokTrue, word, start})
			case "FALSE":
				tokens = append(tokens, token{tokFalse, word, start})
			default:
				tokens = append(tokens, token{tokIdent, word, start})
			}
		default:
			return nil, syntaxError(i, "unexpected character %q", string(r))
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(rs)})
	return tokens, nil
}
