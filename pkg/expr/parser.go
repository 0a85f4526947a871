package expr

import (
	"slices"
	"strings"
)

// Expression is a compiled guard. It is immutable and safe to share.
type Expression struct {
	text    string
	postfix []Token
}

// Compile parses text into postfix form.
func Compile(text string) (*Expression, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, withExpr(err, text)
	}
	if err := validate(toks); err != nil {
		return nil, withExpr(err, text)
	}
	return &Expression{text: text, postfix: toPostfix(toks)}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level constants.
func MustCompile(text string) *Expression {
	e, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return e
}

// String returns the source text.
func (e *Expression) String() string { return e.text }

// Tokens returns a copy of the postfix token sequence.
func (e *Expression) Tokens() []Token { return slices.Clone(e.postfix) }

// Postfix renders the token sequence, e.g. "TRUE FALSE AND".
func (e *Expression) Postfix() string {
	parts := make([]string, len(e.postfix))
	for i, t := range e.postfix {
		parts[i] = t.String()
	}
	return strings.Join(parts, " ")
}

// Variables returns the distinct variable names referenced, in order of
// first appearance in the source.
func (e *Expression) Variables() []string {
	toks, _ := tokenize(e.text)
	var names []string
	for _, t := range toks {
		if t.Code == CodeVariable && !slices.Contains(names, t.Value) {
			names = append(names, t.Value)
		}
	}
	return names
}

func withExpr(err error, text string) error {
	if e, ok := err.(*Error); ok {
		e.Expr = text
	}
	return err
}

// validate rejects adjacent operands and dangling operators before parsing.
func validate(toks []Token) error {
	if len(toks) == 0 {
		return newError(InvalidExpression, 0, "empty expression")
	}
	depth := 0
	var prev *Token
	for i := range toks {
		t := &toks[i]
		afterOperand := prev != nil && (prev.Code.IsOperand() || prev.Code == CodeParenClose)
		afterOperator := prev == nil || prev.Code.binary() || prev.Code == CodeNot || prev.Code == CodeParenOpen

		switch {
		case t.Code.IsOperand(), t.Code == CodeParenOpen, t.Code == CodeNot:
			if afterOperand {
				return newError(MissingOperator, t.Index, "")
			}
			if t.Code == CodeParenOpen {
				depth++
			}
		case t.Code == CodeParenClose:
			if afterOperator {
				return newError(MissingOperand, t.Index, "")
			}
			depth--
			if depth < 0 {
				return newError(InvalidExpression, t.Index, "unbalanced parenthesis")
			}
		case t.Code.binary():
			if afterOperator {
				return newError(MissingOperand, t.Index, "")
			}
		default:
			return newError(UnknownOperator, t.Index, t.Code.String())
		}
		prev = t
	}
	if prev.Code.binary() || prev.Code == CodeNot || prev.Code == CodeParenOpen {
		return newError(MissingOperand, prev.Index, "")
	}
	if depth != 0 {
		return newError(InvalidExpression, -1, "unbalanced parenthesis")
	}
	return nil
}

// toPostfix is the shunting-yard conversion. Input is already validated.
func toPostfix(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	var ops []Token
	for _, t := range toks {
		switch {
		case t.Code.IsOperand():
			out = append(out, t)
		case t.Code == CodeParenOpen:
			ops = append(ops, t)
		case t.Code == CodeParenClose:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.Code == CodeParenOpen {
					break
				}
				out = append(out, top)
			}
		default:
			p := precedence[t.Code]
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Code == CodeParenOpen {
					break
				}
				tp := precedence[top.Code]
				if tp < p || (tp == p && !rightAssoc(t.Code)) {
					out = append(out, top)
					ops = ops[:len(ops)-1]
					continue
				}
				break
			}
			ops = append(ops, t)
		}
	}
	for i := len(ops) - 1; i >= 0; i-- {
		out = append(out, ops[i])
	}
	return out
}
