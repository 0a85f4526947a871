package expr

import (
	"slices"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// Lookup resolves a variable reference. found=false means the variable is
// not (yet) known; it evaluates as UNKNOWN rather than failing.
type Lookup func(name string) (v value.Value, found bool, err error)

// Eval compiles and evaluates text in one call.
func Eval(text string, lookup Lookup) (bool, error) {
	e, err := Compile(text)
	if err != nil {
		return false, err
	}
	return e.Eval(lookup)
}

// Eval runs the postfix program. TRUE yields true; FALSE and UNKNOWN
// yield false.
func (e *Expression) Eval(lookup Lookup) (bool, error) {
	t, err := e.evaluate(lookup)
	if err != nil {
		return false, withExpr(err, e.text)
	}
	switch t.Code {
	case CodeTrue:
		return true, nil
	case CodeFalse, CodeUnknown:
		return false, nil
	default:
		return false, withExpr(newError(NonBooleanExpression, -1, "result is "+t.Code.String()), e.text)
	}
}

// EvalToken is like Eval but returns the final token, exposing UNKNOWN.
func (e *Expression) EvalToken(lookup Lookup) (Token, error) {
	t, err := e.evaluate(lookup)
	if err != nil {
		return Token{}, withExpr(err, e.text)
	}
	return t, nil
}

func (e *Expression) evaluate(lookup Lookup) (Token, error) {
	stack := make([]Token, 0, len(e.postfix))
	pop := func(t Token) (Token, error) {
		if len(stack) == 0 {
			return Token{}, newError(MissingOperand, t.Index, "")
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	for _, t := range e.postfix {
		switch t.Code {
		case CodeVariable:
			resolved, err := resolve(t, lookup)
			if err != nil {
				return Token{}, err
			}
			stack = append(stack, resolved)

		case CodeTrue, CodeFalse, CodeNull, CodeString, CodeList, CodeUnknown:
			stack = append(stack, t)

		case CodeNot:
			operand, err := pop(t)
			if err != nil {
				return Token{}, err
			}
			switch operand.Code {
			case CodeTrue:
				stack = append(stack, Token{Code: CodeFalse})
			case CodeFalse:
				stack = append(stack, Token{Code: CodeTrue})
			case CodeUnknown:
				stack = append(stack, operand)
			default:
				return Token{}, newError(NonBooleanExpression, t.Index, "'!' operand is "+operand.Code.String())
			}

		case CodeEqual, CodeNotEqual, CodeAnd, CodeOr, CodeContains:
			right, err := pop(t)
			if err != nil {
				return Token{}, err
			}
			left, err := pop(t)
			if err != nil {
				return Token{}, err
			}
			result, err := binary(t, left, right)
			if err != nil {
				return Token{}, err
			}
			stack = append(stack, result)

		default:
			return Token{}, newError(UnknownOperator, t.Index, t.Code.String())
		}
	}

	switch len(stack) {
	case 0:
		return Token{}, newError(MissingOperand, -1, "")
	case 1:
		return stack[0], nil
	default:
		return Token{}, newError(MissingOperator, stack[1].Index, "")
	}
}

func resolve(t Token, lookup Lookup) (Token, error) {
	if lookup == nil {
		return Token{Code: CodeUnknown, Index: t.Index}, nil
	}
	v, found, err := lookup(t.Value)
	if err != nil {
		return Token{}, err
	}
	if !found {
		return Token{Code: CodeUnknown, Index: t.Index}, nil
	}
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return Token{Code: CodeString, Value: s, Index: t.Index}, nil
	case value.KindBool:
		b, _ := v.AsBool()
		tok := boolToken(b)
		tok.Index = t.Index
		return tok, nil
	case value.KindList:
		items, _ := v.AsList()
		return Token{Code: CodeList, List: items, Index: t.Index}, nil
	default:
		return Token{Code: CodeNull, Index: t.Index}, nil
	}
}

func binary(op, left, right Token) (Token, error) {
	switch op.Code {
	case CodeEqual:
		return boolToken(left.equal(right)), nil
	case CodeNotEqual:
		return boolToken(!left.equal(right)), nil
	case CodeAnd, CodeOr:
		if !logical(left) || !logical(right) {
			return Token{}, newError(NonBooleanExpression, op.Index,
				"'"+op.Code.String()+"' operands are "+left.Code.String()+" and "+right.Code.String())
		}
		if op.Code == CodeAnd {
			switch {
			case left.Code == CodeFalse || right.Code == CodeFalse:
				return Token{Code: CodeFalse}, nil
			case left.Code == CodeUnknown || right.Code == CodeUnknown:
				return Token{Code: CodeUnknown}, nil
			}
			return Token{Code: CodeTrue}, nil
		}
		switch {
		case left.Code == CodeTrue || right.Code == CodeTrue:
			return Token{Code: CodeTrue}, nil
		case left.Code == CodeUnknown || right.Code == CodeUnknown:
			return Token{Code: CodeUnknown}, nil
		}
		return Token{Code: CodeFalse}, nil
	case CodeContains:
		return contains(left, right), nil
	}
	return Token{}, newError(UnknownOperator, op.Index, op.Code.String())
}

func logical(t Token) bool {
	return t.Code == CodeTrue || t.Code == CodeFalse || t.Code == CodeUnknown
}

// contains tests list membership (every item for a list right operand) or
// substring inclusion for two strings.
func contains(left, right Token) Token {
	if left.Code == CodeUnknown || right.Code == CodeUnknown {
		return Token{Code: CodeUnknown}
	}
	switch left.Code {
	case CodeList:
		switch right.Code {
		case CodeString:
			return boolToken(slices.Contains(left.List, right.Value))
		case CodeList:
			for _, item := range right.List {
				if !slices.Contains(left.List, item) {
					return Token{Code: CodeFalse}
				}
			}
			return Token{Code: CodeTrue}
		}
	case CodeString:
		if right.Code == CodeString {
			return boolToken(strings.Contains(left.Value, right.Value))
		}
	}
	return Token{Code: CodeFalse}
}
