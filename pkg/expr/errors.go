package expr

import "fmt"

// ErrorKind classifies expression failures.
type ErrorKind int

const (
	InvalidCharacter ErrorKind = iota + 1
	MissingClosingQuote
	MissingOperand
	MissingOperator
	UnknownOperator
	NonBooleanExpression
	InvalidExpression
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidCharacter:
		return "invalid character"
	case MissingClosingQuote:
		return "missing closing quote"
	case MissingOperand:
		return "missing operand"
	case MissingOperator:
		return "missing operator"
	case UnknownOperator:
		return "unknown operator"
	case NonBooleanExpression:
		return "non boolean expression"
	case InvalidExpression:
		return "invalid expression"
	default:
		return fmt.Sprintf("error(%d)", int(k))
	}
}

// Error is raised when compiling or evaluating a malformed expression.
type Error struct {
	Kind  ErrorKind
	Char  rune // InvalidCharacter only
	Index int  // -1 when not tied to a position
	Expr  string
	Msg   string
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Kind == InvalidCharacter:
		s = fmt.Sprintf("invalid character %q at index %d", e.Char, e.Index)
	case e.Index >= 0:
		s = fmt.Sprintf("%s at index %d", e.Kind, e.Index)
	default:
		s = e.Kind.String()
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Expr != "" {
		s += fmt.Sprintf(" (expression: %q)", e.Expr)
	}
	return s
}

// Is matches errors of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidCharacter     = &Error{Kind: InvalidCharacter, Index: -1}
	ErrMissingClosingQuote  = &Error{Kind: MissingClosingQuote, Index: -1}
	ErrMissingOperand       = &Error{Kind: MissingOperand, Index: -1}
	ErrMissingOperator      = &Error{Kind: MissingOperator, Index: -1}
	ErrUnknownOperator      = &Error{Kind: UnknownOperator, Index: -1}
	ErrNonBooleanExpression = &Error{Kind: NonBooleanExpression, Index: -1}
	ErrInvalidExpression    = &Error{Kind: InvalidExpression, Index: -1}
)

func newError(kind ErrorKind, index int, msg string) *Error {
	return &Error{Kind: kind, Index: index, Msg: msg}
}
