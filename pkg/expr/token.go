// Package expr implements the guard expression language used by archetype
// scripts: a tokenizer, an operator-precedence parser producing postfix
// tokens, and a stack evaluator with three-valued logic.
//
//	$flavor == 'se' && !$docker
//	($features contains 'metrics') || $db != null
package expr

import (
	"fmt"
	"strings"
)

// Code identifies a token.
type Code int

const (
	CodeTrue Code = iota
	CodeFalse
	CodeNull
	CodeUnknown
	CodeString
	CodeList
	CodeVariable
	CodeNot
	CodeEqual
	CodeNotEqual
	CodeAnd
	CodeOr
	CodeContains
	CodeParenOpen
	CodeParenClose

	// Reserved. The tokenizer never produces these.
	CodeIsNull
	CodeIsNotNull
)

var codeNames = map[Code]string{
	CodeTrue:       "TRUE",
	CodeFalse:      "FALSE",
	CodeNull:       "NULL",
	CodeUnknown:    "UNKNOWN",
	CodeString:     "STRING",
	CodeList:       "LIST",
	CodeVariable:   "VARIABLE",
	CodeNot:        "NOT",
	CodeEqual:      "EQUAL",
	CodeNotEqual:   "NOT_EQUAL",
	CodeAnd:        "AND",
	CodeOr:         "OR",
	CodeContains:   "CONTAINS",
	CodeParenOpen:  "PAREN_OPEN",
	CodeParenClose: "PAREN_CLOSE",
	CodeIsNull:     "IS_NULL",
	CodeIsNotNull:  "IS_NOT_NULL",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// IsOperator reports whether c is an operator (parentheses included).
func (c Code) IsOperator() bool {
	switch c {
	case CodeNot, CodeEqual, CodeNotEqual, CodeAnd, CodeOr, CodeContains,
		CodeParenOpen, CodeParenClose, CodeIsNull, CodeIsNotNull:
		return true
	}
	return false
}

// IsOperand reports whether c is a literal or variable reference.
func (c Code) IsOperand() bool { return !c.IsOperator() }

func (c Code) binary() bool {
	switch c {
	case CodeEqual, CodeNotEqual, CodeAnd, CodeOr, CodeContains:
		return true
	}
	return false
}

// precedence: lower binds tighter.
var precedence = map[Code]int{
	CodeNot:      0,
	CodeEqual:    10,
	CodeNotEqual: 10,
	CodeAnd:      20,
	CodeOr:       30,
	CodeContains: 40,
}

func rightAssoc(c Code) bool { return c == CodeNot }

// Token is one element of a compiled expression.
type Token struct {
	Code  Code
	Value string   // string literal text or variable name
	List  []string // CodeList only
	Index int      // position in the source (significant characters)
}

func (t Token) String() string {
	switch t.Code {
	case CodeString:
		return "'" + strings.ReplaceAll(t.Value, "'", "''") + "'"
	case CodeVariable:
		return "$" + t.Value
	case CodeList:
		return "[" + strings.Join(t.List, ",") + "]"
	default:
		return t.Code.String()
	}
}

// equal compares kind and content.
func (t Token) equal(o Token) bool {
	if t.Code != o.Code {
		return false
	}
	switch t.Code {
	case CodeString, CodeVariable:
		return t.Value == o.Value
	case CodeList:
		if len(t.List) != len(o.List) {
			return false
		}
		for i := range t.List {
			if t.List[i] != o.List[i] {
				return false
			}
		}
	}
	return true
}

func boolToken(b bool) Token {
	if b {
		return Token{Code: CodeTrue}
	}
	return Token{Code: CodeFalse}
}
