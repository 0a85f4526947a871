// Package value defines the typed values held by the archetype context:
// text, booleans and lists of text, plus the empty value used for
// inputs that have no default.
package value

import (
	"fmt"
	"slices"
	"strings"
)

// Kind enumerates value types.
type Kind int

const (
	KindEmpty Kind = iota
	KindString
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable typed value.
type Value struct {
	kind Kind
	str  string
	b    bool
	list []string
}

// Empty is the zero value.
var Empty = Value{}

// String returns a text value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List returns a list value. The items are copied.
func List(items ...string) Value {
	return Value{kind: KindList, list: slices.Clone(items)}
}

// Kind returns the type of v.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// AsString returns the text of a string value.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("value is %s, not string", v.kind)
	}
	return v.str, nil
}

// AsBool returns the boolean of a boolean value.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("value is %s, not boolean", v.kind)
	}
	return v.b, nil
}

// AsList returns a copy of the items of a list value.
func (v Value) AsList() ([]string, error) {
	if v.kind != KindList {
		return nil, fmt.Errorf("value is %s, not list", v.kind)
	}
	return slices.Clone(v.list), nil
}

// Values returns the value as a list of strings: the items of a list,
// a one-element list for strings and booleans, nil for empty.
func (v Value) Values() []string {
	switch v.kind {
	case KindList:
		return slices.Clone(v.list)
	case KindString:
		return []string{v.str}
	case KindBool:
		return []string{v.String()}
	default:
		return nil
	}
}

// Equal reports whether v and o have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindList:
		return slices.Equal(v.list, o.list)
	default:
		return true
	}
}

// String formats v the way it is written in answers files and on the
// command line.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindList:
		return strings.Join(v.list, ",")
	default:
		return ""
	}
}

// Any converts v to a plain Go value (string, bool, []any or nil) for
// templates and JSON.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, s := range v.list {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}
