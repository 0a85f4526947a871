package ast

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// Input is a named question: text, boolean, enum or list.
type Input struct {
	base
	Name        string
	Label       string
	Help        string
	Prompt      string
	Placeholder string
	Default     value.Value
	Optional    bool
	Global      bool

	// Options holds *Option nodes, each possibly guarded by a *Condition.
	Options []Node
	// Body is traversed beneath the input's scope.
	Body []Node
}

// ValueKind returns the value type answers to this input are coerced to.
func (in *Input) ValueKind() value.Kind {
	switch in.kind {
	case KindInputBoolean:
		return value.KindBool
	case KindInputList:
		return value.KindList
	default:
		return value.KindString
	}
}

// NewInput builds a named input of kind from the exported fields of spec.
func (a *Arena) NewInput(loc Location, kind Kind, spec Input) (*Input, error) {
	if !kind.IsInput() {
		return nil, fmt.Errorf("%w: %s is not an input kind", ErrInvalidNode, kind)
	}
	if err := CheckName(spec.Name); err != nil {
		return nil, err
	}
	if (kind == KindInputEnum || kind == KindInputList) && len(spec.Options) == 0 {
		return nil, fmt.Errorf("%w: %s input %q has no options", ErrInvalidNode, kind, spec.Name)
	}
	if (kind == KindInputText || kind == KindInputBoolean) && len(spec.Options) > 0 {
		return nil, fmt.Errorf("%w: %s input %q cannot have options", ErrInvalidNode, kind, spec.Name)
	}
	for _, o := range spec.Options {
		if _, ok := UnwrapOption(o); !ok {
			return nil, fmt.Errorf("%w: input %q: %s is not an option", ErrInvalidNode, spec.Name, o.Kind())
		}
	}
	in := spec
	in.base = a.alloc(loc, kind)
	a.own(&in)
	return &in, nil
}

// CheckName rejects names that cannot be a single context path segment.
func CheckName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidNode)
	case strings.Contains(name, "."):
		return fmt.Errorf("%w: name %q contains '.'", ErrInvalidNode, name)
	case name == "ROOT" || name == "PARENT":
		return fmt.Errorf("%w: name %q is reserved", ErrInvalidNode, name)
	}
	return nil
}

// Option is one choice of an enum or list input.
type Option struct {
	base
	Value string
	Label string
	Help  string
	Body  []Node
}

// NewOption builds an option.
func (a *Arena) NewOption(loc Location, val, label, help string, body ...Node) (*Option, error) {
	if val == "" {
		return nil, fmt.Errorf("%w: option without value", ErrInvalidNode)
	}
	o := &Option{base: a.alloc(loc, KindOption), Value: val, Label: label, Help: help, Body: body}
	a.own(o)
	return o, nil
}

// UnwrapOption returns the option behind n and the guard protecting it,
// if any.
func UnwrapOption(n Node) (*Option, bool) {
	switch x := n.(type) {
	case *Option:
		return x, true
	case *Condition:
		return UnwrapOption(x.Then)
	}
	return nil, false
}

// Guards returns the guard conditions wrapping n, outermost first.
func Guards(n Node) []*Condition {
	var out []*Condition
	for {
		c, ok := n.(*Condition)
		if !ok {
			return out
		}
		out = append(out, c)
		n = c.Then
	}
}
