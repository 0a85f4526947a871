package ast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/expr"
	"github.com/ormasoftchile/archetype/pkg/value"
)

// ErrInvalidNode is returned by arena constructors for nodes that cannot
// be built as requested.
var ErrInvalidNode = errors.New("invalid node")

// Block is an ordered sequence of statements tagged with a block kind.
type Block struct {
	base
	Children []Node

	// Label and Help are set on KindStep blocks.
	Label string
	Help  string
}

// Wrap returns a block of a different kind that shares b's identity and
// statements. Used to mark inclusion boundaries.
func (b *Block) Wrap(kind Kind) *Block {
	w := *b
	w.kind = kind
	return &w
}

// NewBlock builds a block of one of the block kinds.
func (a *Arena) NewBlock(loc Location, kind Kind, children ...Node) (*Block, error) {
	if !kind.IsBlock() {
		return nil, fmt.Errorf("%w: %s is not a block kind", ErrInvalidNode, kind)
	}
	b := &Block{base: a.alloc(loc, kind), Children: children}
	a.own(b)
	return b, nil
}

// NewStep builds a KindStep block.
func (a *Arena) NewStep(loc Location, label, help string, children ...Node) *Block {
	b := &Block{base: a.alloc(loc, KindStep), Children: children, Label: label, Help: help}
	a.own(b)
	return b
}

// Condition guards a single statement.
type Condition struct {
	base
	Expr *expr.Expression
	Then Node
}

// NewCondition builds a guard around then.
func (a *Arena) NewCondition(loc Location, e *expr.Expression, then Node) (*Condition, error) {
	if e == nil || then == nil {
		return nil, fmt.Errorf("%w: condition needs an expression and a statement", ErrInvalidNode)
	}
	c := &Condition{base: a.alloc(loc, KindCondition), Expr: e, Then: then}
	a.own(c)
	return c, nil
}

// InvocationMode selects how an included script is spliced in.
type InvocationMode int

const (
	// Source includes the script in the current directory.
	Source InvocationMode = iota
	// Exec includes the script and makes its directory current.
	Exec
)

func (m InvocationMode) String() string {
	if m == Exec {
		return "exec"
	}
	return "source"
}

// Invocation includes another script.
type Invocation struct {
	base
	Mode InvocationMode
	Src  string
}

// NewInvocation builds a source/exec directive.
func (a *Arena) NewInvocation(loc Location, mode InvocationMode, src string) (*Invocation, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: %s without src", ErrInvalidNode, mode)
	}
	n := &Invocation{base: a.alloc(loc, KindInvocation), Mode: mode, Src: src}
	a.own(n)
	return n, nil
}

// Preset injects a value into the context before it is asked for.
type Preset struct {
	base
	Path  string
	Value value.Value
}

// NewPreset builds a preset for path.
func (a *Arena) NewPreset(loc Location, path string, v value.Value) (*Preset, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: preset without path", ErrInvalidNode)
	}
	n := &Preset{base: a.alloc(loc, KindPreset), Path: path, Value: v}
	a.own(n)
	return n, nil
}

// Script is one loaded script file.
type Script struct {
	Path  string
	Name  string
	Body  *Block
	Arena *Arena
}
