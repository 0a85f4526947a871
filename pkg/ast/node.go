// Package ast defines the archetype script syntax tree: a closed set of
// node types behind the sealed Node interface. Nodes are built once by
// an Arena and never mutated afterwards.
package ast

import (
	"fmt"
	"math"
)

// NodeID identifies a node within its arena.
type NodeID int32

// Location is the source position of a node.
type Location struct {
	Script string `json:"script"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.Script, l.Line, l.Column)
}

// Kind tags every node.
type Kind int

const (
	KindScript Kind = iota
	KindStep
	KindInputs
	KindOutput
	KindModel
	KindPresets
	KindInvoke
	KindInvokeDir

	KindCondition
	KindInvocation
	KindPreset

	KindInputText
	KindInputBoolean
	KindInputEnum
	KindInputList
	KindOption

	KindTransformation
	KindFile
	KindFiles
	KindTemplate
	KindTemplates

	KindModelMap
	KindModelList
	KindModelValue
)

var kindNames = [...]string{
	KindScript:         "script",
	KindStep:           "step",
	KindInputs:         "inputs",
	KindOutput:         "output",
	KindModel:          "model",
	KindPresets:        "presets",
	KindInvoke:         "invoke",
	KindInvokeDir:      "invoke-dir",
	KindCondition:      "condition",
	KindInvocation:     "invocation",
	KindPreset:         "preset",
	KindInputText:      "text",
	KindInputBoolean:   "boolean",
	KindInputEnum:      "enum",
	KindInputList:      "list",
	KindOption:         "option",
	KindTransformation: "transformation",
	KindFile:           "file",
	KindFiles:          "files",
	KindTemplate:       "template",
	KindTemplates:      "templates",
	KindModelMap:       "map",
	KindModelList:      "list",
	KindModelValue:     "value",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsBlock reports whether k is one of the Block kinds.
func (k Kind) IsBlock() bool { return k <= KindInvokeDir }

// IsInput reports whether k is a named input kind.
func (k Kind) IsInput() bool { return k >= KindInputText && k <= KindInputList }

// IsOutput reports whether k is a file-producing output or transformation.
func (k Kind) IsOutput() bool { return k >= KindTransformation && k <= KindTemplates }

// IsModel reports whether k is a model map, list or value.
func (k Kind) IsModel() bool { return k >= KindModelMap && k <= KindModelValue }

// Node is implemented by every syntax tree node. The set is closed.
type Node interface {
	ID() NodeID
	Location() Location
	Kind() Kind
	node()
}

type base struct {
	id   NodeID
	loc  Location
	kind Kind
}

func (b *base) ID() NodeID         { return b.id }
func (b *base) Location() Location { return b.loc }
func (b *base) Kind() Kind         { return b.kind }
func (b *base) node()              {}

// Children returns the statements nested directly under n, in declaration
// order. Leaves return nil.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Block:
		return x.Children
	case *Condition:
		return []Node{x.Then}
	case *Input:
		if len(x.Body) == 0 {
			return x.Options
		}
		out := make([]Node, 0, len(x.Options)+len(x.Body))
		out = append(out, x.Options...)
		return append(out, x.Body...)
	case *Option:
		return x.Body
	case *Template:
		if x.Model != nil {
			return []Node{x.Model}
		}
	case *Templates:
		if x.Model != nil {
			return []Node{x.Model}
		}
	case *ModelNode:
		return x.Children
	}
	return nil
}

// Arena owns the nodes of one loaded script and hands out dense ids.
// IDs wrap to zero after math.MaxInt32.
type Arena struct {
	next  NodeID
	nodes []Node
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Len returns the number of nodes allocated.
func (a *Arena) Len() int { return len(a.nodes) }

// Node returns the node allocated with id, or nil.
func (a *Arena) Node(id NodeID) Node {
	if id < 0 || int(id) >= len(a.nodes) {
		return nil
	}
	return a.nodes[id]
}

func (a *Arena) alloc(loc Location, kind Kind) base {
	id := a.next
	if a.next == math.MaxInt32 {
		a.next = 0
	} else {
		a.next++
	}
	return base{id: id, loc: loc, kind: kind}
}

func (a *Arena) own(n Node) {
	if int(n.ID()) < len(a.nodes) {
		a.nodes[n.ID()] = n
		return
	}
	a.nodes = append(a.nodes, n)
}
