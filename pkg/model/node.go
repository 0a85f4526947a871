// Package model builds the merged model that templates are rendered
// with. Model entries contributed by independent output blocks are merged
// into one tree of maps, lists and values.
package model

import (
	"cmp"
	"fmt"
	"slices"
)

// Kind is the type of a model node.
type Kind int

const (
	KindMap Kind = iota
	KindList
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindList:
		return "list"
	case KindValue:
		return "value"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Node is a node of the merged model.
type Node struct {
	kind     Kind
	key      string
	order    int
	value    string
	children []*Node
	index    map[string]int
}

// NewMap returns an empty map node. The root of a model is a keyless map.
func NewMap(key string, order int) *Node {
	return &Node{kind: KindMap, key: key, order: order, index: make(map[string]int)}
}

// NewList returns an empty list node.
func NewList(key string, order int) *Node {
	return &Node{kind: KindList, key: key, order: order}
}

// NewValue returns a leaf.
func NewValue(key string, order int, v string) *Node {
	return &Node{kind: KindValue, key: key, order: order, value: v}
}

func (n *Node) Kind() Kind        { return n.kind }
func (n *Node) Key() string       { return n.key }
func (n *Node) Order() int        { return n.order }
func (n *Node) Value() string     { return n.value }
func (n *Node) Len() int          { return len(n.children) }
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Get returns the child of a map stored under key.
func (n *Node) Get(key string) (*Node, bool) {
	i, ok := n.index[key]
	if !ok {
		return nil, false
	}
	return n.children[i], true
}

// Add merges child into n and returns the node that holds child's
// content afterwards, which is where child's own children belong.
//
// Lists append. In a map a new key is inserted; on a colliding key two
// lists concatenate, otherwise the strictly higher order replaces the
// existing node and a tie keeps the existing one. A losing map or list
// merges into the kept node when both are of the same kind; any other
// loser is returned detached so its content is dropped.
func (n *Node) Add(child *Node) (*Node, error) {
	switch n.kind {
	case KindList:
		n.children = append(n.children, child)
		return child, nil
	case KindValue:
		return nil, fmt.Errorf("model value %q cannot have children", n.key)
	}

	i, ok := n.index[child.key]
	if !ok {
		n.index[child.key] = len(n.children)
		n.children = append(n.children, child)
		return child, nil
	}
	cur := n.children[i]
	switch {
	case cur.kind == KindList && child.kind == KindList:
		return cur, nil
	case child.order > cur.order:
		n.children[i] = child
		return child, nil
	case cur.kind == child.kind && cur.kind != KindValue:
		return cur, nil
	}
	return child, nil
}

// SortChildren orders the items of a list by descending order. Equal
// orders keep their insertion order.
func (n *Node) SortChildren() {
	slices.SortStableFunc(n.children, func(a, b *Node) int {
		return cmp.Compare(b.order, a.order)
	})
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	out := &Node{kind: n.kind, key: n.key, order: n.order, value: n.value}
	if n.index != nil {
		out.index = make(map[string]int, len(n.index))
		for k, v := range n.index {
			out.index[k] = v
		}
	}
	for _, c := range n.children {
		out.children = append(out.children, c.Clone())
	}
	return out
}

// Data converts the tree to plain Go values: map[string]any for maps,
// []any for lists and string for values.
func (n *Node) Data() any {
	switch n.kind {
	case KindValue:
		return n.value
	case KindList:
		out := make([]any, len(n.children))
		for i, c := range n.children {
			out[i] = c.Data()
		}
		return out
	default:
		out := make(map[string]any, len(n.children))
		for _, c := range n.children {
			out[c.key] = c.Data()
		}
		return out
	}
}
