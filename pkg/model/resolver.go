package model

import (
	"fmt"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/walker"
)

// resolver keeps a stack of heads: the model nodes new entries are
// added to.
type resolver struct {
	heads []*Node
}

var _ walker.Visitor[*scope.Context] = (*resolver)(nil)

func (r *resolver) head() *Node { return r.heads[len(r.heads)-1] }

func (r *resolver) VisitNode(n ast.Node, c *scope.Context) (walker.VisitResult, error) {
	switch x := n.(type) {
	case *ast.Block:
		return walker.Continue, nil
	case *ast.Template, *ast.Templates:
		// Local models are merged per template by the generator.
		return walker.SkipSubtree, nil
	case *ast.Transformation, *ast.File, *ast.Files:
		return walker.SkipSubtree, nil
	case *ast.ModelNode:
		return r.entry(x, c)
	}
	return walker.Continue, fmt.Errorf("unexpected %s in an output", n.Kind())
}

func (r *resolver) entry(m *ast.ModelNode, c *scope.Context) (walker.VisitResult, error) {
	var child *Node
	switch m.Kind() {
	case ast.KindModelValue:
		v, err := c.Interpolate(m.Value)
		if err != nil {
			return walker.Continue, fmt.Errorf("model %q: %w", m.Key, err)
		}
		child = NewValue(m.Key, m.Order, v)
	case ast.KindModelMap:
		child = NewMap(m.Key, m.Order)
	case ast.KindModelList:
		child = NewList(m.Key, m.Order)
	}
	head, err := r.head().Add(child)
	if err != nil {
		return walker.Continue, err
	}
	if m.Kind() == ast.KindModelValue {
		return walker.SkipSubtree, nil
	}
	r.heads = append(r.heads, head)
	return walker.Continue, nil
}

func (r *resolver) PostVisitNode(n ast.Node, _ *scope.Context) (walker.VisitResult, error) {
	m, ok := n.(*ast.ModelNode)
	if !ok || m.Kind() == ast.KindModelValue {
		return walker.Continue, nil
	}
	head := r.head()
	r.heads = r.heads[:len(r.heads)-1]
	if head.kind == KindList {
		head.SortChildren()
	}
	return walker.Continue, nil
}

// Resolve merges the model entries found under root into into. root is
// an output block or a template's model block; guards are evaluated and
// values interpolated against c.
func Resolve(root ast.Node, c *scope.Context, into *Node) error {
	r := &resolver{heads: []*Node{into}}
	return walker.Walk[*scope.Context](r, nil, c, root, c)
}

// ResolveResult merges the models of every output of a ready flow, each
// evaluated in the scope it was declared in.
func ResolveResult(res *flow.Result) (*Node, error) {
	root := NewMap("", 0)
	for _, o := range res.Outputs {
		if err := Resolve(o.Block, res.Scoped(o), root); err != nil {
			return nil, err
		}
	}
	return root, nil
}
