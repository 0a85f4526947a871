// Package walker drives a visitor over an archetype syntax tree.
//
// The traversal is iterative: pending nodes, open parents and open
// inclusions live on explicit stacks, so deep or heavily composed scripts
// do not grow the Go call stack. Guards are evaluated by the walker and
// are never shown to visitors. Invocations are spliced in by loading the
// target script and descending into its body.
package walker

import (
	"errors"
	"fmt"
	"path"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/scope"
)

// VisitResult controls the traversal after a visit.
type VisitResult int

const (
	// Continue descends into the node's children.
	Continue VisitResult = iota
	// Terminate stops the walk. No further visits happen.
	Terminate
	// SkipSubtree does not descend into the node's children.
	SkipSubtree
	// SkipSiblings descends into the node but drops the siblings that
	// follow it in the enclosing parent.
	SkipSiblings
)

func (r VisitResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case SkipSubtree:
		return "skip-subtree"
	case SkipSiblings:
		return "skip-siblings"
	}
	return fmt.Sprintf("VisitResult(%d)", int(r))
}

// Visitor receives every node that survives guard evaluation. Each
// visited node that is not cut short by Terminate gets exactly one
// PostVisitNode call, after its children. Post-visit results other than
// Terminate and SkipSiblings are ignored.
type Visitor[A any] interface {
	VisitNode(n ast.Node, arg A) (VisitResult, error)
	PostVisitNode(n ast.Node, arg A) (VisitResult, error)
}

// Funcs adapts plain functions to Visitor. Nil functions return Continue.
type Funcs[A any] struct {
	Visit     func(n ast.Node, arg A) (VisitResult, error)
	PostVisit func(n ast.Node, arg A) (VisitResult, error)
}

func (f Funcs[A]) VisitNode(n ast.Node, arg A) (VisitResult, error) {
	if f.Visit == nil {
		return Continue, nil
	}
	return f.Visit(n, arg)
}

func (f Funcs[A]) PostVisitNode(n ast.Node, arg A) (VisitResult, error) {
	if f.PostVisit == nil {
		return Continue, nil
	}
	return f.PostVisit(n, arg)
}

// Loader loads the script an invocation refers to.
type Loader interface {
	Load(path string) (*ast.Script, error)
}

// ErrRecursiveInvocation is returned when a script includes itself.
var ErrRecursiveInvocation = errors.New("recursive invocation")

type parent struct {
	node  ast.Node
	index int // position of node in the pending stack
}

type frame struct {
	inv       *ast.Invocation
	script    string
	dirPushed bool
}

// Walker holds the traversal state of one walk. It is not reusable
// concurrently.
type Walker[A any] struct {
	visitor Visitor[A]
	loader  Loader
	ctx     *scope.Context

	stack   []ast.Node
	parents []parent
	frames  []frame
}

// New returns a walker evaluating guards against ctx. loader may be nil
// for trees without invocations.
func New[A any](v Visitor[A], loader Loader, ctx *scope.Context) *Walker[A] {
	return &Walker[A]{visitor: v, loader: loader, ctx: ctx}
}

// Walk is shorthand for New(v, loader, ctx).Walk(root, arg).
func Walk[A any](v Visitor[A], loader Loader, ctx *scope.Context, root ast.Node, arg A) error {
	return New(v, loader, ctx).Walk(root, arg)
}

// Walk traverses root depth-first in declaration order. Errors raised
// by the visitor, by guards or by loading are returned as *Error.
func (w *Walker[A]) Walk(root ast.Node, arg A) error {
	w.stack = append(w.stack[:0], root)
	w.parents = w.parents[:0]
	w.frames = w.frames[:0]
	defer w.unwind()

	for len(w.stack) > 0 {
		top := w.stack[len(w.stack)-1]

		if n := len(w.parents); n > 0 && w.parents[n-1].node == top {
			w.parents = w.parents[:n-1]
			w.stack = w.stack[:len(w.stack)-1]
			stop, err := w.leave(top, arg)
			if err != nil || stop {
				return err
			}
			continue
		}

		if c, ok := top.(*ast.Condition); ok {
			pass, err := c.Expr.Eval(w.ctx.Resolve)
			if err != nil {
				return w.fail(c, err)
			}
			if pass {
				w.stack[len(w.stack)-1] = c.Then
			} else {
				w.stack = w.stack[:len(w.stack)-1]
			}
			continue
		}

		res, err := w.visitor.VisitNode(top, arg)
		if err != nil {
			return w.fail(top, err)
		}
		switch res {
		case Terminate:
			return nil
		case SkipSubtree:
			w.stack = w.stack[:len(w.stack)-1]
			stop, err := w.leave(top, arg)
			if err != nil || stop {
				return err
			}
			continue
		case SkipSiblings:
			w.dropSiblings()
			w.stack = append(w.stack, top)
		}

		if err := w.descend(top); err != nil {
			return err
		}
	}
	return nil
}

// descend marks top as an open parent and pushes its children so that the
// first child is on top.
func (w *Walker[A]) descend(top ast.Node) error {
	children := ast.Children(top)
	if inv, ok := top.(*ast.Invocation); ok {
		wrapper, err := w.enter(inv)
		if err != nil {
			return w.fail(inv, err)
		}
		children = []ast.Node{wrapper}
	}
	w.parents = append(w.parents, parent{node: top, index: len(w.stack) - 1})
	for i := len(children) - 1; i >= 0; i-- {
		w.stack = append(w.stack, children[i])
	}
	return nil
}

// enter loads the invoked script and opens an inclusion frame.
func (w *Walker[A]) enter(inv *ast.Invocation) (*ast.Block, error) {
	if w.loader == nil {
		return nil, fmt.Errorf("%s %s: no script loader", inv.Mode, inv.Src)
	}
	target := inv.Src
	if !path.IsAbs(target) {
		target = path.Join(path.Dir(inv.Location().Script), target)
	}
	target = path.Clean(target)
	for _, f := range w.frames {
		if f.script == target {
			return nil, fmt.Errorf("%w: %s", ErrRecursiveInvocation, target)
		}
	}
	script, err := w.loader.Load(target)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", inv.Mode, inv.Src, err)
	}

	f := frame{inv: inv, script: script.Path}
	kind := ast.KindInvoke
	if inv.Mode == ast.Exec {
		kind = ast.KindInvokeDir
		w.ctx.PushDir(path.Dir(script.Path))
		f.dirPushed = true
	}
	w.frames = append(w.frames, f)
	return script.Body.Wrap(kind), nil
}

// leave runs the post-visit of n and closes its inclusion frame.
func (w *Walker[A]) leave(n ast.Node, arg A) (bool, error) {
	if inv, ok := n.(*ast.Invocation); ok {
		if k := len(w.frames); k > 0 && w.frames[k-1].inv == inv {
			w.popFrame()
		}
	}
	res, err := w.visitor.PostVisitNode(n, arg)
	if err != nil {
		return true, w.fail(n, err)
	}
	switch res {
	case Terminate:
		return true, nil
	case SkipSiblings:
		w.dropSiblings()
	}
	return false, nil
}

// dropSiblings discards the pending nodes above the innermost open parent.
func (w *Walker[A]) dropSiblings() {
	if n := len(w.parents); n > 0 {
		w.stack = w.stack[:w.parents[n-1].index+1]
		return
	}
	w.stack = w.stack[:0]
}

func (w *Walker[A]) popFrame() {
	f := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]
	if f.dirPushed {
		_ = w.ctx.PopDir()
	}
}

// unwind closes the frames left open by an error or a terminate.
func (w *Walker[A]) unwind() {
	for len(w.frames) > 0 {
		w.popFrame()
	}
	w.stack = w.stack[:0]
	w.parents = w.parents[:0]
}

// Depth returns the number of open inclusion frames.
func (w *Walker[A]) Depth() int { return len(w.frames) }

func (w *Walker[A]) fail(n ast.Node, err error) error {
	var we *Error
	if errors.As(err, &we) {
		return err
	}
	trace := []ast.Location{n.Location()}
	for i := len(w.frames) - 1; i >= 0; i-- {
		trace = append(trace, w.frames[i].inv.Location())
	}
	return &Error{Err: err, Kind: n.Kind(), Backtrace: trace}
}
