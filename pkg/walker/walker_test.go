package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/expr"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/value"
)

type mapLoader map[string]*ast.Script

func (m mapLoader) Load(p string) (*ast.Script, error) {
	s, ok := m[p]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", p, fs.ErrNotExist)
	}
	return s, nil
}

func label(n ast.Node) string {
	switch x := n.(type) {
	case *ast.File:
		return "file:" + x.Source
	case *ast.Block:
		return x.Kind().String()
	case *ast.Invocation:
		return x.Mode.String() + ":" + x.Src
	}
	return n.Kind().String()
}

// recorder logs pre and post visits and returns scripted results.
type recorder struct {
	events  []string
	results map[string]VisitResult
	fail    string
	onVisit func(ast.Node)
}

func (r *recorder) VisitNode(n ast.Node, _ struct{}) (VisitResult, error) {
	l := label(n)
	r.events = append(r.events, "+"+l)
	if r.onVisit != nil {
		r.onVisit(n)
	}
	if l == r.fail {
		return Continue, errors.New("boom")
	}
	return r.results[l], nil
}

func (r *recorder) PostVisitNode(n ast.Node, _ struct{}) (VisitResult, error) {
	r.events = append(r.events, "-"+label(n))
	return Continue, nil
}

func (r *recorder) trace() string { return strings.Join(r.events, " ") }

func loc(script string, line int) ast.Location {
	return ast.Location{Script: script, Line: line, Column: 1}
}

func files(a *ast.Arena, script string, names ...string) []ast.Node {
	var out []ast.Node
	for i, n := range names {
		f, _ := a.NewFile(loc(script, i+1), n, "")
		out = append(out, f)
	}
	return out
}

func TestWalk_DocumentOrder(t *testing.T) {
	a := ast.NewArena()
	root, _ := a.NewBlock(loc("/main.yaml", 1), ast.KindScript, files(a, "/main.yaml", "a", "b", "c")...)
	r := &recorder{}
	if err := Walk[struct{}](r, nil, scope.New("/"), root, struct{}{}); err != nil {
		t.Fatal(err)
	}
	want := "+script +file:a -file:a +file:b -file:b +file:c -file:c -script"
	if got := r.trace(); got != want {
		t.Errorf("trace:\n got %s\nwant %s", got, want)
	}
}

func TestWalk_ConditionPruning(t *testing.T) {
	a := ast.NewArena()
	nodes := files(a, "/main.yaml", "yes", "no")
	c1, _ := a.NewCondition(loc("/main.yaml", 1), expr.MustCompile("$flag"), nodes[0])
	c2, _ := a.NewCondition(loc("/main.yaml", 2), expr.MustCompile("!$flag"), nodes[1])
	root, _ := a.NewBlock(loc("/main.yaml", 1), ast.KindScript, c1, c2)

	ctx := scope.New("/")
	ctx.Put("flag", value.Bool(true))
	r := &recorder{}
	if err := Walk[struct{}](r, nil, ctx, root, struct{}{}); err != nil {
		t.Fatal(err)
	}
	want := "+script +file:yes -file:yes -script"
	if got := r.trace(); got != want {
		t.Errorf("trace:\n got %s\nwant %s", got, want)
	}
}

func TestWalk_VisitResults(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]VisitResult
		want    string
	}{
		{
			name:    "skip subtree",
			results: map[string]VisitResult{"step": SkipSubtree},
			want:    "+script +step -step +file:c -file:c -script",
		},
		{
			name:    "skip siblings",
			results: map[string]VisitResult{"file:a": SkipSiblings},
			want:    "+script +step +file:a -file:a -step +file:c -file:c -script",
		},
		{
			name:    "skip siblings on step",
			results: map[string]VisitResult{"step": SkipSiblings},
			want:    "+script +step +file:a -file:a +file:b -file:b -step -script",
		},
		{
			name:    "terminate",
			results: map[string]VisitResult{"file:b": Terminate},
			want:    "+script +step +file:a -file:a +file:b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := ast.NewArena()
			step := a.NewStep(loc("/m.yaml", 1), "Step", "", files(a, "/m.yaml", "a", "b")...)
			rest := files(a, "/m.yaml", "c")
			root, _ := a.NewBlock(loc("/m.yaml", 1), ast.KindScript, step, rest[0])
			r := &recorder{results: tt.results}
			if err := Walk[struct{}](r, nil, scope.New("/"), root, struct{}{}); err != nil {
				t.Fatal(err)
			}
			if got := r.trace(); got != tt.want {
				t.Errorf("trace:\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func includeFixture(mode ast.InvocationMode) (*ast.Block, mapLoader) {
	lib := ast.NewArena()
	libBody, _ := lib.NewBlock(loc("/lib/b.yaml", 1), ast.KindScript, files(lib, "/lib/b.yaml", "inner")...)

	a := ast.NewArena()
	inv, _ := a.NewInvocation(loc("/main.yaml", 3), mode, "lib/b.yaml")
	after := files(a, "/main.yaml", "after")
	root, _ := a.NewBlock(loc("/main.yaml", 1), ast.KindScript, inv, after[0])
	return root, mapLoader{"/lib/b.yaml": {Path: "/lib/b.yaml", Body: libBody, Arena: lib}}
}

func TestWalk_Exec(t *testing.T) {
	root, loader := includeFixture(ast.Exec)
	ctx := scope.New("/")
	var cwd string
	r := &recorder{onVisit: func(n ast.Node) {
		if f, ok := n.(*ast.File); ok && f.Source == "inner" {
			cwd = ctx.Cwd()
		}
	}}
	if err := Walk[struct{}](r, loader, ctx, root, struct{}{}); err != nil {
		t.Fatal(err)
	}
	want := "+script +exec:lib/b.yaml +invoke-dir +file:inner -file:inner -invoke-dir -exec:lib/b.yaml +file:after -file:after -script"
	if got := r.trace(); got != want {
		t.Errorf("trace:\n got %s\nwant %s", got, want)
	}
	if cwd != "/lib" {
		t.Errorf("cwd inside exec = %q", cwd)
	}
	if ctx.DirDepth() != 0 {
		t.Errorf("dir depth after walk = %d", ctx.DirDepth())
	}
}

func TestWalk_Source(t *testing.T) {
	root, loader := includeFixture(ast.Source)
	ctx := scope.New("/")
	var cwd string
	r := &recorder{onVisit: func(n ast.Node) {
		if n.Kind() == ast.KindFile {
			cwd = ctx.Cwd()
		}
	}}
	if err := Walk[struct{}](r, loader, ctx, root, struct{}{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(r.trace(), "+invoke +file:inner") {
		t.Errorf("trace = %s", r.trace())
	}
	if cwd != "/" {
		t.Errorf("source must not change directory, cwd = %q", cwd)
	}
}

func TestWalk_ErrorInIncludedScript(t *testing.T) {
	root, loader := includeFixture(ast.Exec)
	ctx := scope.New("/")
	r := &recorder{fail: "file:inner"}
	w := New[struct{}](r, loader, ctx)
	err := w.Walk(root, struct{}{})

	var we *Error
	if !errors.As(err, &we) {
		t.Fatalf("got %T %v", err, err)
	}
	if len(we.Backtrace) != 2 {
		t.Fatalf("backtrace = %v", we.Backtrace)
	}
	if we.Backtrace[0].Script != "/lib/b.yaml" || we.Backtrace[1] != loc("/main.yaml", 3) {
		t.Errorf("backtrace = %v", we.Backtrace)
	}
	if !strings.Contains(err.Error(), "at /main.yaml:3:1") {
		t.Errorf("message = %q", err.Error())
	}
	if w.Depth() != 0 || ctx.DirDepth() != 0 {
		t.Errorf("frames left open: depth=%d dirs=%d", w.Depth(), ctx.DirDepth())
	}
}

func TestWalk_TerminateInsideExecPopsDir(t *testing.T) {
	root, loader := includeFixture(ast.Exec)
	ctx := scope.New("/")
	r := &recorder{results: map[string]VisitResult{"file:inner": Terminate}}
	if err := Walk[struct{}](r, loader, ctx, root, struct{}{}); err != nil {
		t.Fatal(err)
	}
	if ctx.DirDepth() != 0 {
		t.Errorf("dir depth = %d", ctx.DirDepth())
	}
}

func TestWalk_LoadFailure(t *testing.T) {
	root, _ := includeFixture(ast.Source)
	err := Walk[struct{}](&recorder{}, mapLoader{}, scope.New("/"), root, struct{}{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("got %v", err)
	}
	var we *Error
	if !errors.As(err, &we) || we.Kind != ast.KindInvocation {
		t.Errorf("error = %#v", err)
	}
}

func TestWalk_RecursiveInvocation(t *testing.T) {
	a := ast.NewArena()
	inv, _ := a.NewInvocation(loc("/loop.yaml", 1), ast.Source, "loop.yaml")
	body, _ := a.NewBlock(loc("/loop.yaml", 1), ast.KindScript, inv)
	loader := mapLoader{"/loop.yaml": {Path: "/loop.yaml", Body: body, Arena: a}}
	err := Walk[struct{}](&recorder{}, loader, scope.New("/"), body, struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	// The root script itself is not a frame, so the loop is caught one level in.
	if !errors.Is(err, ErrRecursiveInvocation) {
		t.Errorf("got %v", err)
	}
}

func TestWalk_GuardError(t *testing.T) {
	a := ast.NewArena()
	f := files(a, "/m.yaml", "x")
	c, _ := a.NewCondition(loc("/m.yaml", 4), expr.MustCompile("$name && true"), f[0])
	root, _ := a.NewBlock(loc("/m.yaml", 1), ast.KindScript, c)
	ctx := scope.New("/")
	ctx.Put("name", value.String("demo"))
	err := Walk[struct{}](&recorder{}, nil, ctx, root, struct{}{})
	if !errors.Is(err, expr.ErrNonBooleanExpression) {
		t.Fatalf("got %v", err)
	}
	var we *Error
	if !errors.As(err, &we) || we.Location() != loc("/m.yaml", 4) {
		t.Errorf("location = %v", we)
	}
}
