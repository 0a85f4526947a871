package model

import (
	"context"
	"math"
	"reflect"
	"testing"
	"testing/fstest"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/script"
	"github.com/ormasoftchile/archetype/pkg/value"
)

func TestAdd_ListConcat(t *testing.T) {
	root := NewMap("", 0)
	a, _ := root.Add(NewList("colors", 100))
	a.Add(NewValue("", 100, "red"))
	b, _ := root.Add(NewList("colors", 100))
	b.Add(NewValue("", 100, "blue"))

	if a != b {
		t.Fatal("colliding lists must share one node")
	}
	if got := root.Data(); !reflect.DeepEqual(got, map[string]any{"colors": []any{"red", "blue"}}) {
		t.Errorf("data = %v", got)
	}
}

func TestAdd_ValueOrder(t *testing.T) {
	tests := []struct {
		name   string
		first  int
		second int
		want   string
	}{
		{"higher wins", 100, 200, "second"},
		{"lower loses", 200, 100, "first"},
		{"tie keeps first", 100, 100, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := NewMap("", 0)
			root.Add(NewValue("x", tt.first, "first"))
			root.Add(NewValue("x", tt.second, "second"))
			v, ok := root.Get("x")
			if !ok || v.Value() != tt.want {
				t.Errorf("x = %v, want %s", v.Value(), tt.want)
			}
			if root.Len() != 1 {
				t.Errorf("len = %d", root.Len())
			}
		})
	}
}

func TestAdd_MapMergeAndReplace(t *testing.T) {
	root := NewMap("", 0)
	m1, _ := root.Add(NewMap("java", 100))
	m1.Add(NewValue("version", 100, "17"))
	m2, _ := root.Add(NewMap("java", 100))
	m2.Add(NewValue("vendor", 100, "temurin"))
	if m1 != m2 {
		t.Fatal("equal-order maps merge into the first")
	}

	m3, _ := root.Add(NewMap("java", 300))
	m3.Add(NewValue("version", 100, "21"))
	if got := root.Data(); !reflect.DeepEqual(got, map[string]any{"java": map[string]any{"version": "21"}}) {
		t.Errorf("data = %v", got)
	}

	lost, _ := root.Add(NewValue("java", 50, "x"))
	if cur, _ := root.Get("java"); cur == lost {
		t.Error("a lower order value must not replace the map")
	}
}

func TestAdd_ValueHasNoChildren(t *testing.T) {
	v := NewValue("x", 0, "1")
	if _, err := v.Add(NewValue("y", 0, "2")); err == nil {
		t.Error("expected error")
	}
}

func TestSortChildren_Stable(t *testing.T) {
	l := NewList("l", 0)
	for _, it := range []struct {
		v     string
		order int
	}{{"a", 100}, {"b", 200}, {"c", 100}, {"d", 300}} {
		l.Add(NewValue("", it.order, it.v))
	}
	l.SortChildren()
	if got := l.Data(); !reflect.DeepEqual(got, []any{"d", "b", "a", "c"}) {
		t.Errorf("sorted = %v", got)
	}
}

func TestSortChildren_ExtremeOrders(t *testing.T) {
	l := NewList("l", 0)
	l.Add(NewValue("", math.MinInt, "low"))
	l.Add(NewValue("", math.MaxInt, "high"))
	l.Add(NewValue("", 0, "zero"))
	l.Add(NewValue("", math.MinInt, "low2"))
	l.SortChildren()
	if got := l.Data(); !reflect.DeepEqual(got, []any{"high", "zero", "low", "low2"}) {
		t.Errorf("sorted = %v", got)
	}
}

func TestClone(t *testing.T) {
	root := NewMap("", 0)
	l, _ := root.Add(NewList("items", 100))
	l.Add(NewValue("", 100, "a"))
	c := root.Clone()
	cl, _ := c.Get("items")
	cl.Add(NewValue("", 100, "b"))
	if l.Len() != 1 || cl.Len() != 2 {
		t.Errorf("clone shares state: %d %d", l.Len(), cl.Len())
	}
}

const modelScript = `apiVersion: archetype/v1
body:
  - inputs:
      - name: flavor
        type: enum
        options:
          - value: se
            body:
              - output:
                  - model:
                      - key: dependencies
                        list:
                          - value: helidon-se
                            order: 50
                      - key: main
                        value: ${flavor}.Main
          - value: mp
            body:
              - output:
                  - model:
                      - key: dependencies
                        list:
                          - value: helidon-mp
  - output:
      - model:
          - key: dependencies
            list:
              - value: junit
                order: 10
              - value: logging
                order: 200
              - if: $flavor == 'mp'
                value: cdi
          - key: main
            value: App
            order: 200
      - template:
          source: pom.xml.tmpl
          model:
            - key: local
              value: only-here
`

func TestResolveResult(t *testing.T) {
	l := script.NewLoader(fstest.MapFS{"m.yaml": {Data: []byte(modelScript)}}, nil)
	s, err := l.Load("m.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f := flow.New(s, l, flow.Options{})
	if st, err := f.Build(context.Background(), map[string]value.Value{"flavor": value.String("se")}); err != nil || st != flow.Ready {
		t.Fatalf("state = %s, err = %v", st, err)
	}
	res, _ := f.Result()
	m, err := ResolveResult(res)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"dependencies": []any{"logging", "helidon-se", "junit"},
		"main":         "App",
	}
	if got := m.Data(); !reflect.DeepEqual(got, want) {
		t.Errorf("model = %v, want %v", got, want)
	}
}

func TestResolve_Interpolates(t *testing.T) {
	l := script.NewLoader(fstest.MapFS{"m.yaml": {Data: []byte(modelScript)}}, nil)
	s, _ := l.Load("m.yaml")
	opt := s.Body.Children[0].(*ast.Block).Children[0].(*ast.Input).Options[0].(*ast.Option)
	out := opt.Body[0]

	c := scope.New("/")
	c.Put("flavor", value.String("se"))
	root := NewMap("", 0)
	if err := Resolve(out, c, root); err != nil {
		t.Fatal(err)
	}
	main, _ := root.Get("main")
	if main.Value() != "se.Main" {
		t.Errorf("main = %q", main.Value())
	}
}

func TestResolve_TemplateModel(t *testing.T) {
	l := script.NewLoader(fstest.MapFS{"m.yaml": {Data: []byte(modelScript)}}, nil)
	s, _ := l.Load("m.yaml")
	out := s.Body.Children[1].(*ast.Block)
	tmpl := out.Children[1].(*ast.Template)

	c := scope.New("/")
	c.Put("flavor", value.String("mp"))
	global := NewMap("", 0)
	if err := Resolve(out, c, global); err != nil {
		t.Fatal(err)
	}
	if _, ok := global.Get("local"); ok {
		t.Error("template models stay out of the global model")
	}
	local := global.Clone()
	if err := Resolve(tmpl.Model, c, local); err != nil {
		t.Fatal(err)
	}
	if v, ok := local.Get("local"); !ok || v.Value() != "only-here" {
		t.Errorf("local = %v", local.Data())
	}
	deps, _ := global.Get("dependencies")
	if got := deps.Data(); !reflect.DeepEqual(got, []any{"logging", "cdi", "junit"}) {
		t.Errorf("dependencies = %v", got)
	}
}
