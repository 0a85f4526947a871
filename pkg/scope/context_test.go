package scope

import (
	"errors"
	"testing"

	"github.com/ormasoftchile/archetype/pkg/value"
)

func TestContext_ParentAndRoot(t *testing.T) {
	c := New("")
	if err := c.Push("foo", value.String("x")); err != nil {
		t.Fatal(err)
	}
	if err := c.Push("bar", value.String("y")); err != nil {
		t.Fatal(err)
	}

	for _, p := range []string{"PARENT.foo", "ROOT.foo"} {
		v, ok, err := c.Lookup(p)
		if err != nil || !ok {
			t.Fatalf("lookup %s: %v %v", p, ok, err)
		}
		if !v.Value.Equal(value.String("x")) {
			t.Errorf("lookup %s = %v", p, v.Value)
		}
	}

	if err := c.Pop(); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Lookup("bar"); err != nil || ok {
		t.Errorf("bar after pop: ok=%v err=%v", ok, err)
	}
	v, ok, err := c.Lookup("foo.bar")
	if err != nil || !ok {
		t.Fatalf("foo.bar: %v %v", ok, err)
	}
	if !v.Value.Equal(value.String("y")) {
		t.Errorf("foo.bar = %v", v.Value)
	}
}

func TestContext_Path(t *testing.T) {
	c := New("")
	for _, name := range []string{"a", "b", "c"} {
		if _, err := c.Enter(name, false); err != nil {
			t.Fatal(err)
		}
	}
	if c.Scope() != "a.b.c" {
		t.Fatalf("scope = %q", c.Scope())
	}
	tests := []struct {
		in   string
		want string
	}{
		{"x", "a.b.x"},
		{"c", "a.b.c"},
		{"PARENT.x", "a.x"},
		{"PARENT.PARENT.x", "x"},
		{"ROOT.x.y", "x.y"},
		{"d.e", "a.b.d.e"},
	}
	for _, tt := range tests {
		got, err := c.Path(tt.in)
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Path(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := c.Path("PARENT.PARENT.PARENT.x"); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("expected ErrUnresolvablePath, got %v", err)
	}
}

func TestContext_RootScope(t *testing.T) {
	c := New("")
	if got, _ := c.Path("x"); got != "x" {
		t.Errorf("Path(x) at root = %q", got)
	}
	if _, err := c.Path("PARENT.x"); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("got %v", err)
	}
	if err := c.Pop(); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("pop at root: %v", err)
	}
}

func TestContext_InvalidName(t *testing.T) {
	c := New("")
	if err := c.Push("a.b", value.String("x")); !errors.Is(err, ErrInvalidName) {
		t.Errorf("got %v", err)
	}
	if _, err := c.Enter("", false); !errors.Is(err, ErrInvalidName) {
		t.Errorf("got %v", err)
	}
}

func TestContext_GlobalKey(t *testing.T) {
	c := New("")
	c.Enter("outer", false)
	key, err := c.Key("name", true)
	if err != nil {
		t.Fatal(err)
	}
	if key != "name" {
		t.Errorf("global key = %q", key)
	}
	if key, _ := c.Key("name", false); key != "outer.name" {
		t.Errorf("key = %q", key)
	}
}

func TestContext_ReadOnly(t *testing.T) {
	c := New("")
	if err := c.PutExternal("db", value.String("pg")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("db", value.String("pg")); err != nil {
		t.Errorf("same value must be accepted: %v", err)
	}
	if err := c.Put("db", value.String("mysql")); !errors.Is(err, ErrReadOnly) {
		t.Errorf("got %v", err)
	}
	cv, _ := c.Get("db")
	if !cv.External || !cv.ReadOnly {
		t.Errorf("flags = %+v", cv)
	}

	if err := c.Put("name", value.String("a")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("name", value.String("b")); err != nil {
		t.Errorf("traversal values are writable: %v", err)
	}
}

func TestContext_Dirs(t *testing.T) {
	c := New("/work")
	c.PushDir("sub")
	c.PushDir("../other")
	if c.Cwd() != "/work/other" {
		t.Errorf("cwd = %q", c.Cwd())
	}
	if c.DirDepth() != 2 {
		t.Errorf("depth = %d", c.DirDepth())
	}
	c.PopDir()
	c.PopDir()
	if c.Cwd() != "/work" {
		t.Errorf("cwd = %q", c.Cwd())
	}
	if err := c.PopDir(); !errors.Is(err, ErrEmptyStack) {
		t.Errorf("got %v", err)
	}
}

func TestContext_SnapshotIsolation(t *testing.T) {
	c := New("")
	c.Put("a", value.String("1"))
	s := c.Snapshot()
	s.Put("b", value.String("2"))
	if _, ok := c.Get("b"); ok {
		t.Error("snapshot writes leaked into the original")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("snapshot lost a value")
	}
}

func TestContext_WithScope(t *testing.T) {
	c := New("/w")
	c.Put("app.name", value.String("demo"))
	s := c.WithScope("app.flavor", "/w/sub")
	v, ok, err := s.Resolve("name")
	if err != nil || !ok || !v.Equal(value.String("demo")) {
		t.Errorf("resolve = %v %v %v", v, ok, err)
	}
	if s.Cwd() != "/w/sub" {
		t.Errorf("cwd = %q", s.Cwd())
	}
}

func TestContext_Interpolate(t *testing.T) {
	c := New("")
	c.Put("package", value.String("com.example.app"))
	c.Put("name", value.String("demo"))
	c.Put("flags", value.List("a", "b"))

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${name}", "demo"},
		{"src/${package/\\./_}/Main.java", "src/com_example_app/Main.java"},
		{"${name}-${name}", "demo-demo"},
		{"${flags}", "a,b"},
		{"${package/\\./\\/}", "com/example/app"},
		{"${name/(d)(e)/$2$1}", "edmo"},
	}
	for _, tt := range tests {
		got, err := c.Interpolate(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Interpolate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := c.Interpolate("${missing}"); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("got %v", err)
	}
	if _, err := c.Interpolate("${name/a/b/c}"); err == nil {
		t.Error("expected error for malformed substitution")
	}
	if _, err := c.Interpolate("${name"); err == nil {
		t.Error("expected error for unterminated reference")
	}
}

func TestContext_Normalize(t *testing.T) {
	c := New("")
	c.PutExternal("flavor", value.String("SE"))
	if err := c.Normalize("flavor", value.String("se")); err != nil {
		t.Fatal(err)
	}
	cv, _ := c.Get("flavor")
	if !cv.Value.Equal(value.String("se")) || !cv.External {
		t.Errorf("got %+v", cv)
	}
	if err := c.Normalize("missing", value.Bool(true)); !errors.Is(err, ErrUnresolvablePath) {
		t.Errorf("got %v", err)
	}
}
