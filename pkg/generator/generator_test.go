package generator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/script"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/value"
)

const mainScript = `apiVersion: archetype/v1
body:
  - inputs:
      - name: package
        type: text
      - name: name
        type: text
  - output:
      - transformation:
          id: packaged
          replace:
            - regex: __pkg__
              replacement: ${package/\./\/}
      - transformation:
          id: untemplate
          replace:
            - regex: \.tmpl$
              replacement: ""
      - file:
          source: files/README.md
          target: ${name}/README.md
      - files:
          directory: files/src
          includes: ["**/*.java"]
          excludes: ["**/Skip*.java"]
          transformations: [packaged]
      - templates:
          directory: templates
          transformations: [untemplate]
          model:
            - key: local
              value: "yes"
      - template:
          source: other/info.tmpl
          target: info.txt
      - model:
          - key: artifact
            value: ${name}
          - key: deps
            list:
              - value: a
              - value: b
                order: 200
`

func fixture() fstest.MapFS {
	return fstest.MapFS{
		"main.yaml":                     {Data: []byte(mainScript)},
		"files/README.md":               {Data: []byte("readme")},
		"files/src/__pkg__/App.java":    {Data: []byte("class App {}")},
		"files/src/__pkg__/SkipMe.java": {Data: []byte("skip")},
		"files/src/notes.txt":           {Data: []byte("notes")},
		"templates/pom.xml.tmpl":        {Data: []byte(`<artifactId>{{ .artifact }}</artifactId>{{ range .deps }}<dep>{{ . }}</dep>{{ end }}{{ .local }}`)},
		"other/info.tmpl":               {Data: []byte(`{{ .artifact }} {{ default "none" .local }}`)},
	}
}

func readyFlow(t *testing.T, fsys fstest.MapFS) *flow.Flow {
	t.Helper()
	l := script.NewLoader(fsys, nil)
	s, err := l.Load("main.yaml")
	if err != nil {
		t.Fatal(err)
	}
	f := flow.New(s, l, flow.Options{})
	st, err := f.Build(context.Background(), map[string]value.Value{
		"package": value.String("com.example"),
		"name":    value.String("demo"),
	})
	if err != nil || st != flow.Ready {
		t.Fatalf("state = %s, err = %v", st, err)
	}
	return f
}

func TestRun(t *testing.T) {
	fsys := fixture()
	f := readyFlow(t, fsys)
	sink := NewMemSink()
	var tb bytes.Buffer
	g := New(fsys, sink, Options{Trace: trace.NewWriter(&tb, "t")})

	written, err := g.Run(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, w := range written {
		paths = append(paths, w.Path)
	}
	want := []string{"demo/README.md", "com/example/App.java", "pom.xml", "info.txt"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("written = %v, want %v", paths, want)
	}

	files := sink.Files()
	if got := files["pom.xml"]; got != "<artifactId>demo</artifactId><dep>b</dep><dep>a</dep>yes" {
		t.Errorf("pom.xml = %q", got)
	}
	if got := files["info.txt"]; got != "demo none" {
		t.Errorf("info.txt = %q", got)
	}
	if got := files["com/example/App.java"]; got != "class App {}" {
		t.Errorf("App.java = %q", got)
	}
	if f.State() != flow.Done {
		t.Errorf("state = %s", f.State())
	}

	res, err := trace.Verify(&tb)
	if err != nil || !res.Valid || res.EventCount != 5 {
		t.Fatalf("trace = %+v, %v", res, err)
	}
	if res.Events[4].Type != trace.EventFlowDone {
		t.Errorf("last event = %s", res.Events[4].Type)
	}
}

func TestRun_NotReady(t *testing.T) {
	fsys := fixture()
	l := script.NewLoader(fsys, nil)
	s, _ := l.Load("main.yaml")
	f := flow.New(s, l, flow.Options{})
	f.Build(context.Background(), nil)
	if _, err := New(fsys, NewMemSink(), Options{}).Run(context.Background(), f); !errors.Is(err, flow.ErrNotReady) {
		t.Errorf("error = %v", err)
	}
}

func TestGenerate_DirSink(t *testing.T) {
	fsys := fixture()
	f := readyFlow(t, fsys)
	res, _ := f.Result()
	out := t.TempDir()
	if _, err := New(fsys, NewDirSink(out), Options{}).Generate(context.Background(), res); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(out, "demo", "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "readme" {
		t.Errorf("README = %q", data)
	}
	if f.State() != flow.Ready {
		t.Error("Generate must not change the flow state")
	}
}

func TestGenerate_UnknownEngine(t *testing.T) {
	fsys := fixture()
	fsys["main.yaml"] = &fstest.MapFile{Data: []byte(strings.Replace(mainScript,
		"          source: other/info.tmpl\n", "          engine: mustache\n          source: other/info.tmpl\n", 1))}
	f := readyFlow(t, fsys)
	res, _ := f.Result()
	_, err := New(fsys, NewMemSink(), Options{}).Generate(context.Background(), res)
	if err == nil || !strings.Contains(err.Error(), "mustache") {
		t.Errorf("error = %v", err)
	}
}

func TestRegistry_Custom(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", RendererFunc(func(w io.Writer, _ string, src []byte, _ any) error {
		_, err := w.Write(bytes.ToUpper(src))
		return err
	}))
	if got := r.Engines(); !reflect.DeepEqual(got, []string{"go", "upper"}) {
		t.Errorf("engines = %v", got)
	}
	rd, err := r.Get("upper")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	rd.Render(&buf, "x", []byte("abc"), nil)
	if buf.String() != "ABC" {
		t.Errorf("got %q", buf.String())
	}
	if _, err := r.Get(""); err != nil {
		t.Errorf("default engine: %v", err)
	}
}

func TestFuncs(t *testing.T) {
	data := map[string]any{
		"deps": []any{"a", "b"},
		"java": map[string]any{"version": "21"},
		"name": "Demo",
	}
	tests := []struct {
		tmpl string
		want string
	}{
		{`{{ join ", " .deps }}`, "a, b"},
		{`{{ if contains .deps "b" }}yes{{ end }}`, "yes"},
		{`{{ index . "java" "version" }}`, "21"},
		{`{{ index .deps 1 }}`, "b"},
		{`{{ upper .name }}-{{ lower .name }}`, "DEMO-demo"},
		{`{{ replace "." "/" "com.example" }}`, "com/example"},
		{`{{ if eq .java.version 21 }}ok{{ end }}`, "ok"},
		{`{{ default "x" .missing }}`, "x"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		if err := renderText(&buf, "t", []byte(tt.tmpl), data); err != nil {
			t.Errorf("%s: %v", tt.tmpl, err)
			continue
		}
		if buf.String() != tt.want {
			t.Errorf("%s = %q, want %q", tt.tmpl, buf.String(), tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"**/*.java", "App.java", true},
		{"**/*.java", "a/b/App.java", true},
		{"**/*.java", "a/b/App.kt", false},
		{"src/**", "src/a/b", true},
		{"src/*.go", "src/a/b.go", false},
		{"src/**/test/*.go", "src/x/y/test/a.go", true},
		{"*", "a/b", false},
	}
	for _, tt := range tests {
		got, err := Match(tt.pattern, tt.name)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
	if _, err := Match("[", "a"); err == nil {
		t.Error("expected bad pattern error")
	}
}

func TestSelected(t *testing.T) {
	ok, _ := Selected("a/Skip.java", []string{"**/*.java"}, []string{"**/Skip*"})
	if ok {
		t.Error("excluded file selected")
	}
	ok, _ = Selected("x.txt", nil, nil)
	if !ok {
		t.Error("no includes means everything")
	}
}

func TestCleanTarget(t *testing.T) {
	tests := map[string]string{
		"a/b.txt":      "a/b.txt",
		"../../etc/pw": "etc/pw",
		"/abs/x":       "abs/x",
		"./a/../b":     "b",
	}
	for in, want := range tests {
		got, err := cleanTarget(in)
		if err != nil || got != want {
			t.Errorf("cleanTarget(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := cleanTarget(".."); err == nil {
		t.Error("expected error for empty target")
	}
}
