package scenario

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

const appScript = `apiVersion: archetype/v1
name: app
body:
  - inputs:
      - name: name
        type: text
      - name: flavor
        type: enum
        default: se
        optional: true
        options:
          - value: se
          - value: mp
            body:
              - output:
                  - model:
                      - key: deps
                        list:
                          - value: microprofile
      - name: docker
        type: boolean
        optional: true
        default: false
        body:
          - output:
              - file:
                  source: Dockerfile
  - output:
      - template:
          source: README.md.tmpl
          target: README.md
      - model:
          - key: name
            value: ${name}
          - key: deps
            list:
              - value: core
`

func appFS() fstest.MapFS {
	return fstest.MapFS{
		"app.yaml":       {Data: []byte(appScript)},
		"Dockerfile":     {Data: []byte("FROM scratch\n")},
		"README.md.tmpl": {Data: []byte("# {{ .name }}\n{{ join \", \" .deps }}\n")},
	}
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]byte(`
description: mp build
values:
  name: demo
  flavor: mp
skip_optional: true
expect_files:
  README.md: "# demo"
assert:
  - model.name == "demo"
`))
	if err != nil {
		t.Fatal(err)
	}
	if !spec.SkipOptional || spec.Values["flavor"] != "mp" || len(spec.Assert) != 1 {
		t.Errorf("spec = %+v", spec)
	}

	if _, err := ParseSpec([]byte("expect: ready\n")); err == nil {
		t.Error("expected an error for an unknown field")
	}
	if spec, err := ParseSpec(nil); err != nil || spec == nil {
		t.Errorf("empty document: %v", err)
	}
}

func TestRun_Ready(t *testing.T) {
	r := &Runner{}
	spec := &Spec{
		Values:       map[string]any{"name": "demo", "flavor": "mp"},
		SkipOptional: true,
		ExpectFiles: map[string]string{
			"README.md": "# demo",
		},
		ExpectNoFiles: []string{"Dockerfile"},
		Assert: []string{
			`model.name == "demo"`,
			`len(model.deps) == 2`,
			`values.flavor == "mp"`,
			`values.docker == false`,
			`"README.md" in files`,
			`state == "ready"`,
		},
	}
	res := r.Run(context.Background(), appFS(), "app.yaml", spec)
	if res.Status != StatusPassed {
		t.Fatalf("status = %s, error = %s, assertions = %+v", res.Status, res.Error, res.Assertions)
	}
	if got := len(res.Assertions); got != 1+1+1+6 {
		t.Errorf("assertions = %d", got)
	}
}

func TestRun_Failures(t *testing.T) {
	r := &Runner{}
	spec := &Spec{
		Values:        map[string]any{"name": "demo", "docker": true},
		SkipOptional:  true,
		ExpectFiles:   map[string]string{"README.md": "/^# other/", "pom.xml": ""},
		ExpectNoFiles: []string{"Dockerfile"},
		Assert:        []string{`model.name == "other"`, `model.name +`},
	}
	res := r.Run(context.Background(), appFS(), "app.yaml", spec)
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, error = %s", res.Status, res.Error)
	}
	failed := map[string]bool{}
	for _, a := range res.Assertions {
		if !a.Passed {
			failed[a.Type+":"+a.Key+a.Expected] = true
		}
	}
	for _, want := range []string{
		"file:README.md/^# other/",
		"file:pom.xml",
		"no_file:Dockerfile",
		`assert:model.name == "other"`,
		"assert:model.name +",
	} {
		if !failed[want] {
			t.Errorf("missing failure %q in %v", want, failed)
		}
	}
}

func TestRun_Waiting(t *testing.T) {
	r := &Runner{}
	res := r.Run(context.Background(), appFS(), "app.yaml", &Spec{
		ExpectState:      "waiting",
		ExpectUnresolved: "name",
	})
	if res.Status != StatusPassed {
		t.Errorf("status = %s, error = %s, assertions = %+v", res.Status, res.Error, res.Assertions)
	}
}

func TestRun_InvalidValue(t *testing.T) {
	r := &Runner{}
	res := r.Run(context.Background(), appFS(), "app.yaml", &Spec{
		Values: map[string]any{"name": "demo", "flavor": "ee"},
	})
	if res.Status != StatusError || !strings.Contains(res.Error, "invalid input value") {
		t.Errorf("status = %s, error = %s", res.Status, res.Error)
	}
}

func TestMatchContent(t *testing.T) {
	tests := []struct {
		matcher string
		content string
		want    bool
	}{
		{"", "anything", true},
		{"demo", "# demo\n", true},
		{"other", "# demo\n", false},
		{"/^# d.mo$/", "# demo", true},
		{"/[/", "x", false},
	}
	for _, tt := range tests {
		if got, _ := matchContent(tt.matcher, tt.content); got != tt.want {
			t.Errorf("matchContent(%q, %q) = %v, want %v", tt.matcher, tt.content, got, tt.want)
		}
	}
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"scenarios/app/mp/scenario.yaml":       "values:\n  name: demo\n  flavor: mp\nskip_optional: true\nassert:\n  - len(model.deps) == 2\n",
		"scenarios/app/broken/scenario.yaml":   "values:\n  name: demo\nskip_optional: true\nexpect_files:\n  Dockerfile: \"\"\n",
		"scenarios/app/no-spec/notes.txt":      "later",
		"scenarios/app/bad-yaml/scenario.yaml": "values: [\n",
	}
	for name, f := range appFS() {
		files[name] = string(f.Data)
	}
	writeTree(t, dir, files)
	scriptPath := filepath.Join(dir, "app.yaml")

	found, err := Discover(scriptPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 4 {
		t.Fatalf("discovered %d scenarios", len(found))
	}

	out, err := (&Runner{}).RunAll(context.Background(), scriptPath, false)
	if err != nil {
		t.Fatal(err)
	}
	want := Summary{Total: 4, Passed: 1, Failed: 1, Skipped: 1, Errors: 1}
	if out.Summary != want {
		t.Errorf("summary = %+v, want %+v", out.Summary, want)
	}

	res, err := (&Runner{}).RunScenario(context.Background(), scriptPath, "mp")
	if err != nil || res.Status != StatusPassed {
		t.Errorf("mp = %+v, %v", res, err)
	}
	if _, err := (&Runner{}).RunScenario(context.Background(), scriptPath, "missing"); err == nil {
		t.Error("expected an error for an unknown scenario")
	}
}

func TestDiscover_NoDirectory(t *testing.T) {
	found, err := Discover(filepath.Join(t.TempDir(), "app.yaml"))
	if err != nil || found != nil {
		t.Errorf("got %v, %v", found, err)
	}
}

func TestRunAll_Webapp(t *testing.T) {
	out, err := (&Runner{}).RunAll(context.Background(), filepath.Join("..", "..", "testdata", "webapp", "webapp.yaml"), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range out.Scenarios {
		if s.Status != StatusPassed {
			t.Errorf("%s: %s %s %+v", s.Scenario, s.Status, s.Error, s.Assertions)
		}
	}
	if out.Summary.Total != 3 || out.Summary.Passed != 3 {
		t.Errorf("summary = %+v", out.Summary)
	}
}
