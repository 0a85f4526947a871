package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/value"
)

const demoScript = `apiVersion: archetype/v1
name: demo
body:
  - inputs:
      - name: name
        type: text
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
`

func writeDemo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"demo.yaml":      demoScript,
		"Dockerfile":     "FROM scratch\n",
		"README.md.tmpl": "# {{ .name }}\n",
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "demo.yaml")
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"name=demo", "docker.registry=a=b", " list = x,y"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]value.Value{
		"name":            value.String("demo"),
		"docker.registry": value.String("a=b"),
		"list":            value.String(" x,y"),
	}
	for k, v := range want {
		if !got[k].Equal(v) {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseAssignments([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestGenerate(t *testing.T) {
	scriptPath := writeDemo(t)
	out := t.TempDir()
	traceDir := t.TempDir()

	gf := &generateFlags{out: out}
	gf.workspace = t.TempDir()
	gf.prompter = "none"
	gf.skipOptional = true
	gf.trace = traceDir
	gf.sets = []string{"name=demo", "docker=yes"}

	var stdout, stderr bytes.Buffer
	if err := gf.run(context.Background(), nil, scriptPath, strings.NewReader(""), &stdout, &stderr); err != nil {
		t.Fatalf("generate: %v\n%s", err, stderr.String())
	}
	data, err := os.ReadFile(filepath.Join(out, "README.md"))
	if err != nil || string(data) != "# demo\n" {
		t.Errorf("README.md = %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(out, "Dockerfile")); err != nil {
		t.Errorf("Dockerfile: %v", err)
	}
	if !strings.Contains(stdout.String(), "generated 2 file(s)") {
		t.Errorf("stdout = %s", stdout.String())
	}

	traces, _ := filepath.Glob(filepath.Join(traceDir, "*.jsonl"))
	if len(traces) != 1 {
		t.Fatalf("trace files = %v", traces)
	}
	result, err := trace.VerifyFile(traces[0])
	if err != nil || !result.Valid {
		t.Errorf("trace verify = %+v, %v", result, err)
	}
}

func TestGenerate_NeedsAnswer(t *testing.T) {
	gf := &generateFlags{out: t.TempDir()}
	gf.workspace = t.TempDir()
	gf.prompter = "none"
	err := gf.run(context.Background(), nil, writeDemo(t), strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "--set name=<value>") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerate_DryRunWithAnswersFile(t *testing.T) {
	scriptPath := writeDemo(t)
	answers := filepath.Join(t.TempDir(), "state", "answers.json")
	if err := flow.SaveAnswers(answers, &flow.Answers{Values: map[string]value.Value{"name": value.String("saved")}}); err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	gf := &generateFlags{out: out, dryRun: true}
	gf.workspace = t.TempDir()
	gf.prompter = "none"
	gf.skipOptional = true
	gf.answers = answers

	var stdout bytes.Buffer
	if err := gf.run(context.Background(), nil, scriptPath, strings.NewReader(""), &stdout, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "1 file(s) would be generated") {
		t.Errorf("stdout = %s", stdout.String())
	}
	if entries, _ := os.ReadDir(out); len(entries) != 0 {
		t.Error("a dry run must not write files")
	}
	saved, err := flow.LoadAnswers(answers)
	if err != nil || saved.State != "done" || !saved.Values["name"].Equal(value.String("saved")) {
		t.Errorf("saved = %+v, %v", saved, err)
	}
}

func TestInputs_JSON(t *testing.T) {
	inf := &inputsFlags{json: true}
	inf.workspace = t.TempDir()

	var stdout bytes.Buffer
	if err := inf.run(context.Background(), nil, writeDemo(t), &stdout, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		State      string                 `json:"state"`
		Unresolved []flow.UnresolvedInput `json:"unresolved"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "waiting" || len(resp.Unresolved) != 1 || resp.Unresolved[0].Path != "name" {
		t.Errorf("response = %+v", resp)
	}
}

func TestInputs_Text(t *testing.T) {
	inf := &inputsFlags{}
	inf.workspace = t.TempDir()
	inf.sets = []string{"name=demo"}

	var stdout bytes.Buffer
	if err := inf.run(context.Background(), nil, writeDemo(t), &stdout, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	got := stdout.String()
	for _, want := range []string{"state: waiting", "next:  docker (boolean)", "default: false", "--skip-optional"} {
		if !strings.Contains(got, want) {
			t.Errorf("output lacks %q:\n%s", want, got)
		}
	}
}

func TestValidate(t *testing.T) {
	var out bytes.Buffer
	validateCmd.SetOut(&out)
	validateCmd.SetErr(&out)
	if err := runValidate(validateCmd, []string{writeDemo(t)}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "✓ demo is valid (2 statements)") {
		t.Errorf("validate output = %s", out.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("apiVersion: archetype/v1\nbody:\n  - bogus: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := runValidate(validateCmd, []string{bad}); err == nil {
		t.Error("expected validation failure")
	}
}
