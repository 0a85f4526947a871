package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/archetype/pkg/value"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, Dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Prompter != PrompterLine || cfg.LogLevel != "warn" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `log_level: debug
prompter: tui
skip_optional: true
cache_size: 8
trace: trace.jsonl
defaults:
  docker: false
  docker.registry: ghcr.io
  features: [metrics, health]
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "text" || cfg.Prompter != PrompterTUI {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.SkipOptional || cfg.CacheSize != 8 || cfg.Trace != "trace.jsonl" {
		t.Errorf("cfg = %+v", cfg)
	}
	defs, err := cfg.DefaultValues()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]value.Value{
		"docker":          value.Bool(false),
		"docker.registry": value.String("ghcr.io"),
		"features":        value.List("metrics", "health"),
	}
	for k, v := range want {
		if !defs[k].Equal(v) {
			t.Errorf("defaults[%s] = %v, want %v", k, defs[k], v)
		}
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown field": "colour: red\n",
		"bad prompter":  "prompter: gui\n",
		"bad level":     "log_level: loud\n",
		"bad format":    "log_format: xml\n",
		"negative":      "cache_size: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Prompter != PrompterLine {
		t.Errorf("cfg = %+v", cfg)
	}
}
