// Package config loads the workspace configuration from
// .archetype/config.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// Dir and File locate the configuration relative to a workspace.
const (
	Dir  = ".archetype"
	File = "config.yaml"
)

// Prompter names.
const (
	PrompterLine = "line"
	PrompterTUI  = "tui"
	PrompterNone = "none"
)

// Config holds the workspace configuration. Command line flags override
// it.
type Config struct {
	LogLevel     string         `yaml:"log_level,omitempty"`
	LogFormat    string         `yaml:"log_format,omitempty"`
	Prompter     string         `yaml:"prompter,omitempty"`
	SkipOptional bool           `yaml:"skip_optional,omitempty"`
	CacheSize    int            `yaml:"cache_size,omitempty"`
	Trace        string         `yaml:"trace,omitempty"`
	Defaults     map[string]any `yaml:"defaults,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Prompter:  PrompterLine,
	}
}

// Path returns the configuration file path of the workspace dir.
func Path(dir string) string {
	return filepath.Join(dir, Dir, File)
}

// Load reads the configuration of the workspace dir. A missing file
// yields Default. Fields left out of the file keep their defaults.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read workspace config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse workspace config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("workspace config: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format %q must be text or json", c.LogFormat)
	}
	if !slices.Contains([]string{PrompterLine, PrompterTUI, PrompterNone}, c.Prompter) {
		return fmt.Errorf("prompter %q must be one of line, tui, none", c.Prompter)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	return nil
}

// DefaultValues converts the configured external defaults.
func (c *Config) DefaultValues() (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(c.Defaults))
	for k, raw := range c.Defaults {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("defaults.%s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
