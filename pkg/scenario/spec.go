// Package scenario replays recorded answers against an archetype script
// and checks the outcome: the flow state, the generated files and
// expressions over the merged model.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// FileName is the scenario document inside a scenario directory.
const FileName = "scenario.yaml"

// Spec is one scenario: the answers to replay and what to expect.
// Omitted expectations are not asserted, except that the flow is
// expected to reach ready when ExpectState is empty.
//
// ExpectUnresolved is the path of the input a waiting flow stops at.
// ExpectFiles maps generated paths to a content matcher: empty means the
// file exists, "/re/" is a regular expression, anything else must be
// contained in the file. Assert holds boolean expressions over model,
// values, files and state.
type Spec struct {
	Description      string            `yaml:"description,omitempty"       json:"description,omitempty"`
	Tags             []string          `yaml:"tags,omitempty"              json:"tags,omitempty"`
	Values           map[string]any    `yaml:"values,omitempty"            json:"values,omitempty"`
	Defaults         map[string]any    `yaml:"defaults,omitempty"          json:"defaults,omitempty"`
	SkipOptional     bool              `yaml:"skip_optional,omitempty"     json:"skip_optional,omitempty"`
	ExpectState      string            `yaml:"expect_state,omitempty"      json:"expect_state,omitempty"`
	ExpectUnresolved string            `yaml:"expect_unresolved,omitempty" json:"expect_unresolved,omitempty"`
	ExpectFiles      map[string]string `yaml:"expect_files,omitempty"      json:"expect_files,omitempty"`
	ExpectNoFiles    []string          `yaml:"expect_no_files,omitempty"   json:"expect_no_files,omitempty"`
	Assert           []string          `yaml:"assert,omitempty"            json:"assert,omitempty"`
}

// LoadSpec reads and parses a scenario.yaml file.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec parses a Spec from raw YAML. Unknown fields are rejected.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &spec, nil
}

// values converts a raw YAML map into typed values.
func values(raw map[string]any) (map[string]value.Value, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]value.Value, len(raw))
	for k, v := range raw {
		tv, err := value.FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = tv
	}
	return out, nil
}
