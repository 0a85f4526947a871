package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ormasoftchile/archetype/pkg/value"
)

// Answers is the persisted state of an interactive flow, so that a
// resolution can continue across process invocations.
type Answers struct {
	Script       string                 `json:"script"`
	State        string                 `json:"state,omitempty"`
	SkipOptional bool                   `json:"skip_optional,omitempty"`
	Values       map[string]value.Value `json:"values"`
}

// Snapshot captures the answers and state of f.
func (f *Flow) Snapshot() *Answers {
	return &Answers{
		Script:       f.script.Path,
		State:        f.state.String(),
		SkipOptional: f.opts.SkipOptional,
		Values:       f.Answers(),
	}
}

// SaveAnswers persists a to a JSON file, creating parent directories.
func SaveAnswers(path string, a *Answers) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create answers dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}
	return nil
}

// LoadAnswers reads answers persisted by SaveAnswers.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var a Answers
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	if a.Values == nil {
		a.Values = make(map[string]value.Value)
	}
	return &a, nil
}
