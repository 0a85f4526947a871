package flow

import (
	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/value"
)

// Source tells where the value of a resolved input came from.
type Source string

const (
	SourceExternal Source = "external"
	SourcePreset   Source = "preset"
	SourceContext  Source = "context"
	SourceDefault  Source = "default"
)

// StepResult is the outcome of resolving one input: either a value or a
// suspension waiting for the caller.
type StepResult struct {
	Value     value.Value
	Source    Source
	Suspended *UnresolvedInput
}

// IsSuspended reports whether resolution stopped at this input.
func (r StepResult) IsSuspended() bool { return r.Suspended != nil }

// Choice is one selectable option of an enum or list input.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
	Help  string `json:"help,omitempty"`
}

// UnresolvedInput describes the input a build stopped at. Answer it by
// passing a value for Path to the next Build.
type UnresolvedInput struct {
	Path        string      `json:"path"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Label       string      `json:"label,omitempty"`
	Help        string      `json:"help,omitempty"`
	Prompt      string      `json:"prompt,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Default     value.Value `json:"default"`
	Optional    bool        `json:"optional,omitempty"`
	Step        string      `json:"step,omitempty"`
	StepHelp    string      `json:"step_help,omitempty"`
	Options     []Choice    `json:"options,omitempty"`
	Location    string      `json:"location"`
}

// Kind returns the value type answers are coerced to.
func (u UnresolvedInput) Kind() value.Kind {
	switch u.Type {
	case ast.KindInputBoolean.String():
		return value.KindBool
	case ast.KindInputList.String():
		return value.KindList
	}
	return value.KindString
}

// Question returns the text to show when asking for the input.
func (u UnresolvedInput) Question() string {
	if u.Prompt != "" {
		return u.Prompt
	}
	if u.Label != "" {
		return u.Label
	}
	return u.Name
}

// ResolvedOutput is an output block reached by a complete resolution,
// with the scope and working directory it was declared in.
type ResolvedOutput struct {
	Block *ast.Block
	Scope string
	Dir   string
}

// Result is the outcome of a build that reached Ready.
type Result struct {
	Context *scope.Context
	Outputs []ResolvedOutput
}

// Scoped returns a copy of the result context positioned where o was
// declared, for interpolating and evaluating the output's nodes.
func (r *Result) Scoped(o ResolvedOutput) *scope.Context {
	return r.Context.WithScope(o.Scope, o.Dir)
}
