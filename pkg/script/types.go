// Package script defines the archetype/v1 YAML document, decodes it
// strictly, builds the syntax tree and caches loaded scripts.
package script

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIVersion is the only accepted document version.
const APIVersion = "archetype/v1"

// Document is the top-level archetype/v1 script.
type Document struct {
	APIVersion  string      `yaml:"apiVersion" json:"apiVersion" jsonschema:"enum=archetype/v1"`
	Name        string      `yaml:"name,omitempty" json:"name,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Body        []Statement `yaml:"body" json:"body"`
}

// Pos is the line and column of a YAML mapping.
type Pos struct {
	Line   int
	Column int
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Statement holds exactly one of its directive fields plus an optional
// guard.
type Statement struct {
	If      string   `yaml:"if,omitempty" json:"if,omitempty"`
	Step    *Step    `yaml:"step,omitempty" json:"step,omitempty"`
	Inputs  []Input  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Presets []Preset `yaml:"presets,omitempty" json:"presets,omitempty"`
	Source  string   `yaml:"source,omitempty" json:"source,omitempty"`
	Exec    string   `yaml:"exec,omitempty" json:"exec,omitempty"`
	Output  []Output `yaml:"output,omitempty" json:"output,omitempty"`

	Pos  Pos      `yaml:"-" json:"-"`
	keys []string // directive keys present in the source
}

// Step groups statements under a label.
type Step struct {
	Label string      `yaml:"label" json:"label"`
	Help  string      `yaml:"help,omitempty" json:"help,omitempty"`
	Body  []Statement `yaml:"body,omitempty" json:"body,omitempty"`
}

// Input is a named question.
type Input struct {
	Name        string      `yaml:"name" json:"name"`
	Type        string      `yaml:"type" json:"type" jsonschema:"enum=text,enum=boolean,enum=enum,enum=list"`
	Label       string      `yaml:"label,omitempty" json:"label,omitempty"`
	Help        string      `yaml:"help,omitempty" json:"help,omitempty"`
	Prompt      string      `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Default     any         `yaml:"default,omitempty" json:"default,omitempty"`
	Placeholder string      `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Optional    bool        `yaml:"optional,omitempty" json:"optional,omitempty"`
	Global      bool        `yaml:"global,omitempty" json:"global,omitempty"`
	If          string      `yaml:"if,omitempty" json:"if,omitempty"`
	Options     []Option    `yaml:"options,omitempty" json:"options,omitempty"`
	Body        []Statement `yaml:"body,omitempty" json:"body,omitempty"`

	Pos Pos `yaml:"-" json:"-"`
}

// Option is one choice of an enum or list input.
type Option struct {
	Value string      `yaml:"value" json:"value"`
	Label string      `yaml:"label,omitempty" json:"label,omitempty"`
	Help  string      `yaml:"help,omitempty" json:"help,omitempty"`
	If    string      `yaml:"if,omitempty" json:"if,omitempty"`
	Body  []Statement `yaml:"body,omitempty" json:"body,omitempty"`

	Pos Pos `yaml:"-" json:"-"`
}

// Preset sets a context value before it is asked for.
type Preset struct {
	Path  string `yaml:"path" json:"path"`
	Value any    `yaml:"value" json:"value"`
	If    string `yaml:"if,omitempty" json:"if,omitempty"`

	Pos Pos `yaml:"-" json:"-"`
}

// ---------------------------------------------------------------------------
// Outputs
// ---------------------------------------------------------------------------

// Output holds exactly one output directive plus an optional guard.
type Output struct {
	If             string          `yaml:"if,omitempty" json:"if,omitempty"`
	Transformation *Transformation `yaml:"transformation,omitempty" json:"transformation,omitempty"`
	File           *File           `yaml:"file,omitempty" json:"file,omitempty"`
	Files          *Files          `yaml:"files,omitempty" json:"files,omitempty"`
	Template       *Template       `yaml:"template,omitempty" json:"template,omitempty"`
	Templates      *Templates      `yaml:"templates,omitempty" json:"templates,omitempty"`
	Model          []ModelEntry    `yaml:"model,omitempty" json:"model,omitempty"`

	Pos  Pos      `yaml:"-" json:"-"`
	keys []string
}

// Transformation is a named list of regex replacements.
type Transformation struct {
	ID      string    `yaml:"id" json:"id"`
	Replace []Replace `yaml:"replace" json:"replace"`
}

// Replace is one regex replacement.
type Replace struct {
	Regex       string `yaml:"regex" json:"regex"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

// File copies a single file.
type File struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
}

// Files copies a directory selection.
type Files struct {
	Directory       string   `yaml:"directory" json:"directory"`
	Includes        []string `yaml:"includes,omitempty" json:"includes,omitempty"`
	Excludes        []string `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Transformations []string `yaml:"transformations,omitempty" json:"transformations,omitempty"`
}

// Template renders one file.
type Template struct {
	Engine string       `yaml:"engine,omitempty" json:"engine,omitempty"`
	Source string       `yaml:"source" json:"source"`
	Target string       `yaml:"target,omitempty" json:"target,omitempty"`
	Model  []ModelEntry `yaml:"model,omitempty" json:"model,omitempty"`
}

// Templates renders a directory selection.
type Templates struct {
	Engine          string       `yaml:"engine,omitempty" json:"engine,omitempty"`
	Directory       string       `yaml:"directory" json:"directory"`
	Includes        []string     `yaml:"includes,omitempty" json:"includes,omitempty"`
	Excludes        []string     `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Transformations []string     `yaml:"transformations,omitempty" json:"transformations,omitempty"`
	Model           []ModelEntry `yaml:"model,omitempty" json:"model,omitempty"`
}

// ModelEntry is a keyed value, map or list of the output model.
type ModelEntry struct {
	Key   string       `yaml:"key,omitempty" json:"key,omitempty"`
	Order *int         `yaml:"order,omitempty" json:"order,omitempty"`
	If    string       `yaml:"if,omitempty" json:"if,omitempty"`
	Value *string      `yaml:"value,omitempty" json:"value,omitempty"`
	Map   []ModelEntry `yaml:"map,omitempty" json:"map,omitempty"`
	List  []ModelEntry `yaml:"list,omitempty" json:"list,omitempty"`

	Pos  Pos      `yaml:"-" json:"-"`
	keys []string
}

// ---------------------------------------------------------------------------
// Position capturing decoders
// ---------------------------------------------------------------------------

func (s *Statement) UnmarshalYAML(n *yaml.Node) error {
	type plain Statement
	keys, err := decodeMapping(n, (*plain)(s), "Statement")
	s.Pos, s.keys = Pos{n.Line, n.Column}, without(keys, "if")
	return err
}

func (in *Input) UnmarshalYAML(n *yaml.Node) error {
	type plain Input
	_, err := decodeMapping(n, (*plain)(in), "Input")
	in.Pos = Pos{n.Line, n.Column}
	return err
}

func (o *Option) UnmarshalYAML(n *yaml.Node) error {
	type plain Option
	_, err := decodeMapping(n, (*plain)(o), "Option")
	o.Pos = Pos{n.Line, n.Column}
	return err
}

func (p *Preset) UnmarshalYAML(n *yaml.Node) error {
	type plain Preset
	_, err := decodeMapping(n, (*plain)(p), "Preset")
	p.Pos = Pos{n.Line, n.Column}
	return err
}

func (o *Output) UnmarshalYAML(n *yaml.Node) error {
	type plain Output
	keys, err := decodeMapping(n, (*plain)(o), "Output")
	o.Pos, o.keys = Pos{n.Line, n.Column}, without(keys, "if")
	return err
}

func (m *ModelEntry) UnmarshalYAML(n *yaml.Node) error {
	type plain ModelEntry
	keys, err := decodeMapping(n, (*plain)(m), "ModelEntry")
	m.Pos = Pos{n.Line, n.Column}
	m.keys = []string{}
	for _, k := range keys {
		if k == "value" || k == "map" || k == "list" {
			m.keys = append(m.keys, k)
		}
	}
	return err
}

func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	type plain Step
	_, err := decodeMapping(n, (*plain)(s), "Step")
	return err
}

func (t *Transformation) UnmarshalYAML(n *yaml.Node) error {
	type plain Transformation
	_, err := decodeMapping(n, (*plain)(t), "Transformation")
	return err
}

func (r *Replace) UnmarshalYAML(n *yaml.Node) error {
	type plain Replace
	_, err := decodeMapping(n, (*plain)(r), "Replace")
	return err
}

func (f *File) UnmarshalYAML(n *yaml.Node) error {
	type plain File
	_, err := decodeMapping(n, (*plain)(f), "File")
	return err
}

func (f *Files) UnmarshalYAML(n *yaml.Node) error {
	type plain Files
	_, err := decodeMapping(n, (*plain)(f), "Files")
	return err
}

func (t *Template) UnmarshalYAML(n *yaml.Node) error {
	type plain Template
	_, err := decodeMapping(n, (*plain)(t), "Template")
	return err
}

func (t *Templates) UnmarshalYAML(n *yaml.Node) error {
	type plain Templates
	_, err := decodeMapping(n, (*plain)(t), "Templates")
	return err
}

// Kinds returns the directive keys present, for exactly-one checks.
// Statements built in code report their non-zero fields.
func (s *Statement) Kinds() []string {
	if s.keys != nil {
		return s.keys
	}
	return present(map[string]bool{
		"step":    s.Step != nil,
		"inputs":  s.Inputs != nil,
		"presets": s.Presets != nil,
		"source":  s.Source != "",
		"exec":    s.Exec != "",
		"output":  s.Output != nil,
	})
}

// Kinds returns the output keys present.
func (o *Output) Kinds() []string {
	if o.keys != nil {
		return o.keys
	}
	return present(map[string]bool{
		"transformation": o.Transformation != nil,
		"file":           o.File != nil,
		"files":          o.Files != nil,
		"template":       o.Template != nil,
		"templates":      o.Templates != nil,
		"model":          o.Model != nil,
	})
}

// Kinds returns which of value, map and list are present.
func (m *ModelEntry) Kinds() []string {
	if m.keys != nil {
		return m.keys
	}
	return present(map[string]bool{
		"value": m.Value != nil,
		"map":   m.Map != nil,
		"list":  m.List != nil,
	})
}

func present(set map[string]bool) []string {
	var out []string
	for k, ok := range set {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// decodeMapping decodes a mapping node into out, rejecting keys that are
// not yaml-tagged fields of out. It returns the keys in source order.
func decodeMapping(n *yaml.Node, out any, typeName string) ([]string, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: %s must be a mapping", n.Line, typeName)
	}
	known := yamlFields(reflect.TypeOf(out).Elem())
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		if !known[k.Value] {
			return nil, fmt.Errorf("line %d: field %s not found in %s", k.Line, k.Value, typeName)
		}
		keys = append(keys, k.Value)
	}
	return keys, n.Decode(out)
}

func yamlFields(t reflect.Type) map[string]bool {
	out := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		out[name] = true
	}
	return out
}

func without(keys []string, drop string) []string {
	out := []string{}
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}
