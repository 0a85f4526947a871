package script

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/expr"
	"github.com/ormasoftchile/archetype/pkg/value"
)

var inputKinds = map[string]ast.Kind{
	"text":    ast.KindInputText,
	"boolean": ast.KindInputBoolean,
	"enum":    ast.KindInputEnum,
	"list":    ast.KindInputList,
}

// Build converts a decoded document into a syntax tree owned by a fresh
// arena. name is recorded in every node location.
func Build(doc *Document, name string) (*ast.Script, error) {
	if doc.APIVersion != APIVersion {
		return nil, fmt.Errorf("%s: unsupported apiVersion %q, expected %q", name, doc.APIVersion, APIVersion)
	}
	b := &builder{arena: ast.NewArena(), script: name}
	children, err := b.statements(doc.Body)
	if err != nil {
		return nil, err
	}
	body, err := b.arena.NewBlock(ast.Location{Script: name, Line: 1, Column: 1}, ast.KindScript, children...)
	if err != nil {
		return nil, err
	}
	return &ast.Script{Path: name, Name: doc.Name, Body: body, Arena: b.arena}, nil
}

type builder struct {
	arena  *ast.Arena
	script string
}

func (b *builder) loc(p Pos) ast.Location {
	return ast.Location{Script: b.script, Line: p.Line, Column: p.Column}
}

func (b *builder) errorf(p Pos, format string, args ...any) error {
	return fmt.Errorf("%s:%d:%d: %w", b.script, p.Line, p.Column, fmt.Errorf(format, args...))
}

// wrap prefixes err with a position unless a nested builder error
// already carries one.
func (b *builder) wrap(p Pos, err error) error {
	if err == nil || strings.HasPrefix(err.Error(), b.script+":") {
		return err
	}
	return fmt.Errorf("%s:%d:%d: %w", b.script, p.Line, p.Column, err)
}

// guard wraps n in a condition when text is set.
func (b *builder) guard(p Pos, text string, n ast.Node) (ast.Node, error) {
	if strings.TrimSpace(text) == "" {
		return n, nil
	}
	e, err := expr.Compile(text)
	if err != nil {
		return nil, b.wrap(p, err)
	}
	c, err := b.arena.NewCondition(b.loc(p), e, n)
	return c, b.wrap(p, err)
}

func (b *builder) statements(list []Statement) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(list))
	for i := range list {
		n, err := b.statement(&list[i])
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (b *builder) statement(s *Statement) (ast.Node, error) {
	kinds := s.Kinds()
	if len(kinds) != 1 {
		return nil, b.errorf(s.Pos, "statement must have exactly one of step, inputs, presets, source, exec, output (found %d)", len(kinds))
	}
	loc := b.loc(s.Pos)

	var n ast.Node
	switch kinds[0] {
	case "step":
		children, err := b.statements(s.Step.Body)
		if err != nil {
			return nil, err
		}
		n = b.arena.NewStep(loc, s.Step.Label, s.Step.Help, children...)

	case "inputs":
		children := make([]ast.Node, 0, len(s.Inputs))
		for i := range s.Inputs {
			in, err := b.input(&s.Inputs[i])
			if err != nil {
				return nil, err
			}
			children = append(children, in)
		}
		blk, err := b.arena.NewBlock(loc, ast.KindInputs, children...)
		if err != nil {
			return nil, b.wrap(s.Pos, err)
		}
		n = blk

	case "presets":
		children := make([]ast.Node, 0, len(s.Presets))
		for i := range s.Presets {
			p, err := b.preset(&s.Presets[i])
			if err != nil {
				return nil, err
			}
			children = append(children, p)
		}
		blk, err := b.arena.NewBlock(loc, ast.KindPresets, children...)
		if err != nil {
			return nil, b.wrap(s.Pos, err)
		}
		n = blk

	case "source", "exec":
		mode, src := ast.Source, s.Source
		if kinds[0] == "exec" {
			mode, src = ast.Exec, s.Exec
		}
		inv, err := b.arena.NewInvocation(loc, mode, src)
		if err != nil {
			return nil, b.wrap(s.Pos, err)
		}
		n = inv

	case "output":
		children := make([]ast.Node, 0, len(s.Output))
		for i := range s.Output {
			o, err := b.output(&s.Output[i])
			if err != nil {
				return nil, err
			}
			children = append(children, o)
		}
		blk, err := b.arena.NewBlock(loc, ast.KindOutput, children...)
		if err != nil {
			return nil, b.wrap(s.Pos, err)
		}
		n = blk

	default:
		return nil, b.errorf(s.Pos, "unknown statement %q", kinds[0])
	}
	return b.guard(s.Pos, s.If, n)
}

func (b *builder) input(in *Input) (ast.Node, error) {
	kind, ok := inputKinds[in.Type]
	if !ok {
		return nil, b.errorf(in.Pos, "input %q: unknown type %q", in.Name, in.Type)
	}
	spec := ast.Input{
		Name:        in.Name,
		Label:       in.Label,
		Help:        in.Help,
		Prompt:      in.Prompt,
		Placeholder: in.Placeholder,
		Optional:    in.Optional,
		Global:      in.Global,
	}
	if spec.Label == "" {
		spec.Label = in.Name
	}

	def, err := value.FromAny(in.Default)
	if err != nil {
		return nil, b.errorf(in.Pos, "input %q: default: %v", in.Name, err)
	}
	if !def.IsEmpty() {
		want := value.KindString
		switch kind {
		case ast.KindInputBoolean:
			want = value.KindBool
		case ast.KindInputList:
			want = value.KindList
		}
		if def, err = value.Coerce(def, want); err != nil {
			return nil, b.errorf(in.Pos, "input %q: default: %v", in.Name, err)
		}
	}
	spec.Default = def

	for i := range in.Options {
		o, err := b.option(&in.Options[i])
		if err != nil {
			return nil, err
		}
		spec.Options = append(spec.Options, o)
	}
	if spec.Body, err = b.statements(in.Body); err != nil {
		return nil, err
	}

	n, err := b.arena.NewInput(b.loc(in.Pos), kind, spec)
	if err != nil {
		return nil, b.wrap(in.Pos, err)
	}
	return b.guard(in.Pos, in.If, n)
}

func (b *builder) option(o *Option) (ast.Node, error) {
	body, err := b.statements(o.Body)
	if err != nil {
		return nil, err
	}
	label := o.Label
	if label == "" {
		label = o.Value
	}
	n, err := b.arena.NewOption(b.loc(o.Pos), o.Value, label, o.Help, body...)
	if err != nil {
		return nil, b.wrap(o.Pos, err)
	}
	return b.guard(o.Pos, o.If, n)
}

func (b *builder) preset(p *Preset) (ast.Node, error) {
	v, err := value.FromAny(p.Value)
	if err != nil {
		return nil, b.errorf(p.Pos, "preset %q: %v", p.Path, err)
	}
	n, err := b.arena.NewPreset(b.loc(p.Pos), p.Path, v)
	if err != nil {
		return nil, b.wrap(p.Pos, err)
	}
	return b.guard(p.Pos, p.If, n)
}

func (b *builder) output(o *Output) (ast.Node, error) {
	kinds := o.Kinds()
	if len(kinds) != 1 {
		return nil, b.errorf(o.Pos, "output must have exactly one of transformation, file, files, template, templates, model (found %d)", len(kinds))
	}
	loc := b.loc(o.Pos)

	var (
		n   ast.Node
		err error
	)
	switch kinds[0] {
	case "transformation":
		rules := make([][2]string, len(o.Transformation.Replace))
		for i, r := range o.Transformation.Replace {
			rules[i] = [2]string{r.Regex, r.Replacement}
		}
		n, err = b.arena.NewTransformation(loc, o.Transformation.ID, rules...)
	case "file":
		n, err = b.arena.NewFile(loc, o.File.Source, o.File.Target)
	case "files":
		n, err = b.arena.NewFiles(loc, ast.FileSet{
			Directory:       o.Files.Directory,
			Includes:        o.Files.Includes,
			Excludes:        o.Files.Excludes,
			Transformations: o.Files.Transformations,
		})
	case "template":
		var model *ast.Block
		if model, err = b.model(o.Pos, o.Template.Model); err == nil {
			n, err = b.arena.NewTemplate(loc, o.Template.Engine, o.Template.Source, o.Template.Target, model)
		}
	case "templates":
		var model *ast.Block
		if model, err = b.model(o.Pos, o.Templates.Model); err == nil {
			n, err = b.arena.NewTemplates(loc, o.Templates.Engine, ast.FileSet{
				Directory:       o.Templates.Directory,
				Includes:        o.Templates.Includes,
				Excludes:        o.Templates.Excludes,
				Transformations: o.Templates.Transformations,
			}, model)
		}
	case "model":
		if len(o.Model) == 0 {
			return nil, b.errorf(o.Pos, "empty model")
		}
		n, err = b.model(o.Pos, o.Model)
	default:
		return nil, b.errorf(o.Pos, "unknown output %q", kinds[0])
	}
	if err != nil {
		return nil, b.wrap(o.Pos, err)
	}
	return b.guard(o.Pos, o.If, n)
}

// model builds a KindModel block, or nil for no entries.
func (b *builder) model(p Pos, entries []ModelEntry) (*ast.Block, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	children, err := b.modelEntries(entries, false)
	if err != nil {
		return nil, err
	}
	return b.arena.NewBlock(b.loc(p), ast.KindModel, children...)
}

func (b *builder) modelEntries(entries []ModelEntry, inList bool) ([]ast.Node, error) {
	out := make([]ast.Node, 0, len(entries))
	for i := range entries {
		n, err := b.modelEntry(&entries[i], inList)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (b *builder) modelEntry(m *ModelEntry, inList bool) (ast.Node, error) {
	kinds := m.Kinds()
	if len(kinds) != 1 {
		return nil, b.errorf(m.Pos, "model entry must have exactly one of value, map, list (found %d)", len(kinds))
	}
	if m.Key == "" && !inList {
		return nil, b.errorf(m.Pos, "model %s outside a list needs a key", kinds[0])
	}
	order := ast.DefaultOrder
	if m.Order != nil {
		order = *m.Order
	}

	var (
		n   ast.Node
		err error
	)
	switch kinds[0] {
	case "value":
		n, err = b.arena.NewModelNode(b.loc(m.Pos), ast.KindModelValue, m.Key, order, *m.Value)
	case "map":
		var children []ast.Node
		if children, err = b.modelEntries(m.Map, false); err == nil {
			n, err = b.arena.NewModelNode(b.loc(m.Pos), ast.KindModelMap, m.Key, order, "", children...)
		}
	case "list":
		var children []ast.Node
		if children, err = b.modelEntries(m.List, true); err == nil {
			n, err = b.arena.NewModelNode(b.loc(m.Pos), ast.KindModelList, m.Key, order, "", children...)
		}
	}
	if err != nil {
		return nil, b.wrap(m.Pos, err)
	}
	return b.guard(m.Pos, m.If, n)
}
