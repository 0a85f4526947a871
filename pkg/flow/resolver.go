package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/value"
	"github.com/ormasoftchile/archetype/pkg/walker"
)

type inputFrame struct {
	in  *ast.Input
	val value.Value
}

// resolver is the walker visitor of one build. It resolves inputs in
// traversal order, applies presets, prunes options and collects the
// output blocks it reaches.
type resolver struct {
	log          *slog.Logger
	trace        *trace.Writer
	skipOptional bool
	defaults     map[string]value.Value

	steps     []*ast.Block
	inputs    []inputFrame
	outputs   []ResolvedOutput
	suspended *UnresolvedInput
}

var _ walker.Visitor[*scope.Context] = (*resolver)(nil)

func (r *resolver) VisitNode(n ast.Node, c *scope.Context) (walker.VisitResult, error) {
	switch x := n.(type) {
	case *ast.Block:
		switch x.Kind() {
		case ast.KindStep:
			r.steps = append(r.steps, x)
		case ast.KindOutput:
			r.outputs = append(r.outputs, ResolvedOutput{Block: x, Scope: c.Scope(), Dir: c.Cwd()})
			return walker.SkipSubtree, nil
		case ast.KindModel:
			return walker.Continue, fmt.Errorf("%w: model outside an output", ErrUnsupportedNode)
		}
		return walker.Continue, nil
	case *ast.Invocation:
		return walker.Continue, nil
	case *ast.Preset:
		return walker.SkipSubtree, r.preset(x, c)
	case *ast.Input:
		return r.input(x, c)
	case *ast.Option:
		return r.option(x)
	}
	return walker.Continue, fmt.Errorf("%w: %s", ErrUnsupportedNode, n.Kind())
}

func (r *resolver) PostVisitNode(n ast.Node, c *scope.Context) (walker.VisitResult, error) {
	switch x := n.(type) {
	case *ast.Block:
		if x.Kind() == ast.KindStep && len(r.steps) > 0 {
			r.steps = r.steps[:len(r.steps)-1]
		}
	case *ast.Input:
		r.inputs = r.inputs[:len(r.inputs)-1]
		return walker.Continue, c.Pop()
	}
	return walker.Continue, nil
}

func (r *resolver) preset(p *ast.Preset, c *scope.Context) error {
	key, err := c.Path(p.Path)
	if err != nil {
		return err
	}
	if cv, ok := c.Get(key); ok && cv.External {
		r.log.Debug("preset shadowed by external value", "path", key)
		return nil
	}
	return c.PutPreset(key, p.Value)
}

func (r *resolver) input(in *ast.Input, c *scope.Context) (walker.VisitResult, error) {
	key, err := c.Enter(in.Name, in.Global)
	if err != nil {
		return walker.Continue, err
	}
	res, err := r.resolve(in, key, c)
	if err != nil {
		return walker.Continue, err
	}
	if res.IsSuspended() {
		r.suspended = res.Suspended
		r.log.Debug("input suspended", "path", key, "location", res.Suspended.Location)
		return walker.Terminate, nil
	}
	if res.Source == SourceDefault {
		if err := c.Put(key, res.Value); err != nil {
			return walker.Continue, err
		}
	}
	r.inputs = append(r.inputs, inputFrame{in: in, val: res.Value})
	r.log.Debug("input resolved", "path", key, "source", res.Source, "value", res.Value.String())
	if err := r.trace.EmitInputResolved(key, string(res.Source), res.Value.Any()); err != nil {
		return walker.Continue, err
	}

	if in.Kind() == ast.KindInputBoolean {
		if b, _ := res.Value.AsBool(); !b {
			return walker.SkipSubtree, nil
		}
	}
	return walker.Continue, nil
}

// option keeps the options selected by the enclosing input's value.
func (r *resolver) option(o *ast.Option) (walker.VisitResult, error) {
	if len(r.inputs) == 0 {
		return walker.Continue, fmt.Errorf("%w: option %q outside an input", ErrUnsupportedNode, o.Value)
	}
	for _, v := range r.inputs[len(r.inputs)-1].val.Values() {
		if strings.EqualFold(v, o.Value) {
			return walker.Continue, nil
		}
	}
	return walker.SkipSubtree, nil
}

// resolve looks for the value of in at key: an existing context value
// first, then a synthesized default when optional inputs are skipped.
// Otherwise the input is suspended.
func (r *resolver) resolve(in *ast.Input, key string, c *scope.Context) (StepResult, error) {
	if cv, ok := c.Get(key); ok {
		v, err := normalize(in, cv.Value, c)
		if err != nil {
			return StepResult{}, fmt.Errorf("%w: %s: %v", ErrInvalidValue, key, err)
		}
		if !v.Equal(cv.Value) {
			if err := c.Normalize(key, v); err != nil {
				return StepResult{}, err
			}
		}
		src := SourceContext
		switch {
		case cv.External:
			src = SourceExternal
		case cv.ReadOnly:
			src = SourcePreset
		}
		return StepResult{Value: v, Source: src}, nil
	}

	if in.Optional && r.skipOptional {
		v, err := r.defaultValue(in, key, c)
		if err != nil {
			return StepResult{}, err
		}
		return StepResult{Value: v, Source: SourceDefault}, nil
	}

	u, err := r.describe(in, key, c)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Suspended: &u}, nil
}

// defaultValue returns the external default for key, the declared
// default or the placeholder, in that order. Enum inputs fall back to
// their first available option.
func (r *resolver) defaultValue(in *ast.Input, key string, c *scope.Context) (value.Value, error) {
	def, err := effectiveDefault(in, key, r.defaults)
	if err != nil {
		return value.Empty, err
	}
	if def.IsEmpty() {
		switch in.Kind() {
		case ast.KindInputText:
			def = value.String(in.Placeholder)
		case ast.KindInputBoolean:
			def = value.Bool(false)
		case ast.KindInputList:
			def = value.List()
		case ast.KindInputEnum:
			opts, err := activeOptions(in, c)
			if err != nil {
				return value.Empty, err
			}
			if len(opts) == 0 {
				return value.Empty, fmt.Errorf("%w: %s: no option available", ErrInvalidValue, key)
			}
			def = value.String(opts[0].Value)
		}
	}
	v, err := normalize(in, def, c)
	if err != nil {
		return value.Empty, fmt.Errorf("%w: %s: default: %v", ErrInvalidValue, key, err)
	}
	return v, nil
}

func effectiveDefault(in *ast.Input, key string, defaults map[string]value.Value) (value.Value, error) {
	d, ok := defaults[key]
	if !ok || d.IsEmpty() {
		return in.Default, nil
	}
	v, err := value.Coerce(d, in.ValueKind())
	if err != nil {
		return value.Empty, fmt.Errorf("%w: %s: external default: %v", ErrInvalidValue, key, err)
	}
	return v, nil
}

func (r *resolver) describe(in *ast.Input, key string, c *scope.Context) (UnresolvedInput, error) {
	u := UnresolvedInput{
		Path:        key,
		Name:        in.Name,
		Type:        in.Kind().String(),
		Label:       in.Label,
		Help:        in.Help,
		Prompt:      in.Prompt,
		Placeholder: in.Placeholder,
		Optional:    in.Optional,
		Location:    in.Location().String(),
	}
	def, err := effectiveDefault(in, key, r.defaults)
	if err != nil {
		return u, err
	}
	u.Default = def
	if n := len(r.steps); n > 0 {
		u.Step, u.StepHelp = r.steps[n-1].Label, r.steps[n-1].Help
	}
	opts, err := activeOptions(in, c)
	if err != nil {
		return u, err
	}
	for _, o := range opts {
		u.Options = append(u.Options, Choice{Value: o.Value, Label: o.Label, Help: o.Help})
	}
	return u, nil
}

// activeOptions returns the options of in whose guards hold in c.
func activeOptions(in *ast.Input, c *scope.Context) ([]*ast.Option, error) {
	var out []*ast.Option
	for _, n := range in.Options {
		o, ok := ast.UnwrapOption(n)
		if !ok {
			continue
		}
		keep := true
		for _, g := range ast.Guards(n) {
			pass, err := g.Expr.Eval(c.Resolve)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", g.Location(), err)
			}
			if !pass {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, o)
		}
	}
	return out, nil
}

// normalize coerces v to the input's value type. Enum and list values
// are matched case-insensitively against the available options and
// replaced by the declared spelling.
func normalize(in *ast.Input, v value.Value, c *scope.Context) (value.Value, error) {
	v, err := value.Coerce(v, in.ValueKind())
	if err != nil {
		return value.Empty, err
	}
	if in.Kind() != ast.KindInputEnum && in.Kind() != ast.KindInputList {
		return v, nil
	}
	opts, err := activeOptions(in, c)
	if err != nil {
		return value.Empty, err
	}
	match := func(s string) (string, error) {
		for _, o := range opts {
			if strings.EqualFold(o.Value, s) {
				return o.Value, nil
			}
		}
		names := make([]string, len(opts))
		for i, o := range opts {
			names[i] = o.Value
		}
		return "", fmt.Errorf("%q is not one of %s", s, strings.Join(names, ", "))
	}

	if in.Kind() == ast.KindInputEnum {
		s, _ := v.AsString()
		m, err := match(s)
		if err != nil {
			return value.Empty, err
		}
		return value.String(m), nil
	}
	var items []string
	seen := make(map[string]bool)
	for _, s := range v.Values() {
		m, err := match(s)
		if err != nil {
			return value.Empty, err
		}
		if !seen[m] {
			seen[m] = true
			items = append(items, m)
		}
	}
	return value.List(items...), nil
}
