package script

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/expr"
)

// Validation phases and severities.
const (
	PhaseStructural = "structural"
	PhaseSemantic   = "semantic"
	PhaseDomain     = "domain"

	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError is a single finding with its location.
type ValidationError struct {
	Phase    string `json:"phase"`
	Path     string `json:"path"` // e.g. "body[0].inputs[1].options[2]"
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] %s (line %d): %s", e.Phase, e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []*ValidationError) bool {
	return slices.ContainsFunc(errs, func(e *ValidationError) bool { return e.Severity == SeverityError })
}

// ValidateFile runs the three validation phases on the script at p:
// strict YAML decode, JSON Schema validation and domain rules.
func ValidateFile(fsys fs.FS, p string) (*Document, []*ValidationError) {
	key := Canonical(p)
	data, err := fs.ReadFile(fsys, key[1:])
	if err != nil {
		return nil, []*ValidationError{{Phase: PhaseStructural, Message: err.Error(), Severity: SeverityError}}
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, []*ValidationError{{Phase: PhaseStructural, Message: err.Error(), Severity: SeverityError}}
	}

	errs := validateSemantic(doc)
	v := &domainValidator{fsys: fsys, dir: path.Dir(key), declared: map[string]bool{}}
	errs = append(errs, v.validate(doc)...)
	return doc, errs
}

// validateSemantic validates the document against the exported schema.
func validateSemantic(doc *Document) []*ValidationError {
	fail := func(format string, args ...any) []*ValidationError {
		return []*ValidationError{{Phase: PhaseSemantic, Message: fmt.Sprintf(format, args...), Severity: SeverityError}}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fail("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema: %v", err)
	}
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fail("unmarshal schema: %v", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("archetype-v1.json", schemaDoc); err != nil {
		return fail("add schema resource: %v", err)
	}
	sch, err := c.Compile("archetype-v1.json")
	if err != nil {
		return fail("compile schema: %v", err)
	}
	inst, err := sjsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fail("unmarshal document: %v", err)
	}

	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return fail("%v", err)
	}
	var errs []*ValidationError
	for _, cause := range flatten(ve) {
		errs = append(errs, &ValidationError{
			Phase:    PhaseSemantic,
			Path:     strings.Join(cause.InstanceLocation, "/"),
			Message:  fmt.Sprintf("%v", cause.ErrorKind),
			Severity: SeverityError,
		})
	}
	return errs
}

func flatten(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, c := range ve.Causes {
		flat = append(flat, flatten(c)...)
	}
	return flat
}

// ---------------------------------------------------------------------------
// Domain rules
// ---------------------------------------------------------------------------

type guardRef struct {
	path string
	line int
	vars []string
}

type domainValidator struct {
	fsys     fs.FS
	dir      string
	errs     []*ValidationError
	declared map[string]bool // input names and preset leaf names
	transfos []string
	refs     []guardRef      // guards, checked once every name is known
	usedTx   map[string]Pos  // transformation references
	usedPath map[string]string
}

func (v *domainValidator) add(severity, p string, pos Pos, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Phase:    PhaseDomain,
		Path:     p,
		Line:     pos.Line,
		Message:  fmt.Sprintf(format, args...),
		Severity: severity,
	})
}

func (v *domainValidator) validate(doc *Document) []*ValidationError {
	v.usedTx = map[string]Pos{}
	v.usedPath = map[string]string{}
	if doc.APIVersion != APIVersion {
		v.add(SeverityError, "apiVersion", Pos{}, "unrecognized apiVersion %q, expected %q", doc.APIVersion, APIVersion)
	}
	v.statements("body", doc.Body)

	for _, ref := range v.refs {
		for _, name := range ref.vars {
			leaf := name[strings.LastIndex(name, ".")+1:]
			if !v.declared[leaf] {
				v.errs = append(v.errs, &ValidationError{
					Phase:    PhaseDomain,
					Path:     ref.path,
					Line:     ref.line,
					Message:  fmt.Sprintf("guard references $%s, which no input or preset of this script declares", name),
					Severity: SeverityWarning,
				})
			}
		}
	}
	for id, pos := range v.usedTx {
		if !slices.Contains(v.transfos, id) {
			v.add(SeverityWarning, v.usedPath[id], pos, "transformation %q is not declared in this script", id)
		}
	}
	return v.errs
}

func (v *domainValidator) guard(p string, pos Pos, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	e, err := expr.Compile(text)
	if err != nil {
		v.add(SeverityError, p+".if", pos, "%v", err)
		return
	}
	if vars := e.Variables(); len(vars) > 0 {
		v.refs = append(v.refs, guardRef{path: p + ".if", line: pos.Line, vars: vars})
	}
}

func (v *domainValidator) statements(p string, list []Statement) {
	for i := range list {
		s := &list[i]
		sp := fmt.Sprintf("%s[%d]", p, i)
		v.guard(sp, s.Pos, s.If)
		kinds := s.Kinds()
		if len(kinds) != 1 {
			v.add(SeverityError, sp, s.Pos, "statement must have exactly one of step, inputs, presets, source, exec, output (found %v)", kinds)
			continue
		}
		switch kinds[0] {
		case "step":
			if s.Step.Label == "" {
				v.add(SeverityWarning, sp+".step", s.Pos, "step has no label")
			}
			v.statements(sp+".step.body", s.Step.Body)
		case "inputs":
			seen := map[string]bool{}
			for j := range s.Inputs {
				in := &s.Inputs[j]
				if seen[in.Name] {
					v.add(SeverityError, fmt.Sprintf("%s.inputs[%d]", sp, j), in.Pos, "duplicate input name %q", in.Name)
				}
				seen[in.Name] = true
				v.input(fmt.Sprintf("%s.inputs[%d]", sp, j), in)
			}
		case "presets":
			for j := range s.Presets {
				pr := &s.Presets[j]
				pp := fmt.Sprintf("%s.presets[%d]", sp, j)
				v.guard(pp, pr.Pos, pr.If)
				if pr.Path == "" {
					v.add(SeverityError, pp, pr.Pos, "preset has no path")
					continue
				}
				v.declared[pr.Path[strings.LastIndex(pr.Path, ".")+1:]] = true
			}
		case "source", "exec":
			src := s.Source
			if kinds[0] == "exec" {
				src = s.Exec
			}
			target := path.Join(v.dir, src)
			if _, err := fs.Stat(v.fsys, strings.TrimPrefix(target, "/")); err != nil {
				v.add(SeverityError, sp+"."+kinds[0], s.Pos, "cannot load %s: %v", src, err)
			}
		case "output":
			for j := range s.Output {
				v.output(fmt.Sprintf("%s.output[%d]", sp, j), &s.Output[j])
			}
		}
	}
}

func (v *domainValidator) input(p string, in *Input) {
	v.guard(p, in.Pos, in.If)
	if err := ast.CheckName(in.Name); err != nil {
		v.add(SeverityError, p+".name", in.Pos, "%v", err)
	}
	v.declared[in.Name] = true

	kind, ok := inputKinds[in.Type]
	if !ok {
		v.add(SeverityError, p+".type", in.Pos, "unknown input type %q", in.Type)
		return
	}
	hasOptions := len(in.Options) > 0
	switch kind {
	case ast.KindInputEnum, ast.KindInputList:
		if !hasOptions {
			v.add(SeverityError, p+".options", in.Pos, "%s input %q has no options", in.Type, in.Name)
		}
	default:
		if hasOptions {
			v.add(SeverityError, p+".options", in.Pos, "%s input %q cannot have options", in.Type, in.Name)
		}
	}

	var values []string
	for j := range in.Options {
		o := &in.Options[j]
		op := fmt.Sprintf("%s.options[%d]", p, j)
		v.guard(op, o.Pos, o.If)
		if o.Value == "" {
			v.add(SeverityError, op+".value", o.Pos, "option has no value")
		}
		if slices.Contains(values, o.Value) {
			v.add(SeverityError, op+".value", o.Pos, "duplicate option %q", o.Value)
		}
		values = append(values, o.Value)
		v.statements(op+".body", o.Body)
	}

	if in.Default != nil && hasOptions {
		var defaults []string
		switch d := in.Default.(type) {
		case string:
			if kind == ast.KindInputList {
				for _, item := range strings.Split(d, ",") {
					if item = strings.TrimSpace(item); item != "" {
						defaults = append(defaults, item)
					}
				}
			} else {
				defaults = []string{d}
			}
		case []any:
			for _, item := range d {
				defaults = append(defaults, fmt.Sprint(item))
			}
		}
		for _, d := range defaults {
			if !slices.ContainsFunc(values, func(o string) bool { return strings.EqualFold(o, d) }) {
				v.add(SeverityError, p+".default", in.Pos, "default %q is not an option of %q", d, in.Name)
			}
		}
	}
	if in.Optional && in.Default == nil && kind == ast.KindInputEnum {
		v.add(SeverityWarning, p+".default", in.Pos, "optional enum %q has no default", in.Name)
	}
	v.statements(p+".body", in.Body)
}

func (v *domainValidator) output(p string, o *Output) {
	v.guard(p, o.Pos, o.If)
	kinds := o.Kinds()
	if len(kinds) != 1 {
		v.add(SeverityError, p, o.Pos, "output must have exactly one of transformation, file, files, template, templates, model (found %v)", kinds)
		return
	}
	useTx := func(ids []string) {
		for _, id := range ids {
			if _, ok := v.usedTx[id]; !ok {
				v.usedTx[id] = o.Pos
				v.usedPath[id] = p
			}
		}
	}
	switch kinds[0] {
	case "transformation":
		if o.Transformation.ID == "" {
			v.add(SeverityError, p+".transformation.id", o.Pos, "transformation has no id")
		}
		v.transfos = append(v.transfos, o.Transformation.ID)
	case "files":
		useTx(o.Files.Transformations)
	case "templates":
		useTx(o.Templates.Transformations)
		v.model(p+".templates.model", o.Templates.Model, false)
	case "template":
		v.model(p+".template.model", o.Template.Model, false)
	case "model":
		v.model(p+".model", o.Model, false)
	}
}

func (v *domainValidator) model(p string, entries []ModelEntry, inList bool) {
	for i := range entries {
		m := &entries[i]
		mp := fmt.Sprintf("%s[%d]", p, i)
		v.guard(mp, m.Pos, m.If)
		kinds := m.Kinds()
		if len(kinds) != 1 {
			v.add(SeverityError, mp, m.Pos, "model entry must have exactly one of value, map, list (found %v)", kinds)
			continue
		}
		if m.Key == "" && !inList {
			v.add(SeverityError, mp+".key", m.Pos, "model %s outside a list needs a key", kinds[0])
		}
		switch kinds[0] {
		case "map":
			v.model(mp+".map", m.Map, false)
		case "list":
			v.model(mp+".list", m.List, true)
		}
	}
}
