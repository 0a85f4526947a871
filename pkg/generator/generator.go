// Package generator materializes the outputs of a ready flow: it copies
// files, renders templates with the merged model and applies path
// transformations.
package generator

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/ormasoftchile/archetype/pkg/ast"
	"github.com/ormasoftchile/archetype/pkg/ctxlog"
	"github.com/ormasoftchile/archetype/pkg/flow"
	"github.com/ormasoftchile/archetype/pkg/model"
	"github.com/ormasoftchile/archetype/pkg/scope"
	"github.com/ormasoftchile/archetype/pkg/trace"
	"github.com/ormasoftchile/archetype/pkg/walker"
)

// Written describes one generated file.
type Written struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Size   int    `json:"size"`
}

// Options configure a generator.
type Options struct {
	// Renderers defaults to NewRegistry().
	Renderers *Registry
	Trace     *trace.Writer
}

// Generator reads sources from the filesystem the scripts were loaded
// from and writes to a sink.
type Generator struct {
	fsys fs.FS
	sink Sink
	opts Options
}

// New returns a generator. fsys must be the filesystem of the script
// loader so that output directories resolve against script locations.
func New(fsys fs.FS, sink Sink, opts Options) *Generator {
	if opts.Renderers == nil {
		opts.Renderers = NewRegistry()
	}
	return &Generator{fsys: fsys, sink: sink, opts: opts}
}

// Run generates the outputs of a ready flow and marks it done.
func (g *Generator) Run(ctx context.Context, f *flow.Flow) ([]Written, error) {
	start := time.Now()
	res, err := f.Result()
	if err != nil {
		return nil, err
	}
	written, err := g.Generate(ctx, res)
	if err != nil {
		return written, err
	}
	if err := f.MarkDone(); err != nil {
		return written, err
	}
	return written, g.opts.Trace.EmitFlowDone(len(written), time.Since(start))
}

// Generate materializes res without changing the flow state.
func (g *Generator) Generate(ctx context.Context, res *flow.Result) ([]Written, error) {
	global, err := model.ResolveResult(res)
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}
	transforms, err := collectTransformations(res)
	if err != nil {
		return nil, err
	}

	e := &emitter{
		g:          g,
		ctx:        ctx,
		model:      global,
		transforms: transforms,
	}
	for _, o := range res.Outputs {
		c := res.Scoped(o)
		e.dir = o.Dir
		if err := walker.Walk[*scope.Context](e, nil, c, o.Block, c); err != nil {
			return e.written, err
		}
	}
	return e.written, nil
}

func collectTransformations(res *flow.Result) (map[string]*ast.Transformation, error) {
	out := make(map[string]*ast.Transformation)
	v := walker.Funcs[*scope.Context]{
		Visit: func(n ast.Node, _ *scope.Context) (walker.VisitResult, error) {
			switch x := n.(type) {
			case *ast.Block:
				return walker.Continue, nil
			case *ast.Transformation:
				out[x.Name] = x
			}
			return walker.SkipSubtree, nil
		},
	}
	for _, o := range res.Outputs {
		c := res.Scoped(o)
		if err := walker.Walk[*scope.Context](v, nil, c, o.Block, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// emitter is the walker visitor writing the files of one output block
// at a time.
type emitter struct {
	g          *Generator
	ctx        context.Context
	dir        string
	model      *model.Node
	transforms map[string]*ast.Transformation
	written    []Written
}

func (e *emitter) VisitNode(n ast.Node, c *scope.Context) (walker.VisitResult, error) {
	var err error
	switch x := n.(type) {
	case *ast.Block:
		if x.Kind() == ast.KindModel {
			return walker.SkipSubtree, nil
		}
		return walker.Continue, nil
	case *ast.File:
		err = e.file(x, c)
	case *ast.Files:
		err = e.files(x, c)
	case *ast.Template:
		err = e.template(x, c)
	case *ast.Templates:
		err = e.templates(x, c)
	}
	return walker.SkipSubtree, err
}

func (e *emitter) PostVisitNode(ast.Node, *scope.Context) (walker.VisitResult, error) {
	return walker.Continue, nil
}

// source maps a script-relative path to a path in the generator's
// filesystem.
func (e *emitter) source(p string) string {
	if !path.IsAbs(p) {
		p = path.Join(e.dir, p)
	}
	p = strings.TrimPrefix(path.Clean(p), "/")
	if p == "" {
		return "."
	}
	return p
}

func (e *emitter) file(f *ast.File, c *scope.Context) error {
	src, err := c.Interpolate(f.Source)
	if err != nil {
		return err
	}
	target, err := c.Interpolate(f.Target)
	if err != nil {
		return err
	}
	data, err := fs.ReadFile(e.g.fsys, e.source(src))
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	return e.write(target, e.source(src), data)
}

func (e *emitter) files(f *ast.Files, c *scope.Context) error {
	return e.each(f.FileSet, c, func(src, target string) error {
		data, err := fs.ReadFile(e.g.fsys, src)
		if err != nil {
			return err
		}
		return e.write(target, src, data)
	})
}

func (e *emitter) template(t *ast.Template, c *scope.Context) error {
	src, err := c.Interpolate(t.Source)
	if err != nil {
		return err
	}
	target, err := c.Interpolate(t.Target)
	if err != nil {
		return err
	}
	data, err := e.templateData(t.Model, c)
	if err != nil {
		return err
	}
	return e.render(t.Engine, e.source(src), target, data)
}

func (e *emitter) templates(t *ast.Templates, c *scope.Context) error {
	data, err := e.templateData(t.Model, c)
	if err != nil {
		return err
	}
	return e.each(t.FileSet, c, func(src, target string) error {
		return e.render(t.Engine, src, target, data)
	})
}

// templateData merges a template's own model over a copy of the global
// model.
func (e *emitter) templateData(local *ast.Block, c *scope.Context) (any, error) {
	if local == nil {
		return e.model.Data(), nil
	}
	m := e.model.Clone()
	if err := model.Resolve(local, c, m); err != nil {
		return nil, fmt.Errorf("resolve template model: %w", err)
	}
	return m.Data(), nil
}

func (e *emitter) render(engine, src, target string, data any) error {
	rd, err := e.g.opts.Renderers.Get(engine)
	if err != nil {
		return err
	}
	tmpl, err := fs.ReadFile(e.g.fsys, src)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	var buf bytes.Buffer
	if err := rd.Render(&buf, src, tmpl, data); err != nil {
		return fmt.Errorf("render %s: %w", src, err)
	}
	return e.write(target, src, buf.Bytes())
}

// each calls fn for every file selected by set, with its filesystem path
// and its transformed target path.
func (e *emitter) each(set ast.FileSet, c *scope.Context, fn func(src, target string) error) error {
	dir, err := c.Interpolate(set.Directory)
	if err != nil {
		return err
	}
	root := e.source(dir)
	return fs.WalkDir(e.g.fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel := p
		if root != "." {
			rel = strings.TrimPrefix(p, root+"/")
		}
		ok, err := Selected(rel, set.Includes, set.Excludes)
		if err != nil || !ok {
			return err
		}
		target, err := e.transform(rel, set.Transformations, c)
		if err != nil {
			return err
		}
		return fn(p, target)
	})
}

func (e *emitter) transform(name string, ids []string, c *scope.Context) (string, error) {
	for _, id := range ids {
		t, ok := e.transforms[id]
		if !ok {
			return "", fmt.Errorf("unknown transformation %q", id)
		}
		var err error
		if name, err = Apply(t, name, c); err != nil {
			return "", err
		}
	}
	return name, nil
}

func (e *emitter) write(target, src string, data []byte) error {
	target, err := cleanTarget(target)
	if err != nil {
		return err
	}
	if err := e.g.sink.WriteFile(e.ctx, target, data); err != nil {
		return err
	}
	ctxlog.FromContext(e.ctx).Info("file written", "path", target, "source", src, "size", len(data))
	e.written = append(e.written, Written{Path: target, Source: src, Size: len(data)})
	return e.g.opts.Trace.EmitFileWritten(target, src, len(data))
}
