package ast

import (
	"fmt"
	"regexp"
)

// Replacement is one step of a transformation pipeline.
type Replacement struct {
	Regex       *regexp.Regexp
	Replacement string
}

// Transformation is a named pipeline of regex replacements applied to
// target paths.
type Transformation struct {
	base
	Name    string
	Replace []Replacement
}

// NewTransformation builds a transformation. Patterns are compiled here.
// Each rule is a {regex, replacement} pair.
func (a *Arena) NewTransformation(loc Location, name string, rules ...[2]string) (*Transformation, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: transformation without id", ErrInvalidNode)
	}
	t := &Transformation{base: a.alloc(loc, KindTransformation), Name: name}
	for _, rule := range rules {
		re, err := regexp.Compile(rule[0])
		if err != nil {
			return nil, fmt.Errorf("%w: transformation %q: %v", ErrInvalidNode, name, err)
		}
		t.Replace = append(t.Replace, Replacement{Regex: re, Replacement: rule[1]})
	}
	a.own(t)
	return t, nil
}

// File copies one source file to a target path.
type File struct {
	base
	Source string
	Target string
}

// NewFile builds a file output. An empty target means the source path.
func (a *Arena) NewFile(loc Location, source, target string) (*File, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: file without source", ErrInvalidNode)
	}
	if target == "" {
		target = source
	}
	f := &File{base: a.alloc(loc, KindFile), Source: source, Target: target}
	a.own(f)
	return f, nil
}

// FileSet selects files under a directory.
type FileSet struct {
	Directory       string
	Includes        []string
	Excludes        []string
	Transformations []string
}

// Files copies every selected file, applying transformations to the
// relative target paths.
type Files struct {
	base
	FileSet
}

// NewFiles builds a files output.
func (a *Arena) NewFiles(loc Location, set FileSet) (*Files, error) {
	if set.Directory == "" {
		return nil, fmt.Errorf("%w: files without directory", ErrInvalidNode)
	}
	f := &Files{base: a.alloc(loc, KindFiles), FileSet: set}
	a.own(f)
	return f, nil
}

// Template renders one source file with the merged model.
type Template struct {
	base
	Engine string
	Source string
	Target string
	// Model is an optional KindModel block merged over the global model.
	Model *Block
}

// NewTemplate builds a template output.
func (a *Arena) NewTemplate(loc Location, engine, source, target string, model *Block) (*Template, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: template without source", ErrInvalidNode)
	}
	if target == "" {
		target = source
	}
	t := &Template{base: a.alloc(loc, KindTemplate), Engine: engine, Source: source, Target: target, Model: model}
	a.own(t)
	return t, nil
}

// Templates renders every selected file.
type Templates struct {
	base
	FileSet
	Engine string
	Model  *Block
}

// NewTemplates builds a templates output.
func (a *Arena) NewTemplates(loc Location, engine string, set FileSet, model *Block) (*Templates, error) {
	if set.Directory == "" {
		return nil, fmt.Errorf("%w: templates without directory", ErrInvalidNode)
	}
	t := &Templates{base: a.alloc(loc, KindTemplates), FileSet: set, Engine: engine, Model: model}
	a.own(t)
	return t, nil
}

// ModelNode is a map, list or value entry of an output model.
type ModelNode struct {
	base
	// Key is empty only for anonymous list members.
	Key   string
	Order int
	// Value is the text of a KindModelValue node.
	Value    string
	Children []Node
}

// DefaultOrder is the order of model nodes that do not declare one.
const DefaultOrder = 100

// NewModelNode builds a model map, list or value.
func (a *Arena) NewModelNode(loc Location, kind Kind, key string, order int, val string, children ...Node) (*ModelNode, error) {
	if !kind.IsModel() {
		return nil, fmt.Errorf("%w: %s is not a model kind", ErrInvalidNode, kind)
	}
	if kind == KindModelValue && len(children) > 0 {
		return nil, fmt.Errorf("%w: model value %q cannot have children", ErrInvalidNode, key)
	}
	m := &ModelNode{base: a.alloc(loc, kind), Key: key, Order: order, Value: val, Children: children}
	a.own(m)
	return m, nil
}
