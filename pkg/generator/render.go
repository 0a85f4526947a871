package generator

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/template"
)

// DefaultEngine is the renderer used by templates that name no engine.
const DefaultEngine = "go"

// Renderer renders a template source with data.
type Renderer interface {
	Render(w io.Writer, name string, src []byte, data any) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(w io.Writer, name string, src []byte, data any) error

func (f RendererFunc) Render(w io.Writer, name string, src []byte, data any) error {
	return f(w, name, src, data)
}

// Registry maps engine names to renderers.
type Registry struct {
	engines map[string]Renderer
}

// NewRegistry returns a registry holding the Go text/template engine.
func NewRegistry() *Registry {
	r := &Registry{engines: make(map[string]Renderer)}
	r.Register(DefaultEngine, RendererFunc(renderText))
	return r
}

// Register adds or replaces an engine.
func (r *Registry) Register(name string, rd Renderer) {
	r.engines[name] = rd
}

// Get returns the renderer of engine. An empty name selects
// DefaultEngine.
func (r *Registry) Get(engine string) (Renderer, error) {
	if engine == "" {
		engine = DefaultEngine
	}
	rd, ok := r.engines[engine]
	if !ok {
		return nil, fmt.Errorf("unknown template engine %q (have %s)", engine, strings.Join(r.Engines(), ", "))
	}
	return rd, nil
}

// Engines returns the registered engine names.
func (r *Registry) Engines() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func renderText(w io.Writer, name string, src []byte, data any) error {
	t, err := template.New(name).Funcs(Funcs()).Parse(string(src))
	if err != nil {
		return fmt.Errorf("template parse: %w", err)
	}
	if err := t.Execute(w, data); err != nil {
		return fmt.Errorf("template eval: %w", err)
	}
	return nil
}

// Funcs returns the functions available to Go templates. Comparisons
// work on the printed form of their operands, so model values compare
// with literals regardless of type.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"eq": func(a, b any) bool {
			return fmt.Sprint(a) == fmt.Sprint(b)
		},
		"ne": func(a, b any) bool {
			return fmt.Sprint(a) != fmt.Sprint(b)
		},
		"contains": func(s, substr any) bool {
			if list, ok := s.([]any); ok {
				for _, it := range list {
					if fmt.Sprint(it) == fmt.Sprint(substr) {
						return true
					}
				}
				return false
			}
			return strings.Contains(fmt.Sprint(s), fmt.Sprint(substr))
		},
		"hasPrefix": func(s, prefix any) bool {
			return strings.HasPrefix(fmt.Sprint(s), fmt.Sprint(prefix))
		},
		"hasSuffix": func(s, suffix any) bool {
			return strings.HasSuffix(fmt.Sprint(s), fmt.Sprint(suffix))
		},
		"default": func(def, val any) any {
			if val == nil || fmt.Sprint(val) == "" {
				return def
			}
			return val
		},
		"join": func(sep string, list any) string {
			items, ok := list.([]any)
			if !ok {
				return fmt.Sprint(list)
			}
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = fmt.Sprint(it)
			}
			return strings.Join(parts, sep)
		},
		"upper":   func(s any) string { return strings.ToUpper(fmt.Sprint(s)) },
		"lower":   func(s any) string { return strings.ToLower(fmt.Sprint(s)) },
		"replace": func(old, repl string, s any) string { return strings.ReplaceAll(fmt.Sprint(s), old, repl) },
		"index": func(collection any, keys ...any) (any, error) {
			return indexRecursive(collection, keys)
		},
	}
}

func indexRecursive(val any, keys []any) (any, error) {
	if len(keys) == 0 {
		return val, nil
	}
	switch c := val.(type) {
	case map[string]any:
		next, ok := c[fmt.Sprint(keys[0])]
		if !ok {
			return nil, nil
		}
		return indexRecursive(next, keys[1:])
	case []any:
		idx, ok := toInt(keys[0])
		if !ok {
			return nil, fmt.Errorf("index: non-integer index %v", keys[0])
		}
		if idx < 0 || idx >= len(c) {
			return nil, fmt.Errorf("index: %d out of range [0,%d)", idx, len(c))
		}
		return indexRecursive(c[idx], keys[1:])
	default:
		return nil, fmt.Errorf("index: cannot index %T", val)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
