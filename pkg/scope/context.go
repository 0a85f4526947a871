// Package scope implements the variable context of a script traversal:
// a flat map of dotted keys to values, a stack of named scopes used to
// build those keys, and a stack of working directories.
//
// Paths are resolved relative to the current scope. "ROOT.a.b" is
// absolute. An unqualified path names a sibling of the current scope and
// every leading "PARENT." moves one more level up.
package scope

import (
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/ormasoftchile/archetype/pkg/value"
)

const (
	rootPrefix   = "ROOT."
	parentPrefix = "PARENT."
)

var (
	ErrUnresolvablePath = errors.New("unresolvable context path")
	ErrInvalidName      = errors.New("invalid scope name")
	ErrReadOnly         = errors.New("read-only context value")
	ErrEmptyStack       = errors.New("context stack is empty")
)

// ContextValue is a value stored in the context. External values come
// from the caller; the others are set during traversal.
type ContextValue struct {
	Value    value.Value `json:"value"`
	External bool        `json:"external,omitempty"`
	ReadOnly bool        `json:"read_only,omitempty"`
}

// Context is not safe for concurrent use. Use Snapshot to hand a copy to
// another goroutine or a nested resolution.
type Context struct {
	values map[string]ContextValue
	scopes []string
	dirs   []string
}

// New returns an empty context rooted at dir.
func New(dir string) *Context {
	if dir == "" {
		dir = "."
	}
	return &Context{
		values: make(map[string]ContextValue),
		dirs:   []string{path.Clean(dir)},
	}
}

// Scope returns the dotted key of the current scope ("" at the root).
func (c *Context) Scope() string {
	if len(c.scopes) == 0 {
		return ""
	}
	return c.scopes[len(c.scopes)-1]
}

// Depth returns the number of open scopes.
func (c *Context) Depth() int { return len(c.scopes) }

// Key returns the key name would get if pushed in the current scope.
// Global names are keyed at the root.
func (c *Context) Key(name string, global bool) (string, error) {
	if name == "" || strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if global || c.Scope() == "" {
		return name, nil
	}
	return c.Scope() + "." + name, nil
}

// Enter opens the scope for name and returns its key.
func (c *Context) Enter(name string, global bool) (string, error) {
	key, err := c.Key(name, global)
	if err != nil {
		return "", err
	}
	c.scopes = append(c.scopes, key)
	return key, nil
}

// Push stores v under name in the current scope and opens that scope.
func (c *Context) Push(name string, v value.Value) error {
	key, err := c.Key(name, false)
	if err != nil {
		return err
	}
	if err := c.Put(key, v); err != nil {
		return err
	}
	c.scopes = append(c.scopes, key)
	return nil
}

// Pop closes the current scope. Values stay in the map.
func (c *Context) Pop() error {
	if len(c.scopes) == 0 {
		return ErrEmptyStack
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
	return nil
}

// Cwd returns the current working directory.
func (c *Context) Cwd() string { return c.dirs[len(c.dirs)-1] }

// PushDir makes dir current. Relative dirs resolve against Cwd.
func (c *Context) PushDir(dir string) {
	if !path.IsAbs(dir) {
		dir = path.Join(c.Cwd(), dir)
	}
	c.dirs = append(c.dirs, path.Clean(dir))
}

// PopDir restores the previous working directory.
func (c *Context) PopDir() error {
	if len(c.dirs) == 1 {
		return ErrEmptyStack
	}
	c.dirs = c.dirs[:len(c.dirs)-1]
	return nil
}

// DirDepth returns the number of pushed directories.
func (c *Context) DirDepth() int { return len(c.dirs) - 1 }

// Path resolves a context path to the flat key it designates.
func (c *Context) Path(p string) (string, error) {
	if rest, ok := strings.CutPrefix(p, rootPrefix); ok {
		if rest == "" {
			return "", fmt.Errorf("%w: %q", ErrUnresolvablePath, p)
		}
		return rest, nil
	}
	parents := 0
	for {
		rest, ok := strings.CutPrefix(p, parentPrefix)
		if !ok {
			break
		}
		parents++
		p = rest
	}
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnresolvablePath)
	}

	current := c.Scope()
	if current == "" {
		if parents > 0 {
			return "", fmt.Errorf("%w: %q has no parent at the root scope", ErrUnresolvablePath, strings.Repeat(parentPrefix, parents)+p)
		}
		return p, nil
	}
	segs := strings.Split(current, ".")
	levels := parents + 1
	if levels > len(segs) {
		return "", fmt.Errorf("%w: %q from scope %q", ErrUnresolvablePath, strings.Repeat(parentPrefix, parents)+p, current)
	}
	prefix := strings.Join(segs[:len(segs)-levels], ".")
	if prefix == "" {
		return p, nil
	}
	return prefix + "." + p, nil
}

// Lookup resolves p and returns the value stored there.
func (c *Context) Lookup(p string) (ContextValue, bool, error) {
	key, err := c.Path(p)
	if err != nil {
		return ContextValue{}, false, err
	}
	v, ok := c.values[key]
	return v, ok, nil
}

// Resolve is Lookup reduced to the value. Its signature matches
// expr.Lookup.
func (c *Context) Resolve(p string) (value.Value, bool, error) {
	v, ok, err := c.Lookup(p)
	return v.Value, ok, err
}

// Get returns the value stored at an absolute key.
func (c *Context) Get(key string) (ContextValue, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Put stores a traversal value at key.
func (c *Context) Put(key string, v value.Value) error {
	return c.set(key, ContextValue{Value: v})
}

// PutExternal stores a caller supplied value. External values are
// read-only for the traversal.
func (c *Context) PutExternal(key string, v value.Value) error {
	return c.set(key, ContextValue{Value: v, External: true, ReadOnly: true})
}

// PutPreset stores a read-only value set by the script itself.
func (c *Context) PutPreset(key string, v value.Value) error {
	return c.set(key, ContextValue{Value: v, ReadOnly: true})
}

// Normalize replaces the value stored at key, keeping its flags. It is
// used to store the canonical form of an answer, such as the declared
// spelling of an enum option.
func (c *Context) Normalize(key string, v value.Value) error {
	cv, ok := c.values[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnresolvablePath, key)
	}
	cv.Value = v
	c.values[key] = cv
	return nil
}

func (c *Context) set(key string, cv ContextValue) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidName)
	}
	if old, ok := c.values[key]; ok && old.ReadOnly {
		if !old.Value.Equal(cv.Value) {
			return fmt.Errorf("%w: %s", ErrReadOnly, key)
		}
		return nil
	}
	c.values[key] = cv
	return nil
}

// Keys returns the stored keys in sorted order.
func (c *Context) Keys() []string {
	keys := slices.Collect(maps.Keys(c.values))
	sort.Strings(keys)
	return keys
}

// Values returns a copy of every stored value.
func (c *Context) Values() map[string]value.Value {
	out := make(map[string]value.Value, len(c.values))
	for k, v := range c.values {
		out[k] = v.Value
	}
	return out
}

// Entries returns a copy of the stored values with their flags.
func (c *Context) Entries() map[string]ContextValue {
	return maps.Clone(c.values)
}

// Snapshot copies the values into a new context at the root scope and
// base directory.
func (c *Context) Snapshot() *Context {
	return &Context{
		values: maps.Clone(c.values),
		dirs:   []string{c.dirs[0]},
	}
}

// WithScope returns a context over a copy of c's values positioned at
// scope with dir as working directory.
func (c *Context) WithScope(scope, dir string) *Context {
	out := c.Snapshot()
	if scope != "" {
		out.scopes = []string{scope}
	}
	if dir != "" && dir != out.dirs[0] {
		out.dirs = append(out.dirs, path.Clean(dir))
	}
	return out
}
