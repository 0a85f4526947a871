package script

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/archetype/pkg/ast"
)

// Decode reads an archetype/v1 document. Unknown fields are rejected.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("structural decode: empty document")
		}
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	return &doc, nil
}

// Canonical returns the cache key of a script path: slash separated,
// cleaned and rooted.
func Canonical(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

// Loader reads scripts from a filesystem and memoizes the built trees.
// It implements walker.Loader.
type Loader struct {
	id    uint64
	fsys  fs.FS
	cache *Cache
}

var loaderIDs atomic.Uint64

// NewLoader returns a loader over fsys. A nil cache disables memoization.
// A cache shared with other loaders never returns their scripts.
func NewLoader(fsys fs.FS, cache *Cache) *Loader {
	return &Loader{id: loaderIDs.Add(1), fsys: fsys, cache: cache}
}

// FS returns the filesystem scripts and their sources are read from.
func (l *Loader) FS() fs.FS { return l.fsys }

// Load returns the script at p.
func (l *Loader) Load(p string) (*ast.Script, error) {
	key := Canonical(p)
	name := key[1:]
	var st stamp
	if l.cache != nil {
		info, err := fs.Stat(l.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		st = stamp{modTime: info.ModTime(), size: info.Size()}
		if s, ok := l.cache.get(cacheKey{l.id, key}, st); ok {
			return s, nil
		}
	}
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(key, data)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.put(cacheKey{l.id, key}, st, s)
	}
	return s, nil
}

// Parse decodes and builds a script. name becomes the script path used
// in node locations.
func Parse(name string, data []byte) (*ast.Script, error) {
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return Build(doc, name)
}
