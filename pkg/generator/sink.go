package generator

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
)

// Sink receives generated files. Names are slash separated and relative
// to the output root.
type Sink interface {
	WriteFile(ctx context.Context, name string, data []byte) error
}

// cleanTarget confines name to the output root.
func cleanTarget(name string) (string, error) {
	p := path.Clean("/" + name)[1:]
	if p == "" {
		return "", fmt.Errorf("empty target path %q", name)
	}
	return p, nil
}

// DirSink writes files under a directory on the local filesystem.
type DirSink struct {
	root string
}

// NewDirSink returns a sink rooted at dir.
func NewDirSink(dir string) *DirSink { return &DirSink{root: dir} }

// Root returns the output directory.
func (d *DirSink) Root() string { return d.root }

func (d *DirSink) WriteFile(ctx context.Context, name string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p, err := cleanTarget(name)
	if err != nil {
		return err
	}
	full := filepath.Join(d.root, filepath.FromSlash(p))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// MemSink keeps generated files in memory. It is safe for concurrent use.
type MemSink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemSink returns an empty in-memory sink.
func NewMemSink() *MemSink { return &MemSink{files: make(map[string][]byte)} }

func (m *MemSink) WriteFile(ctx context.Context, name string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p, err := cleanTarget(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = append([]byte(nil), data...)
	return nil
}

// Get returns the content written to name.
func (m *MemSink) Get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return append([]byte(nil), data...), ok
}

// Paths returns the written paths in sorted order.
func (m *MemSink) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.files))
}

// Files returns a copy of every written file.
func (m *MemSink) Files() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for k, v := range m.files {
		out[k] = string(v)
	}
	return out
}
