package script

import (
	"container/list"
	"sync"
	"time"

	"github.com/ormasoftchile/archetype/pkg/ast"
)

// DefaultCacheSize is the number of scripts a Cache keeps by default.
const DefaultCacheSize = 64

// Cache is a bounded least-recently-used map from (loader, canonical
// script path) to built script. It is safe for concurrent use and may be
// shared by loaders over different filesystems: each loader reads and
// writes its own key space. Eviction only costs a rebuild on the next
// load.
type Cache struct {
	mu      sync.Mutex
	max     int
	ll      *list.List
	entries map[cacheKey]*list.Element
}

type cacheKey struct {
	loader uint64
	path   string
}

// stamp identifies the version of a script file a cached tree was built
// from.
type stamp struct {
	modTime time.Time
	size    int64
}

type cacheEntry struct {
	key    cacheKey
	stamp  stamp
	script *ast.Script
}

// NewCache returns a cache holding at most max scripts. max <= 0 selects
// DefaultCacheSize.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &Cache{max: max, ll: list.New(), entries: make(map[cacheKey]*list.Element)}
}

// get returns the script cached under k when it was built from a file
// with stamp st.
func (c *Cache) get(k cacheKey, st stamp) (*ast.Script, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if !e.stamp.modTime.Equal(st.modTime) || e.stamp.size != st.size {
		c.ll.Remove(el)
		delete(c.entries, k)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.script, true
}

// put stores s under k, evicting the least recently used entry when
// full.
func (c *Cache) put(k cacheKey, st stamp, s *ast.Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		e := el.Value.(*cacheEntry)
		e.stamp, e.script = st, s
		c.ll.MoveToFront(el)
		return
	}
	c.entries[k] = c.ll.PushFront(&cacheEntry{key: k, stamp: st, script: s})
	for c.ll.Len() > c.max {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.entries, last.Value.(*cacheEntry).key)
	}
}

// Len returns the number of cached scripts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	clear(c.entries)
}
