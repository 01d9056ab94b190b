// Package cache holds expanded documents keyed by source path, tracking
// each document's transitive macro imports so a change to any file in the
// dependency set invalidates every expansion built from it.
package cache

import (
	"path/filepath"
	"sync"
	"time"
)

// Entry is one cached expansion result.
type Entry struct {
	XML            string
	ImportPaths    []string
	TemplateParams map[string]string
	CachedAt       time.Time
}

// Cache is a thread-safe in-memory expansion cache with TTL eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	// dependents maps a file path to the set of cached document paths
	// whose expansion read it. Every document depends at least on itself.
	dependents map[string]map[string]bool
	ttl        time.Duration
}

func New(ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*Entry),
		dependents: make(map[string]map[string]bool),
		ttl:        ttl,
	}
}

// Get returns the cached entry for path, or nil if absent or expired.
func (c *Cache) Get(path string) *Entry {
	key := filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[key]
	if entry == nil {
		return nil
	}
	if time.Since(entry.CachedAt) > c.ttl {
		c.dropLocked(key)
		return nil
	}
	return entry
}

// Put stores an expansion result and records its dependency set.
func (c *Cache) Put(path string, entry *Entry) {
	key := filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(key)
	c.entries[key] = entry
	c.addDependentLocked(key, key)
	for _, dep := range entry.ImportPaths {
		c.addDependentLocked(filepath.Clean(dep), key)
	}
}

// Invalidate drops every entry whose dependency set contains path.
func (c *Cache) Invalidate(path string) int {
	key := filepath.Clean(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for docKey := range c.dependents[key] {
		if _, ok := c.entries[docKey]; ok {
			c.dropLocked(docKey)
			dropped++
		}
	}
	return dropped
}

// Sweep removes expired entries.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.CachedAt) > c.ttl {
			c.dropLocked(key)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) addDependentLocked(dep, docKey string) {
	set := c.dependents[dep]
	if set == nil {
		set = make(map[string]bool)
		c.dependents[dep] = set
	}
	set[docKey] = true
}

func (c *Cache) dropLocked(docKey string) {
	entry := c.entries[docKey]
	if entry == nil {
		return
	}
	delete(c.entries, docKey)
	c.removeDependentLocked(docKey, docKey)
	for _, dep := range entry.ImportPaths {
		c.removeDependentLocked(filepath.Clean(dep), docKey)
	}
}

func (c *Cache) removeDependentLocked(dep, docKey string) {
	set := c.dependents[dep]
	if set == nil {
		return
	}
	delete(set, docKey)
	if len(set) == 0 {
		delete(c.dependents, dep)
	}
}
