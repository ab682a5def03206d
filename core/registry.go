package unitypack

import (
	"sort"
	"sync"
)

// Materializer converts a freshly read record into a native representation.
// src is the asset the record was read from. The returned value is stored in
// Record.Native. Returning an error leaves the record as a plain record.
type Materializer func(src *Asset, r *Record) (any, error)

// Registry maps type tree names to materializers. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Materializer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Materializer)}
}

// Register installs fn for typeName, replacing any previous materializer.
func (r *Registry) Register(typeName string, fn Materializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = make(map[string]Materializer)
	}
	r.m[typeName] = fn
}

// Lookup returns the materializer for typeName.
func (r *Registry) Lookup(typeName string) (Materializer, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.m[typeName]
	return fn, ok
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
