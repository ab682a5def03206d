package unitypack

import (
	"reflect"
	"sync"

	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/refdata"
)

var emptyRefData = refdata.Empty()

// defaultSchemas holds one lazily parsed default schema per reference data
// provider for the life of the process, or until released.
var defaultSchemas = struct {
	mu sync.Mutex
	m  map[refdata.Provider]*typetree.Defaults
}{m: make(map[refdata.Provider]*typetree.Defaults)}

// shareable reports whether p can key the process-wide schema map.
func shareable(p refdata.Provider) bool {
	return p != nil && reflect.TypeOf(p).Comparable()
}

// DefaultSchema returns the shared default schema built from p. The schema is
// parsed once, on first lookup.
//
// Providers whose dynamic type is not comparable (a struct holding a map, for
// example) cannot be shared; each call returns a fresh, unshared schema.
func DefaultSchema(p refdata.Provider) *typetree.Defaults {
	if !shareable(p) {
		return typetree.NewDefaults(p)
	}
	defaultSchemas.mu.Lock()
	defer defaultSchemas.mu.Unlock()
	d, ok := defaultSchemas.m[p]
	if !ok {
		d = typetree.NewDefaults(p)
		defaultSchemas.m[p] = d
	}
	return d
}

// ReleaseDefaultSchema drops the default schema built from p. Assets that
// already resolved their types keep them.
func ReleaseDefaultSchema(p refdata.Provider) {
	if !shareable(p) {
		return
	}
	defaultSchemas.mu.Lock()
	defer defaultSchemas.mu.Unlock()
	delete(defaultSchemas.m, p)
}
