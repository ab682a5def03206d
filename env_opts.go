package unitypack

import (
	"errors"
	"log/slog"

	"github.com/meigma/unitypack/core/cache"
	coredisk "github.com/meigma/unitypack/core/cache/disk"
	"github.com/meigma/unitypack/core/refdata"
)

// Option configures an Environment.
type Option func(*Environment) error

// DefaultBlockCacheSize is the size limit used by WithBlockCacheDir.
const DefaultBlockCacheSize int64 = 256 << 20 // 256 MB

// WithBasePath sets the directory searched for relative bundle paths and for
// assets that are not loaded yet.
func WithBasePath(dir string) Option {
	return func(e *Environment) error {
		e.basePath = dir
		return nil
	}
}

// WithDiscoverer sets how missing assets are found. It replaces the default
// directory search.
func WithDiscoverer(d Discoverer) Option {
	return func(e *Environment) error {
		if d == nil {
			return errors.New("discoverer is nil")
		}
		e.discoverer = d
		return nil
	}
}

// WithLogger sets the logger used by the environment and every bundle it
// loads. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Environment) error {
		e.logger = logger
		return nil
	}
}

// WithBlockCache caches decoded archive blocks in bc.
func WithBlockCache(bc cache.BlockCache) Option {
	return func(e *Environment) error {
		e.blockCache = bc
		return nil
	}
}

// WithBlockCacheDir caches decoded archive blocks on disk under dir, limited
// to DefaultBlockCacheSize.
func WithBlockCacheDir(dir string) Option {
	return func(e *Environment) error {
		bc, err := coredisk.New(dir, coredisk.WithMaxBytes(DefaultBlockCacheSize))
		if err != nil {
			return err
		}
		e.blockCache = bc
		return nil
	}
}

// WithReferenceData sets the provider of the shared string pool, the default
// type schema and the class name table.
func WithReferenceData(p refdata.Provider) Option {
	return func(e *Environment) error {
		e.refs = p
		return nil
	}
}

// WithRegistry sets the materializers applied to records read from loaded
// bundles.
func WithRegistry(r *Registry) Option {
	return func(e *Environment) error {
		e.registry = r
		return nil
	}
}

// WithLoadConcurrency limits how many bundles LoadAll parses at once.
// Zero uses GOMAXPROCS.
func WithLoadConcurrency(n int) Option {
	return func(e *Environment) error {
		if n < 0 {
			return errors.New("load concurrency must be non-negative")
		}
		e.loadConcurrency = n
		return nil
	}
}
