package unitypack

import (
	"log/slog"
	"sync"

	"github.com/meigma/unitypack/core/cache"
	"github.com/meigma/unitypack/core/internal/decompress"
	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/refdata"
)

// Option configures a Bundle or a standalone Asset.
type Option func(*config)

// sharedPool keeps zlib readers for reuse across bundles.
var sharedPool = decompress.NewPool()

// config is shared by a bundle and every asset it contains.
type config struct {
	logger     *slog.Logger
	locator    AssetLocator
	blockCache cache.BlockCache // nil = no caching
	registry   *Registry
	refs       refdata.Provider
	pool       *decompress.Pool

	// Defaults for providers that cannot key the shared schema map.
	defaultsOnce sync.Once
	ownDefaults  *typetree.Defaults
}

func newConfig(opts []Option) *config {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}
	if c.pool == nil {
		c.pool = sharedPool
	}
	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *config) refData() refdata.Provider {
	if c.refs == nil {
		return emptyRefData
	}
	return c.refs
}

func (c *config) defaults() *typetree.Defaults {
	p := c.refData()
	if shareable(p) {
		return DefaultSchema(p)
	}
	c.defaultsOnce.Do(func() {
		c.ownDefaults = typetree.NewDefaults(p)
	})
	return c.ownDefaults
}

// WithLogger sets the logger for diagnostics such as duplicate path ids and
// missing type trees. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithAssetLocator sets how external references are resolved.
//
// Without a locator, references only resolve to assets in the same bundle.
func WithAssetLocator(l AssetLocator) Option {
	return func(c *config) {
		c.locator = l
	}
}

// WithBlockCache caches decoded archive blocks.
func WithBlockCache(bc cache.BlockCache) Option {
	return func(c *config) {
		c.blockCache = bc
	}
}

// WithRegistry sets the materializers applied to records after they are read.
func WithRegistry(r *Registry) Option {
	return func(c *config) {
		c.registry = r
	}
}

// WithReferenceData sets the provider of the shared string pool, the default
// type schema and the class name table.
func WithReferenceData(p refdata.Provider) Option {
	return func(c *config) {
		c.refs = p
	}
}
