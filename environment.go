package unitypack

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	unitycore "github.com/meigma/unitypack/core"
	"github.com/meigma/unitypack/core/cache"
	"github.com/meigma/unitypack/core/refdata"
)

var _ unitycore.AssetLocator = (*Environment)(nil)

// Environment loads bundles and resolves references between them.
//
// Bundles and assets are cached by lowercase name. Assets that are not loaded
// yet are found with the configured [Discoverer]. An Environment is safe for
// concurrent use.
type Environment struct {
	basePath        string
	logger          *slog.Logger
	discoverer      Discoverer
	blockCache      cache.BlockCache // nil = no caching
	refs            refdata.Provider
	registry        *Registry
	loadConcurrency int

	mu      sync.RWMutex
	bundles map[string]*Bundle   // lowercase bundle name
	assets  map[string]*Asset    // lowercase asset name
	sources map[string]*Bundle   // source id
	closers map[string]io.Closer // "bundle:" or "asset:" plus lowercase name
	loads   singleflight.Group
}

// New creates an environment with the given options.
//
// Without [WithDiscoverer], missing assets are searched for in the base path
// and in the directories of loaded bundles.
func New(opts ...Option) (*Environment, error) {
	e := &Environment{
		bundles: make(map[string]*Bundle),
		assets:  make(map[string]*Asset),
		sources: make(map[string]*Bundle),
		closers: make(map[string]io.Closer),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.discoverer == nil {
		var roots []string
		if e.basePath != "" {
			roots = append(roots, e.basePath)
		}
		e.discoverer = NewDirDiscoverer(roots...)
	}
	if e.loadConcurrency <= 0 {
		e.loadConcurrency = runtime.GOMAXPROCS(0)
	}
	return e, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (e *Environment) log() *slog.Logger {
	if e.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

func (e *Environment) coreOptions() []unitycore.Option {
	opts := []unitycore.Option{
		unitycore.WithLogger(e.logger),
		unitycore.WithAssetLocator(e),
		unitycore.WithRegistry(e.registry),
	}
	if e.blockCache != nil {
		opts = append(opts, unitycore.WithBlockCache(e.blockCache))
	}
	if e.refs != nil {
		opts = append(opts, unitycore.WithReferenceData(e.refs))
	}
	return opts
}

// Load opens and parses the bundle at path. Relative paths that do not exist
// are looked up under the base path.
//
// Loading a file that is already loaded returns the cached bundle.
func (e *Environment) Load(path string) (*Bundle, error) {
	path = e.resolvePath(path)
	src, err := unitycore.OpenFileSource(path)
	if err != nil {
		return nil, err
	}
	b, err := e.LoadSource(src, path)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}
	if b.Source() != src {
		src.Close()
	}
	return b, nil
}

// LoadSource parses a bundle from src and registers it and its assets.
// name is recorded as the bundle path.
//
// Concurrent loads of the same source are coalesced, and a source that was
// loaded before returns the cached bundle. If src implements io.Closer, the
// environment takes ownership of it once the bundle is registered.
func (e *Environment) LoadSource(src ByteSource, name string) (*Bundle, error) {
	id := src.SourceID()
	v, err, _ := e.loads.Do("source:"+id, func() (any, error) {
		e.mu.RLock()
		cached := e.sources[id]
		e.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		b, err := unitycore.Load(src, e.coreOptions()...)
		if err != nil {
			return nil, err
		}
		b.Path = name
		e.register(id, b)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bundle), nil //nolint:errcheck // singleflight returns what the closure stored
}

func (e *Environment) register(id string, b *Bundle) {
	key := strings.ToLower(b.Name)
	if key == "" {
		key = strings.ToLower(strings.TrimSuffix(filepath.Base(b.Path), filepath.Ext(b.Path)))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.bundles[key]; ok && prev != b {
		e.log().Warn("replacing bundle with the same name", "bundle", b.Name, "path", b.Path)
	}
	e.bundles[key] = b
	e.sources[id] = b
	for _, a := range b.Assets() {
		e.assets[strings.ToLower(a.Name)] = a
	}
	if c, ok := b.Source().(io.Closer); ok {
		e.closers["bundle:"+key] = c
	}
	e.log().Debug("registered bundle", "bundle", b.Name, "path", b.Path, "assets", len(b.Assets()))
}

// LoadAll loads the bundles at paths in parallel, at most WithLoadConcurrency
// at a time. The result is in the order of paths.
func (e *Environment) LoadAll(ctx context.Context, paths []string) ([]*Bundle, error) {
	out := make([]*Bundle, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.loadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := e.Load(path)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadAsset loads a serialized file that is not inside a bundle and
// registers it under its file name.
func (e *Environment) LoadAsset(path string) (*Asset, error) {
	path = e.resolvePath(path)
	src, err := unitycore.OpenFileSource(path)
	if err != nil {
		return nil, err
	}
	a, err := e.registerStandalone(src, filepath.Base(path))
	if err != nil {
		src.Close()
		return nil, err
	}
	return a, nil
}

func (e *Environment) registerStandalone(src ByteSource, name string) (*Asset, error) {
	key := strings.ToLower(name)
	e.mu.RLock()
	cached := e.assets[key]
	e.mu.RUnlock()
	if cached != nil {
		return nil, fmt.Errorf("asset %s is already loaded", name)
	}

	a := unitycore.LoadAsset(src, name, e.coreOptions()...)
	if err := a.Load(); err != nil {
		return nil, fmt.Errorf("load asset %s: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets[key] = a
	if c, ok := src.(io.Closer); ok {
		e.closers["asset:"+key] = c
	}
	return a, nil
}

// Bundle returns the loaded bundle called name, compared case-insensitively,
// or nil.
func (e *Environment) Bundle(name string) *Bundle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bundles[strings.ToLower(name)]
}

// Bundles returns the loaded bundles ordered by name.
func (e *Environment) Bundles() []*Bundle {
	e.mu.RLock()
	out := make([]*Bundle, 0, len(e.bundles))
	for _, b := range e.bundles {
		out = append(out, b)
	}
	e.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Bundle) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// Asset returns the asset called name.
//
// Loaded assets are returned from the cache. Otherwise a standalone file
// under the base path is tried, then the discoverer is asked for a bundle
// holding the asset. When nothing matches the error wraps ErrAssetNotFound.
func (e *Environment) Asset(ctx context.Context, name string) (*Asset, error) {
	key := strings.ToLower(name)
	if a := e.cachedAsset(key); a != nil {
		return a, nil
	}

	v, err, _ := e.loads.Do("asset:"+key, func() (any, error) {
		if a := e.cachedAsset(key); a != nil {
			return a, nil
		}
		if a, err := e.loadFromBase(name); a != nil || err != nil {
			return a, err
		}
		return e.discover(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Asset), nil //nolint:errcheck // singleflight returns what the closure stored
}

func (e *Environment) cachedAsset(key string) *Asset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.assets[key]
}

// loadFromBase loads basePath/name as a standalone file when it exists.
func (e *Environment) loadFromBase(name string) (*Asset, error) {
	if e.basePath == "" {
		return nil, nil
	}
	path := filepath.Join(e.basePath, name)
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return nil, nil
	}
	src, err := unitycore.OpenFileSource(path)
	if err != nil {
		return nil, err
	}
	if _, err := unitycore.Load(src); err == nil {
		// A bundle named like the asset; let discovery register it.
		src.Close()
		return nil, nil
	}
	a, err := e.registerStandalone(src, name)
	if err != nil {
		src.Close()
		return nil, err
	}
	return a, nil
}

func (e *Environment) discover(ctx context.Context, name string) (*Asset, error) {
	hints := e.bundleDirs()
	e.log().Debug("discovering asset", "asset", name, "hints", len(hints))

	src, err := e.discoverer.Discover(ctx, name, hints)
	if err != nil {
		return nil, err
	}
	path := sourcePath(src, name)

	b, err := e.LoadSource(src, path)
	if err != nil {
		if !errors.Is(err, ErrMalformedContainer) {
			closeSource(src)
			return nil, fmt.Errorf("load discovered bundle %s: %w", path, err)
		}
		// Not a bundle: try it as a standalone serialized file.
		a, serr := e.registerStandalone(src, name)
		if serr != nil {
			closeSource(src)
			return nil, serr
		}
		return a, nil
	}
	if b.Source() != src {
		closeSource(src)
	}
	if a := e.cachedAsset(strings.ToLower(name)); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s not in discovered bundle %s", ErrAssetNotFound, name, b.Name)
}

// bundleDirs returns the distinct directories of loaded bundle files.
func (e *Environment) bundleDirs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var dirs []string
	for _, b := range e.bundles {
		if b.Path == "" {
			continue
		}
		dir := filepath.Dir(b.Path)
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)
	return dirs
}

// AssetByPath resolves "archive:/<bundle>/<asset>" paths against the loaded
// bundles. Other paths resolve by base name through [Environment.Asset].
func (e *Environment) AssetByPath(ctx context.Context, path string) (*Asset, error) {
	bundle, name, ok := SplitArchivePath(path)
	if !ok {
		return e.Asset(ctx, name)
	}
	b := e.Bundle(bundle)
	if b == nil {
		// The bundle may be known by another name; fall back to the asset.
		return e.Asset(ctx, name)
	}
	if a := b.Asset(name); a != nil {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %s in bundle %s", ErrAssetNotFound, name, b.Name)
}

// LocateAsset implements core.AssetLocator. Siblings in the referencing
// asset's bundle win over assets of other bundles.
func (e *Environment) LocateAsset(from *Asset, filePath string) (*Asset, error) {
	if from != nil && from.Bundle() != nil {
		_, name, _ := SplitArchivePath(filePath)
		if a := from.Bundle().Asset(name); a != nil {
			return a, nil
		}
	}
	return e.AssetByPath(context.Background(), filePath)
}

// Evict drops the bundle called name and its assets from the caches and
// closes its source when the environment owns it. It reports whether a
// bundle was removed.
func (e *Environment) Evict(name string) (bool, error) {
	key := strings.ToLower(name)

	e.mu.Lock()
	b, ok := e.bundles[key]
	if !ok {
		e.mu.Unlock()
		return false, nil
	}
	delete(e.bundles, key)
	for id, cached := range e.sources {
		if cached == b {
			delete(e.sources, id)
		}
	}
	for _, a := range b.Assets() {
		akey := strings.ToLower(a.Name)
		if e.assets[akey] == a {
			delete(e.assets, akey)
		}
	}
	closer := e.closers["bundle:"+key]
	delete(e.closers, "bundle:"+key)
	e.mu.Unlock()

	e.log().Debug("evicted bundle", "bundle", b.Name)
	if closer != nil {
		return true, closer.Close()
	}
	return true, nil
}

// Close releases every source the environment owns and empties the caches.
func (e *Environment) Close() error {
	e.mu.Lock()
	closers := e.closers
	e.closers = make(map[string]io.Closer)
	e.bundles = make(map[string]*Bundle)
	e.assets = make(map[string]*Asset)
	e.sources = make(map[string]*Bundle)
	e.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Environment) resolvePath(path string) string {
	if e.basePath == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(e.basePath, path)
}

// sourcePath returns the file name or URL of src, or fallback.
func sourcePath(src ByteSource, fallback string) string {
	switch s := src.(type) {
	case interface{ Name() string }:
		return s.Name()
	case interface{ URL() string }:
		return s.URL()
	default:
		return fallback
	}
}

func closeSource(src ByteSource) {
	if c, ok := src.(io.Closer); ok {
		_ = c.Close()
	}
}

func (e *Environment) String() string {
	return fmt.Sprintf("<Environment %s>", e.basePath)
}
