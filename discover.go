package unitypack

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	unitycore "github.com/meigma/unitypack/core"
	corehttp "github.com/meigma/unitypack/core/http"
)

// Discoverer finds the bundle or serialized file holding an asset that is not
// loaded yet.
//
// hints lists the directories of bundles already loaded. Implementations
// return an error wrapping ErrAssetNotFound when nothing matches.
type Discoverer interface {
	Discover(ctx context.Context, name string, hints []string) (ByteSource, error)
}

// DiscovererFunc adapts a function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context, name string, hints []string) (ByteSource, error)

// Discover calls f.
func (f DiscovererFunc) Discover(ctx context.Context, name string, hints []string) (ByteSource, error) {
	return f(ctx, name, hints)
}

// DirDiscoverer searches directories for a file named after the asset.
//
// A file matches when its name, with or without extension, equals the asset
// name or "cab-" plus the asset name, compared case-insensitively.
type DirDiscoverer struct {
	roots []string
}

// NewDirDiscoverer returns a discoverer that searches roots before the hinted
// directories.
func NewDirDiscoverer(roots ...string) *DirDiscoverer {
	return &DirDiscoverer{roots: roots}
}

// Discover implements Discoverer.
func (d *DirDiscoverer) Discover(ctx context.Context, name string, hints []string) (ByteSource, error) {
	wanted := candidateNames(name)
	var dirs []string
	for _, dir := range slices.Concat(d.roots, hints) {
		if dir != "" && !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("scan %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !matchesName(entry.Name(), wanted) {
				continue
			}
			return unitycore.OpenFileSource(filepath.Join(dir, entry.Name()))
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
}

// candidateNames returns the lowercase file names that may hold name.
func candidateNames(name string) []string {
	lower := strings.ToLower(name)
	trimmed := strings.TrimPrefix(lower, "cab-")
	return []string{lower, "cab-" + trimmed, trimmed}
}

func matchesName(file string, wanted []string) bool {
	lower := strings.ToLower(file)
	stem := strings.TrimSuffix(lower, filepath.Ext(lower))
	return slices.Contains(wanted, lower) || slices.Contains(wanted, stem)
}

// HTTPDiscoverer fetches assets from a base URL with range requests.
// The asset name is joined to the base URL as the final path segment.
type HTTPDiscoverer struct {
	baseURL string
	opts    []corehttp.Option
}

// NewHTTPDiscoverer returns a discoverer that loads from baseURL. opts are
// passed to every source it creates.
func NewHTTPDiscoverer(baseURL string, opts ...corehttp.Option) *HTTPDiscoverer {
	return &HTTPDiscoverer{baseURL: baseURL, opts: opts}
}

// Discover implements Discoverer. Requests made by the returned source are
// bound to ctx.
func (d *HTTPDiscoverer) Discover(ctx context.Context, name string, _ []string) (ByteSource, error) {
	u, err := url.JoinPath(d.baseURL, name)
	if err != nil {
		return nil, fmt.Errorf("build url for %s: %w", name, err)
	}
	opts := append(slices.Clone(d.opts), corehttp.WithContext(ctx))
	src, err := corehttp.NewSource(u, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAssetNotFound, u, err)
	}
	return src, nil
}
