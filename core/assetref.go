package unitypack

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// AssetLocator finds the asset named by an external reference.
//
// Implementations return ErrAssetNotFound (possibly wrapped) when no asset
// matches; pointers into such assets then resolve to nothing.
type AssetLocator interface {
	LocateAsset(from *Asset, filePath string) (*Asset, error)
}

// AssetRef is one entry of an asset's external reference table.
type AssetRef struct {
	AssetPath string
	GUID      uuid.UUID
	Type      int32
	FilePath  string

	source *Asset

	mu       sync.Mutex
	resolved *Asset
}

// Source returns the asset whose table holds the reference.
func (r *AssetRef) Source() *Asset {
	return r.source
}

// Resolve locates the referenced asset. A successful result is memoized, so
// every later call returns the same *Asset.
func (r *AssetRef) Resolve() (*Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved != nil {
		return r.resolved, nil
	}

	var (
		target *Asset
		err    error
	)
	if loc := r.source.cfg.locator; loc != nil {
		target, err = loc.LocateAsset(r.source, r.FilePath)
	} else {
		target, err = r.source.locateInBundle(r.FilePath)
	}
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, r.FilePath)
	}
	r.resolved = target
	return target, nil
}

func (r *AssetRef) String() string {
	return fmt.Sprintf("<AssetRef %s %s>", r.FilePath, r.GUID)
}
