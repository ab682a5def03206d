package unitypack

import (
	"errors"
	"fmt"
)

// ObjectPointer is a typed reference to an object, possibly in another asset.
//
// FileID selects the target asset: 0 is the asset the pointer was read from,
// any other value indexes that asset's external references starting at 1.
type ObjectPointer struct {
	TypeName string
	FileID   int32
	PathID   int64

	source *Asset
}

// NewObjectPointer returns a pointer read from source.
func NewObjectPointer(source *Asset, typeName string, fileID int32, pathID int64) *ObjectPointer {
	return &ObjectPointer{TypeName: typeName, FileID: fileID, PathID: pathID, source: source}
}

// IsNull reports whether p uses the null encoding (0, 0).
func (p *ObjectPointer) IsNull() bool {
	return p == nil || (p.FileID == 0 && p.PathID == 0)
}

// Source returns the asset the pointer was read from.
func (p *ObjectPointer) Source() *Asset {
	return p.source
}

// Asset returns the asset the pointer refers to.
// It returns nil, nil when the target asset cannot be located.
func (p *ObjectPointer) Asset() (*Asset, error) {
	if p.IsNull() || p.source == nil {
		return nil, nil
	}
	if p.FileID == 0 {
		return p.source, nil
	}
	ref, err := p.source.Ref(p.FileID)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		p.source.log().Debug("pointer file index out of range",
			"asset", p.source.Name, "file_id", p.FileID, "path_id", p.PathID)
		return nil, nil
	}
	target, err := ref.Resolve()
	if errors.Is(err, ErrAssetNotFound) {
		p.source.log().Debug("unresolved reference",
			"asset", p.source.Name, "file_path", ref.FilePath, "path_id", p.PathID)
		return nil, nil
	}
	return target, err
}

// Object returns the object the pointer refers to.
// It returns nil, nil for null pointers and dangling references.
func (p *ObjectPointer) Object() (*ObjectInfo, error) {
	target, err := p.Asset()
	if err != nil || target == nil {
		return nil, err
	}
	return target.Object(p.PathID)
}

// Resolve reads the object the pointer refers to.
// Null pointers and dangling references yield the zero Value.
func (p *ObjectPointer) Resolve() (Value, error) {
	obj, err := p.Object()
	if err != nil || obj == nil {
		return Value{}, err
	}
	return obj.Read()
}

func (p *ObjectPointer) String() string {
	if p == nil {
		return "<nil pointer>"
	}
	return fmt.Sprintf("<%s file_id=%d path_id=%d>", p.TypeName, p.FileID, p.PathID)
}
