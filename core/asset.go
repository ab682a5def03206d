package unitypack

import (
	"encoding/binary"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/typetree"
)

// Add is one entry of an asset's adds list.
type Add struct {
	ID    int64
	Value int32
}

// Asset is one serialized file: a type schema, an object table and a table
// of external references.
//
// The header and tables are parsed once, on first access. Objects are read on
// demand. An Asset is safe for concurrent use.
type Asset struct {
	// Name is the directory entry name, or the file name of a standalone asset.
	Name string

	bundle *Bundle
	cfg    *config
	src    io.ReaderAt
	size   int64

	once    sync.Once
	loadErr error

	metadataSize uint32
	fileSize     uint32
	format       uint32
	dataOffset   uint32
	order        binary.ByteOrder
	schema       *typetree.Metadata
	longIDs      bool
	objects      *btree.Map[int64, *ObjectInfo]
	adds         []Add
	refs         []*AssetRef

	typeMu    sync.Mutex
	typeNames map[int32]string
}

func newAsset(b *Bundle, cfg *config, name string, src io.ReaderAt, size int64) *Asset {
	return &Asset{
		Name:   name,
		bundle: b,
		cfg:    cfg,
		src:    src,
		size:   size,
	}
}

// failedAsset returns an asset whose load always fails with err.
func failedAsset(b *Bundle, cfg *config, name string, err error) *Asset {
	a := newAsset(b, cfg, name, nil, 0)
	a.once.Do(func() { a.loadErr = err })
	return a
}

func (a *Asset) log() *slog.Logger {
	return a.cfg.log()
}

// Bundle returns the bundle holding the asset, or nil for standalone files.
func (a *Asset) Bundle() *Bundle {
	return a.bundle
}

// Size returns the length of the asset's byte region.
func (a *Asset) Size() int64 {
	return a.size
}

// IsResource reports whether the asset is a raw resource file
// (.resource or .resS) rather than a serialized file.
func (a *Asset) IsResource() bool {
	lower := strings.ToLower(a.Name)
	return strings.HasSuffix(lower, ".resource") || strings.HasSuffix(lower, ".ress")
}

// Load parses the asset header, type schema and tables. It runs at most once;
// later calls return the first result.
func (a *Asset) Load() error {
	a.once.Do(func() {
		a.loadErr = a.load()
		if a.loadErr != nil {
			a.log().Debug("asset load failed", "asset", a.Name, "error", a.loadErr)
		}
	})
	return a.loadErr
}

// Format returns the serialized-file format version.
func (a *Asset) Format() (uint32, error) {
	if err := a.Load(); err != nil {
		return 0, err
	}
	return a.format, nil
}

// ByteOrder returns the byte order of the asset's tables and object data.
func (a *Asset) ByteOrder() (binary.ByteOrder, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a.order, nil
}

// Schema returns the asset's type schema.
func (a *Asset) Schema() (*Metadata, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a.schema, nil
}

// DataOffset returns the start of the object data region.
func (a *Asset) DataOffset() (uint32, error) {
	if err := a.Load(); err != nil {
		return 0, err
	}
	return a.dataOffset, nil
}

// Object returns the object with pathID, or nil, nil when there is none.
func (a *Asset) Object(pathID int64) (*ObjectInfo, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	obj, _ := a.objects.Get(pathID)
	return obj, nil
}

// Objects returns all objects ordered by path id.
func (a *Asset) Objects() ([]*ObjectInfo, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	out := make([]*ObjectInfo, 0, a.objects.Len())
	a.objects.Scan(func(_ int64, obj *ObjectInfo) bool {
		out = append(out, obj)
		return true
	})
	return out, nil
}

// All iterates objects ordered by path id. Load errors end the sequence
// early; call Load first to observe them.
func (a *Asset) All() iter.Seq2[int64, *ObjectInfo] {
	return func(yield func(int64, *ObjectInfo) bool) {
		if a.Load() != nil {
			return
		}
		a.objects.Scan(yield)
	}
}

// Len returns the number of objects.
func (a *Asset) Len() (int, error) {
	if err := a.Load(); err != nil {
		return 0, err
	}
	return a.objects.Len(), nil
}

// Adds returns the adds list.
func (a *Asset) Adds() ([]Add, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a.adds, nil
}

// Refs returns the external reference table. Pointers address entry i with
// file index i+1; file index 0 is the asset itself.
func (a *Asset) Refs() ([]*AssetRef, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	return a.refs, nil
}

// Ref returns the reference for a pointer file index (1-based).
// It returns nil, nil for indexes outside the table.
func (a *Asset) Ref(fileID int32) (*AssetRef, error) {
	if err := a.Load(); err != nil {
		return nil, err
	}
	if fileID < 1 || int(fileID) > len(a.refs) {
		return nil, nil
	}
	return a.refs[fileID-1], nil
}

// ReadRaw reads size bytes at offset from the asset's byte region.
// It is the access path for resource files.
func (a *Asset) ReadRaw(offset, size int64) ([]byte, error) {
	if a.src == nil {
		if err := a.Load(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s has no byte source", ErrMalformedContainer, a.Name)
	}
	if offset < 0 || size < 0 || offset > a.size || size > a.size-offset {
		return nil, fmt.Errorf("%w: raw read of %d bytes at offset %d, asset is %d bytes",
			ErrTruncatedInput, size, offset, a.size)
	}
	buf := make([]byte, size)
	n, err := a.src.ReadAt(buf, offset)
	if n < len(buf) {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read %s at offset %d: %w", a.Name, offset, err)
	}
	return buf, nil
}

// ReadValueAt reads a value described by node at offset within the asset.
func (a *Asset) ReadValueAt(node *TypeNode, offset int64) (Value, error) {
	if err := a.Load(); err != nil {
		return Value{}, err
	}
	vr, err := a.valueReader(offset)
	if err != nil {
		return Value{}, err
	}
	return vr.read(node)
}

// reader returns a cursor over the whole asset region.
func (a *Asset) reader() (*cursor.Reader, error) {
	return cursor.New(io.NewSectionReader(a.src, 0, a.size))
}

// locateInBundle finds a sibling asset by the base name of filePath.
func (a *Asset) locateInBundle(filePath string) (*Asset, error) {
	_, name, _ := SplitArchivePath(filePath)
	if a.bundle != nil {
		if target := a.bundle.Asset(name); target != nil {
			return target, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, filePath)
}

// resolveUUID converts a raw 16-byte GUID.
func resolveUUID(b []byte) uuid.UUID {
	var id uuid.UUID
	copy(id[:], b)
	return id
}

func (a *Asset) String() string {
	return fmt.Sprintf("<Asset %s>", a.Name)
}
