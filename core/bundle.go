package unitypack

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/meigma/unitypack/core/internal/blockstream"
	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

// flagBlockInfoAtEnd marks FS bundles whose metadata follows the block data.
const flagBlockInfoAtEnd = 0x80

// maxDirectoryEntries bounds block and node counts in bundle metadata.
const maxDirectoryEntries = 1 << 20

// DirectoryEntry describes one asset region inside a bundle payload.
type DirectoryEntry struct {
	Offset int64
	Size   int64
	Status uint32
	Name   string
}

// RawHeader holds the fields of a UnityRaw or UnityWeb header.
type RawHeader struct {
	FileSize               uint32
	HeaderSize             int32
	FileCount              int32
	BundleCount            int32
	BundleSize             uint32
	UncompressedBundleSize uint32
	CompressedFileSize     uint32
	AssetHeaderSize        uint32
}

// Bundle is a parsed asset bundle.
//
// The header, block index and directory are parsed by Load. Assets are
// parsed lazily on first access.
type Bundle struct {
	// Name is the bundle's own name, or the first asset's name when the
	// format records none.
	Name string
	// Path is the file the bundle was loaded from, if any.
	Path             string
	Signature        Signature
	FormatVersion    int32
	GeneratorVersion string
	EngineVersion    string

	// FS variant.
	ArchiveSize int64
	Compression Compression
	Flags       uint32
	GUID        uuid.UUID
	Blocks      []ArchiveBlock
	Entries     []DirectoryEntry

	// Raw variants.
	Raw *RawHeader

	cfg    *config
	source ByteSource
	stream *blockstream.Stream
	assets []*Asset
}

// Load parses a bundle from src.
func Load(src ByteSource, opts ...Option) (*Bundle, error) {
	cfg := newConfig(opts)
	b := &Bundle{cfg: cfg, source: src}

	r, err := cursor.New(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		return nil, err
	}
	sig, err := r.ReadCString()
	if err != nil {
		return nil, fmt.Errorf("bundle signature: %w", err)
	}
	b.Signature = Signature(sig)
	if !b.Signature.Valid() {
		return nil, fmt.Errorf("%w: unknown signature %q", ErrMalformedContainer, sig)
	}
	if b.FormatVersion, err = r.ReadI32(); err != nil {
		return nil, fmt.Errorf("bundle format: %w", err)
	}
	if b.GeneratorVersion, err = r.ReadCString(); err != nil {
		return nil, fmt.Errorf("bundle generator version: %w", err)
	}
	if b.EngineVersion, err = r.ReadCString(); err != nil {
		return nil, fmt.Errorf("bundle engine version: %w", err)
	}

	if b.Signature.BlockArchive() {
		err = b.loadFS(r)
	} else {
		err = b.loadRaw(r)
	}
	if err != nil {
		return nil, err
	}

	if b.Name == "" && len(b.assets) > 0 {
		b.Name = b.assets[0].Name
	}
	b.log().Debug("loaded bundle",
		"bundle", b.Name, "signature", string(b.Signature), "format", b.FormatVersion,
		"assets", len(b.assets), "blocks", len(b.Blocks))
	return b, nil
}

func (b *Bundle) log() *slog.Logger {
	return b.cfg.log()
}

func (b *Bundle) loadFS(r *cursor.Reader) error {
	var err error
	if b.ArchiveSize, err = r.ReadI64(); err != nil {
		return fmt.Errorf("bundle header: %w", err)
	}
	compSize, err := r.ReadU32()
	if err != nil {
		return fmt.Errorf("bundle header: %w", err)
	}
	uncompSize, err := r.ReadU32()
	if err != nil {
		return fmt.Errorf("bundle header: %w", err)
	}
	if b.Flags, err = r.ReadU32(); err != nil {
		return fmt.Errorf("bundle header: %w", err)
	}
	b.Compression = unitytype.CompressionFromFlags(b.Flags)

	dataStart := r.Tell()
	if b.Flags&flagBlockInfoAtEnd != 0 {
		if err := r.Seek(r.Size() - int64(compSize)); err != nil {
			return fmt.Errorf("bundle metadata: %w", err)
		}
	}
	raw, err := r.ReadBytes(int(compSize))
	if err != nil {
		return fmt.Errorf("bundle metadata: %w", err)
	}
	if b.Flags&flagBlockInfoAtEnd == 0 {
		dataStart = r.Tell()
	}

	meta, err := b.cfg.pool.Decompress(b.Compression, raw, int(uncompSize))
	if err != nil {
		return fmt.Errorf("bundle metadata: %w", err)
	}
	if err := b.parseFSMetadata(cursor.FromBytes(meta)); err != nil {
		return fmt.Errorf("bundle metadata: %w", err)
	}

	if err := r.Seek(dataStart); err != nil {
		return err
	}
	var streamOpts []blockstream.Option
	if b.cfg.blockCache != nil {
		streamOpts = append(streamOpts, blockstream.WithBlockCache(b.cfg.blockCache))
	}
	b.stream, err = blockstream.New(r, b.Blocks, b.cfg.pool.Decompress, streamOpts...)
	if err != nil {
		return err
	}

	for _, e := range b.Entries {
		if e.Offset < 0 || e.Size < 0 || e.Offset > b.stream.Size() || e.Size > b.stream.Size()-e.Offset {
			return fmt.Errorf("%w: entry %q [%d, +%d) outside %d byte payload",
				ErrMalformedContainer, e.Name, e.Offset, e.Size, b.stream.Size())
		}
		region := io.NewSectionReader(b.stream, e.Offset, e.Size)
		b.assets = append(b.assets, newAsset(b, b.cfg, e.Name, region, e.Size))
	}
	return nil
}

func (b *Bundle) parseFSMetadata(m *cursor.Reader) error {
	guid, err := m.ReadBytes(guidSize)
	if err != nil {
		return err
	}
	b.GUID = resolveUUID(guid)

	blocks, err := m.ReadI32()
	if err != nil {
		return err
	}
	if blocks < 0 || blocks > maxDirectoryEntries {
		return fmt.Errorf("%w: block count %d", ErrMalformedContainer, blocks)
	}
	b.Blocks = make([]ArchiveBlock, 0, blocks)
	for range blocks {
		var blk ArchiveBlock
		if blk.UncompressedSize, err = m.ReadU32(); err != nil {
			return err
		}
		if blk.CompressedSize, err = m.ReadU32(); err != nil {
			return err
		}
		if blk.Flags, err = m.ReadU16(); err != nil {
			return err
		}
		b.Blocks = append(b.Blocks, blk)
	}

	nodes, err := m.ReadI32()
	if err != nil {
		return err
	}
	if nodes < 0 || nodes > maxDirectoryEntries {
		return fmt.Errorf("%w: directory count %d", ErrMalformedContainer, nodes)
	}
	b.Entries = make([]DirectoryEntry, 0, nodes)
	for range nodes {
		var e DirectoryEntry
		if e.Offset, err = m.ReadI64(); err != nil {
			return err
		}
		if e.Size, err = m.ReadI64(); err != nil {
			return err
		}
		if e.Status, err = m.ReadU32(); err != nil {
			return err
		}
		if e.Name, err = m.ReadCString(); err != nil {
			return err
		}
		b.Entries = append(b.Entries, e)
	}
	return nil
}

func (b *Bundle) loadRaw(r *cursor.Reader) error {
	h := &RawHeader{}
	b.Raw = h
	var err error
	if h.FileSize, err = r.ReadU32(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if h.HeaderSize, err = r.ReadI32(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if h.FileCount, err = r.ReadI32(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if h.BundleCount, err = r.ReadI32(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if b.FormatVersion >= 2 {
		if h.BundleSize, err = r.ReadU32(); err != nil {
			return fmt.Errorf("raw header: %w", err)
		}
	}
	if b.FormatVersion >= 3 {
		if h.UncompressedBundleSize, err = r.ReadU32(); err != nil {
			return fmt.Errorf("raw header: %w", err)
		}
	}
	if h.HeaderSize >= 60 {
		if h.CompressedFileSize, err = r.ReadU32(); err != nil {
			return fmt.Errorf("raw header: %w", err)
		}
		if h.AssetHeaderSize, err = r.ReadU32(); err != nil {
			return fmt.Errorf("raw header: %w", err)
		}
	}
	if _, err := r.ReadI32(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if _, err := r.ReadU8(); err != nil {
		return fmt.Errorf("raw header: %w", err)
	}
	if b.Name, err = r.ReadCString(); err != nil {
		return fmt.Errorf("raw header name: %w", err)
	}

	if h.HeaderSize < 0 || int64(h.HeaderSize) > r.Size() {
		return fmt.Errorf("%w: raw header size %d", ErrMalformedContainer, h.HeaderSize)
	}
	if err := r.Seek(int64(h.HeaderSize)); err != nil {
		return err
	}

	if b.Signature.Compressed() {
		// The whole payload is one LZMA stream, which is not decoded.
		name := b.Name
		if name == "" {
			name = "compressed"
		}
		b.assets = append(b.assets, failedAsset(b, b.cfg, name,
			fmt.Errorf("%w: compressed %s payload", ErrUnsupportedCompression, b.Signature)))
		return nil
	}

	count, err := r.ReadI32()
	if err != nil {
		return fmt.Errorf("raw directory: %w", err)
	}
	if count < 0 || count > maxDirectoryEntries {
		return fmt.Errorf("%w: raw directory count %d", ErrMalformedContainer, count)
	}
	base := int64(h.HeaderSize)
	for range count {
		var e DirectoryEntry
		if e.Name, err = r.ReadCString(); err != nil {
			return fmt.Errorf("raw directory: %w", err)
		}
		off, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("raw directory: %w", err)
		}
		size, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("raw directory: %w", err)
		}
		e.Offset, e.Size = int64(off), int64(size)
		start := base + e.Offset
		if start > b.source.Size() || e.Size > b.source.Size()-start {
			return fmt.Errorf("%w: raw entry %q [%d, +%d) outside %d byte file",
				ErrMalformedContainer, e.Name, start, e.Size, b.source.Size())
		}
		b.Entries = append(b.Entries, e)
		b.assets = append(b.assets, newAsset(b, b.cfg, e.Name,
			io.NewSectionReader(b.source, start, e.Size), e.Size))
	}
	return nil
}

// Assets returns the bundle's assets in directory order, including
// resource files.
func (b *Bundle) Assets() []*Asset {
	return b.assets
}

// Asset returns the asset called name, compared case-insensitively, or nil.
func (b *Bundle) Asset(name string) *Asset {
	for _, a := range b.assets {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// Resource returns the resource file named by a StreamingInfo or
// StreamedResource path. Archive paths match on their base name.
func (b *Bundle) Resource(path string) *Asset {
	_, name, _ := SplitArchivePath(path)
	for _, a := range b.assets {
		if a.IsResource() && strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

// Source returns the byte source the bundle was loaded from.
func (b *Bundle) Source() ByteSource {
	return b.source
}

// PayloadSize returns the decoded payload size of an FS bundle, or the file
// size of a raw bundle.
func (b *Bundle) PayloadSize() int64 {
	if b.stream != nil {
		return b.stream.Size()
	}
	return b.source.Size()
}

func (b *Bundle) String() string {
	return fmt.Sprintf("<Bundle %s (%s)>", b.Name, b.Signature)
}

// LoadAsset returns a standalone serialized file (one that is not inside a
// bundle) read from src. It is parsed on first access.
func LoadAsset(src ByteSource, name string, opts ...Option) *Asset {
	cfg := newConfig(opts)
	return newAsset(nil, cfg, name, src, src.Size())
}
