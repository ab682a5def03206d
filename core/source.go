package unitypack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ByteSource provides random access to bundle bytes.
//
// Implementations exist for local files, memory and HTTP range requests.
// SourceID must return a stable identifier for the underlying content.
type ByteSource interface {
	io.ReaderAt
	Size() int64
	SourceID() string
}

// FileSource is a ByteSource over a local file.
// os.File has ReadAt but not Size, so the size is cached at open.
type FileSource struct {
	file     *os.File
	size     int64
	sourceID string
}

// OpenFileSource opens path for random access. Close releases the file.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open bundle file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat bundle file: %w", err)
	}
	return &FileSource{file: f, size: info.Size(), sourceID: fileSourceID(path, info)}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *FileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *FileSource) Size() int64 {
	return fs.size
}

// SourceID returns an identifier built from the path, size and mtime.
func (fs *FileSource) SourceID() string {
	return fs.sourceID
}

// Name returns the path the file was opened with.
func (fs *FileSource) Name() string {
	return fs.file.Name()
}

// Close closes the underlying file.
func (fs *FileSource) Close() error {
	return fs.file.Close()
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// MemorySource is a ByteSource over an in-memory buffer.
type MemorySource struct {
	data []byte
	id   string
}

// NewMemorySource returns a source over data, identified by its digest.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data, id: digest.FromBytes(data).String()}
}

// ReadAt implements io.ReaderAt.
func (m *MemorySource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("read at negative offset %d", off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemorySource) Size() int64      { return int64(len(m.data)) }
func (m *MemorySource) SourceID() string { return m.id }

// BundleFile wraps a Bundle with its underlying file handle.
// Close must be called to release file resources.
type BundleFile struct {
	*Bundle
	source *FileSource
}

// Close closes the underlying file.
func (bf *BundleFile) Close() error {
	if bf.source == nil {
		return nil
	}
	err := bf.source.Close()
	bf.source = nil
	return err
}

// OpenFile opens and parses a bundle file.
// The returned BundleFile must be closed to release file resources.
func OpenFile(path string, opts ...Option) (*BundleFile, error) {
	src, err := OpenFileSource(path)
	if err != nil {
		return nil, err
	}
	b, err := Load(src, opts...)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}
	b.Path = path
	return &BundleFile{Bundle: b, source: src}, nil
}
