// Package blockstream presents a sequence of independently compressed blocks
// as one continuous, seekable byte space.
package blockstream

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/meigma/unitypack/core/cache"
	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/sizing"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

// Block describes one entry of an archive's block index.
type Block struct {
	UncompressedSize uint32
	CompressedSize   uint32
	Flags            uint16
}

// Compression returns the method the block was compressed with.
func (b Block) Compression() unitytype.Compression {
	return unitytype.CompressionFromFlags(uint32(b.Flags))
}

// DecodeFunc decodes a compressed block into exactly size bytes.
type DecodeFunc func(method unitytype.Compression, src []byte, size int) ([]byte, error)

// Option configures a Stream.
type Option func(*Stream)

// WithBlockCache stores decoded blocks in c, keyed by a digest of the
// compressed bytes, the method and the declared size.
func WithBlockCache(c cache.BlockCache) Option {
	return func(s *Stream) {
		s.cache = c
	}
}

// Stream is a seekable view over decoded block data.
//
// Only the block under the read position is held in memory. Moving to another
// block discards it and decodes the new one on the next read. A Stream is safe
// for concurrent use: Read and Seek share one position, ReadAt does not touch it.
type Stream struct {
	mu      sync.Mutex
	backing *cursor.Reader
	base    int64
	blocks  []Block
	starts  []int64 // uncompressed start of each block
	offsets []int64 // compressed start of each block, relative to base
	size    int64
	pos     int64
	decode  DecodeFunc
	cache   cache.BlockCache

	cur  int // index of the decoded block in data, -1 when none
	data []byte
}

var (
	_ io.ReadSeeker = (*Stream)(nil)
	_ io.ReaderAt   = (*Stream)(nil)
)

// New builds a Stream over blocks whose compressed bytes start at the
// backing cursor's current position.
func New(backing *cursor.Reader, blocks []Block, decode DecodeFunc, opts ...Option) (*Stream, error) {
	if backing == nil {
		return nil, errors.New("blockstream: nil backing reader")
	}
	if decode == nil {
		return nil, errors.New("blockstream: nil decode func")
	}
	s := &Stream{
		backing: backing,
		base:    backing.Tell(),
		blocks:  blocks,
		starts:  make([]int64, len(blocks)),
		offsets: make([]int64, len(blocks)),
		decode:  decode,
		cur:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	var virt, comp int64
	for i, b := range blocks {
		s.starts[i] = virt
		s.offsets[i] = comp
		var ok bool
		if virt, ok = sizing.AddInt64(virt, int64(b.UncompressedSize)); !ok {
			return nil, fmt.Errorf("%w: block %d uncompressed offset", unitytype.ErrSizeOverflow, i)
		}
		if comp, ok = sizing.AddInt64(comp, int64(b.CompressedSize)); !ok {
			return nil, fmt.Errorf("%w: block %d compressed offset", unitytype.ErrSizeOverflow, i)
		}
	}
	s.size = virt
	return s, nil
}

// Size returns the total decoded length of all blocks.
func (s *Stream) Size() int64 {
	return s.size
}

// Blocks returns the block index the stream was built from.
func (s *Stream) Blocks() []Block {
	return s.blocks
}

// Seek implements io.Seeker over the decoded byte space.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.size + offset
	default:
		return 0, fmt.Errorf("blockstream: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("blockstream: seek to negative offset %d", abs)
	}
	s.pos = abs
	return abs, nil
}

// Read implements io.Reader, crossing block boundaries as needed.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.readAtLocked(p, s.pos)
	s.pos += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blockstream: read at negative offset %d", off)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAtLocked(p, off)
}

// ReadBytes reads exactly n bytes at the current position.
// It fails with ErrTruncatedInput when the stream ends first.
func (s *Stream) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read length %d", unitytype.ErrMalformedContainer, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, n)
	got, err := s.readAtLocked(buf, s.pos)
	if got < n {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: read %d bytes at offset %d, %d available",
				unitytype.ErrTruncatedInput, n, s.pos, got)
		}
		return nil, err
	}
	s.pos += int64(got)
	return buf, nil
}

func (s *Stream) readAtLocked(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) && off < s.size {
		idx := s.locate(off)
		if err := s.load(idx); err != nil {
			return total, err
		}
		n := copy(p[total:], s.data[off-s.starts[idx]:])
		total += n
		off += int64(n)
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// locate returns the index of the block containing virtual offset off.
// Zero-length blocks never own an offset.
func (s *Stream) locate(off int64) int {
	return sort.Search(len(s.blocks), func(i int) bool {
		return s.starts[i]+int64(s.blocks[i].UncompressedSize) > off
	})
}

func (s *Stream) load(idx int) error {
	if idx == s.cur {
		return nil
	}
	b := s.blocks[idx]
	if err := s.backing.Seek(s.base + s.offsets[idx]); err != nil {
		return fmt.Errorf("blockstream: block %d: %w", idx, err)
	}
	src, err := s.backing.ReadBytes(int(b.CompressedSize))
	if err != nil {
		return fmt.Errorf("blockstream: block %d: %w", idx, err)
	}

	method := b.Compression()
	var key []byte
	if s.cache != nil && method != unitytype.CompressionNone {
		key = blockKey(src, method, b.UncompressedSize)
		if data, ok := s.cache.Get(key); ok && len(data) == int(b.UncompressedSize) {
			s.cur, s.data = idx, data
			return nil
		}
	}

	data, err := s.decode(method, src, int(b.UncompressedSize))
	if err != nil {
		return fmt.Errorf("blockstream: block %d at offset %d: %w", idx, s.starts[idx], err)
	}
	if key != nil {
		_ = s.cache.Put(key, data) //nolint:errcheck // cache failures only cost a re-decode
	}
	s.cur, s.data = idx, data
	return nil
}

func blockKey(src []byte, method unitytype.Compression, size uint32) []byte {
	h := blake3.New()
	_, _ = h.Write(src)
	_, _ = h.Write([]byte{
		byte(method),
		byte(size >> 24), byte(size >> 16), byte(size >> 8), byte(size),
	})
	return h.Sum(nil)
}
