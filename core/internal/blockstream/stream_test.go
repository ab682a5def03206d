package blockstream

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/decompress"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

// storedStream partitions data into uncompressed blocks of the given sizes,
// prefixed by a few junk bytes that the stream must skip.
func storedStream(t testing.TB, data []byte, sizes []int) *Stream {
	t.Helper()
	prefix := []byte{0xAA, 0xBB, 0xCC}
	backing := cursor.FromBytes(append(append([]byte{}, prefix...), data...))
	require.NoError(t, backing.Seek(int64(len(prefix))))

	blocks := make([]Block, len(sizes))
	for i, n := range sizes {
		blocks[i] = Block{UncompressedSize: uint32(n), CompressedSize: uint32(n)}
	}
	s, err := New(backing, blocks, decompress.NewPool().Decompress)
	require.NoError(t, err)
	return s
}

func TestStreamReadAcrossBlocks(t *testing.T) {
	t.Parallel()

	data := pattern(96)
	s := storedStream(t, data, []int{64, 32})
	assert.Equal(t, int64(96), s.Size())

	_, err := s.Seek(5, io.SeekStart)
	require.NoError(t, err)
	got, err := s.ReadBytes(90)
	require.NoError(t, err)
	assert.Equal(t, data[5:95], got)

	pos, err := s.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(95), pos)
}

func TestStreamSeekModes(t *testing.T) {
	t.Parallel()

	data := pattern(40)
	s := storedStream(t, data, []int{10, 0, 30})

	pos, err := s.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(36), pos)

	pos, err = s.Seek(-26, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos)

	b, err := s.ReadBytes(2)
	require.NoError(t, err)
	assert.Equal(t, data[10:12], b)

	_, err = s.Seek(-100, io.SeekCurrent)
	assert.Error(t, err)
	_, err = s.Seek(0, 42)
	assert.Error(t, err)
}

func TestStreamTruncated(t *testing.T) {
	t.Parallel()

	s := storedStream(t, pattern(16), []int{8, 8})
	_, err := s.Seek(10, io.SeekStart)
	require.NoError(t, err)

	_, err = s.ReadBytes(7)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unitytype.ErrTruncatedInput))

	pos, err := s.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos, "failed read must not move the stream")

	n, err := s.Read(make([]byte, 32))
	assert.Equal(t, 6, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamSectionReader(t *testing.T) {
	t.Parallel()

	data := pattern(200)
	s := storedStream(t, data, []int{50, 50, 50, 50})
	sec := io.NewSectionReader(s, 45, 110)

	got, err := io.ReadAll(sec)
	require.NoError(t, err)
	assert.Equal(t, data[45:155], got)
}

func TestStreamUnsupportedBlock(t *testing.T) {
	t.Parallel()

	backing := cursor.FromBytes([]byte{1, 2, 3, 4})
	blocks := []Block{{UncompressedSize: 8, CompressedSize: 4, Flags: uint16(unitytype.CompressionLZMA)}}
	s, err := New(backing, blocks, decompress.NewPool().Decompress)
	require.NoError(t, err)

	_, err = s.ReadBytes(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unitytype.ErrUnsupportedCompression))
}

type countingCache struct {
	mu   sync.Mutex
	data map[string][]byte
	hits int
}

func (c *countingCache) Get(key []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[string(key)]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *countingCache) Put(key, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = append([]byte(nil), data...)
	return nil
}

func (c *countingCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

func (c *countingCache) MaxBytes() int64            { return 0 }
func (c *countingCache) SizeBytes() int64           { return 0 }
func (c *countingCache) Prune(int64) (int64, error) { return 0, nil }

func TestStreamLZ4WithCache(t *testing.T) {
	t.Parallel()

	first := bytes.Repeat([]byte("first block "), 20)
	second := bytes.Repeat([]byte("second block "), 20)

	var payload []byte
	var blocks []Block
	for _, plain := range [][]byte{first, second} {
		dst := make([]byte, lz4.CompressBlockBound(len(plain)))
		n, err := lz4.CompressBlock(plain, dst, nil)
		require.NoError(t, err)
		require.NotZero(t, n)
		payload = append(payload, dst[:n]...)
		blocks = append(blocks, Block{
			UncompressedSize: uint32(len(plain)),
			CompressedSize:   uint32(n),
			Flags:            uint16(unitytype.CompressionLZ4HC) | 0x40,
		})
	}

	c := &countingCache{data: map[string][]byte{}}
	s, err := New(cursor.FromBytes(payload), blocks, decompress.NewPool().Decompress, WithBlockCache(c))
	require.NoError(t, err)

	want := append(append([]byte{}, first...), second...)
	got := make([]byte, len(want))
	_, err = s.ReadAt(got, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, c.data, 2)

	// Jumping back to the first block decodes it again through the cache.
	_, err = s.ReadAt(got[:10], 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
}

func TestStreamBlockBoundaryProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("range reads match slicing the unpartitioned buffer", prop.ForAll(
		func(sizes []int, offPct, lenPct int) bool {
			total := 0
			for _, n := range sizes {
				total += n
			}
			data := pattern(total)
			s := storedStream(t, data, sizes)

			off := total * offPct / 100
			length := (total - off) * lenPct / 100
			if _, err := s.Seek(int64(off), io.SeekStart); err != nil {
				return false
			}
			got, err := s.ReadBytes(length)
			if err != nil {
				return false
			}
			return bytes.Equal(got, data[off:off+length])
		},
		gen.SliceOfN(6, gen.IntRange(0, 97)),
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
