// Package decompress implements the block decompression primitive used by
// bundle metadata and archive blocks.
package decompress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/unitypack/core/internal/unitytype"
)

// Upper bounds on how far a compressed block can expand. A declared size
// beyond the bound cannot be produced by the stream and is rejected before
// the output buffer is allocated.
const (
	maxLZ4Ratio     = 255
	maxDeflateRatio = 1032
	ratioSlack      = 64
)

// Pool decompresses blocks and keeps reusable zlib readers.
// A Pool is safe for concurrent use; the zero value is not usable, use NewPool.
type Pool struct {
	zlib *sync.Pool
}

// NewPool creates a decompression pool.
func NewPool() *Pool {
	return &Pool{zlib: &sync.Pool{}}
}

// Decompress returns size bytes decoded from src using method.
//
// LZMA, LZHAM and LZFSE are recognized but not implemented and fail with
// ErrUnsupportedCompression. Methods outside the known set fail with
// ErrMalformedContainer.
func (p *Pool) Decompress(method unitytype.Compression, src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative uncompressed size %d", unitytype.ErrMalformedContainer, size)
	}
	switch method {
	case unitytype.CompressionNone:
		if len(src) != size {
			return nil, fmt.Errorf("%w: stored block is %d bytes, expected %d",
				unitytype.ErrMalformedContainer, len(src), size)
		}
		return src, nil
	case unitytype.CompressionLZ4, unitytype.CompressionLZ4HC:
		if err := checkExpansion(method, src, size, maxLZ4Ratio); err != nil {
			return nil, err
		}
		return decompressLZ4(src, size)
	case unitytype.CompressionZlib:
		if err := checkExpansion(method, src, size, maxDeflateRatio); err != nil {
			return nil, err
		}
		return p.decompressZlib(src, size)
	case unitytype.CompressionLZMA, unitytype.CompressionLZHAM, unitytype.CompressionLZFSE:
		return nil, fmt.Errorf("%w: %s", unitytype.ErrUnsupportedCompression, method)
	default:
		return nil, fmt.Errorf("%w: unknown compression method %s", unitytype.ErrMalformedContainer, method)
	}
}

func checkExpansion(method unitytype.Compression, src []byte, size int, ratio int64) error {
	if limit := int64(len(src))*ratio + ratioSlack; int64(size) > limit {
		return fmt.Errorf("%w: %s block of %d bytes cannot expand to %d bytes",
			unitytype.ErrMalformedContainer, method, len(src), size)
	}
	return nil
}

func decompressLZ4(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: lz4: %w", unitytype.ErrMalformedContainer, err)
	}
	if n != size {
		return nil, fmt.Errorf("%w: lz4 produced %d bytes, expected %d", unitytype.ErrMalformedContainer, n, size)
	}
	return dst, nil
}

func (p *Pool) decompressZlib(src []byte, size int) ([]byte, error) {
	zr, release, err := p.getZlib(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib: %w", unitytype.ErrMalformedContainer, err)
	}
	defer release()

	dst := make([]byte, size)
	n, err := io.ReadFull(zr, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib produced %d bytes, expected %d: %w",
			unitytype.ErrMalformedContainer, n, size, err)
	}
	return dst, nil
}

// getZlib returns a zlib reader over r and a release function that returns
// the reader to the pool.
func (p *Pool) getZlib(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil || p.zlib == nil {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	}

	if value := p.zlib.Get(); value != nil {
		if zr, ok := value.(io.ReadCloser); ok {
			if resetter, ok := zr.(zlib.Resetter); ok && resetter.Reset(r, nil) == nil {
				return zr, func() { p.zlib.Put(zr) }, nil
			}
		}
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.zlib.Put(zr) }, nil
}
