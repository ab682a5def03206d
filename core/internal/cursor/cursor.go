// Package cursor provides an endian-aware reader over a seekable byte stream.
//
// A Reader tracks its own position so that alignment and error messages can
// refer to offsets relative to the start of the stream it was created over.
package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/meigma/unitypack/core/internal/unitytype"
)

// sized is implemented by streams that know their total length
// (bytes.Reader, io.SectionReader, blockstream.Stream).
type sized interface {
	Size() int64
}

// cstringChunk is the read size used while scanning for a terminating zero.
const cstringChunk = 64

// Reader reads fixed-width values from an io.ReadSeeker.
//
// The byte order defaults to big-endian. A Reader is not safe for concurrent use.
type Reader struct {
	rs    io.ReadSeeker
	order binary.ByteOrder
	pos   int64
	size  int64 // -1 when unknown
	buf   [8]byte
}

// New returns a big-endian Reader positioned at the stream's current offset.
func New(rs io.ReadSeeker) (*Reader, error) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("cursor: locate stream position: %w", err)
	}
	r := &Reader{rs: rs, order: binary.BigEndian, pos: pos, size: -1}
	if s, ok := rs.(sized); ok {
		r.size = s.Size()
	}
	return r, nil
}

// FromBytes returns a big-endian Reader over an in-memory buffer.
func FromBytes(b []byte) *Reader {
	return &Reader{rs: bytes.NewReader(b), order: binary.BigEndian, size: int64(len(b))}
}

// SetOrder switches the byte order used by subsequent reads.
func (r *Reader) SetOrder(order binary.ByteOrder) {
	r.order = order
}

// Order returns the current byte order.
func (r *Reader) Order() binary.ByteOrder {
	return r.order
}

// Tell returns the current offset.
func (r *Reader) Tell() int64 {
	return r.pos
}

// Size returns the stream length, or -1 when the stream does not report one.
func (r *Reader) Size() int64 {
	return r.size
}

// Remaining returns the number of bytes after the cursor, or -1 when unknown.
func (r *Reader) Remaining() int64 {
	if r.size < 0 {
		return -1
	}
	if r.pos >= r.size {
		return 0
	}
	return r.size - r.pos
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("cursor: seek to negative offset %d", offset)
	}
	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("cursor: seek to %d: %w", offset, err)
	}
	r.pos = offset
	return nil
}

// Skip advances the cursor by n bytes without reading them.
func (r *Reader) Skip(n int64) error {
	return r.Seek(r.pos + n)
}

// Align rounds the cursor up to the next 4-byte boundary.
func (r *Reader) Align() error {
	aligned := (r.pos + 3) &^ 3
	if aligned == r.pos {
		return nil
	}
	return r.Seek(aligned)
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read length %d at offset %d", unitytype.ErrMalformedContainer, n, r.pos)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if rem := r.Remaining(); rem >= 0 && int64(n) > rem {
		return nil, r.truncated(n, rem)
	}
	b := make([]byte, n)
	if err := r.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) readFull(b []byte) error {
	got, err := io.ReadFull(r.rs, b)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			// Restore the stream so the cursor position stays consistent.
			_, _ = r.rs.Seek(r.pos, io.SeekStart) //nolint:errcheck // best effort; the read already failed
			return r.truncated(len(b), int64(got))
		}
		return fmt.Errorf("cursor: read %d bytes at offset %d: %w", len(b), r.pos, err)
	}
	r.pos += int64(got)
	return nil
}

func (r *Reader) truncated(want int, available int64) error {
	return fmt.Errorf("%w: read %d bytes at offset %d, %d available",
		unitytype.ErrTruncatedInput, want, r.pos, available)
}

func (r *Reader) fixed(n int) ([]byte, error) {
	b := r.buf[:n]
	if err := r.readFull(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadU8 reads an unsigned byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads a signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadBool reads a single byte and reports whether it is nonzero.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

// ReadU16 reads an unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.fixed(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// ReadI16 reads a signed 16-bit integer.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadU32 reads an unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadU64 reads an unsigned 64-bit integer.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.fixed(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// ReadI64 reads a signed 64-bit integer.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE 754 single-precision float.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

// ReadF64 reads an IEEE 754 double-precision float.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadString reads a u32 length followed by that many bytes of UTF-8.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(math.MaxInt32) {
		return "", r.truncated(int(n&math.MaxInt32), r.Remaining())
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCString reads bytes up to and excluding a terminating zero byte.
func (r *Reader) ReadCString() (string, error) {
	start := r.pos
	var out []byte
	chunk := make([]byte, cstringChunk)
	for {
		n, err := r.rs.Read(chunk)
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			out = append(out, chunk[:i]...)
			end := start + int64(len(out)) + 1
			if _, serr := r.rs.Seek(end, io.SeekStart); serr != nil {
				return "", fmt.Errorf("cursor: seek to %d: %w", end, serr)
			}
			r.pos = end
			return string(out), nil
		}
		out = append(out, chunk[:n]...)
		if err != nil {
			_, _ = r.rs.Seek(start, io.SeekStart) //nolint:errcheck // best effort; the read already failed
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: unterminated string at offset %d", unitytype.ErrTruncatedInput, start)
			}
			return "", fmt.Errorf("cursor: read string at offset %d: %w", start, err)
		}
	}
}
