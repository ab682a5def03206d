package testutil

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/unitypack/core/internal/unitytype"
)

// Block is one block of a UnityFS payload.
type Block struct {
	Data   []byte
	Method unitytype.Compression
}

// Entry is one directory node of a UnityFS bundle. Offsets are relative to
// the concatenated uncompressed block payload.
type Entry struct {
	Name   string
	Offset int64
	Size   int64
	Status uint32
}

// FSBundle describes a UnityFS bundle to encode.
type FSBundle struct {
	Format     int32
	Generator  string
	Engine     string
	GUID       uuid.UUID
	MetaMethod unitytype.Compression
	MetaAtEnd  bool
	Blocks     []Block
	Entries    []Entry
}

// Split partitions payload into stored blocks of the given sizes. The last
// block takes any remainder.
func Split(payload []byte, sizes ...int) []Block {
	var blocks []Block
	off := 0
	for i, n := range sizes {
		if i == len(sizes)-1 {
			n = len(payload) - off
		}
		blocks = append(blocks, Block{Data: payload[off : off+n]})
		off += n
	}
	return blocks
}

// Compress encodes src with method. Methods without an encoder here are
// returned unchanged.
func Compress(method unitytype.Compression, src []byte) ([]byte, error) {
	switch method {
	case unitytype.CompressionLZ4, unitytype.CompressionLZ4HC:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("lz4: %d bytes are incompressible", len(src))
		}
		return dst[:n], nil
	case unitytype.CompressionZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(src); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return src, nil
	}
}

// Bytes encodes the bundle.
func (b FSBundle) Bytes() ([]byte, error) {
	meta := BE()
	meta.Raw(b.GUID[:])
	var payload []byte
	meta.I32(int32(len(b.Blocks)))
	for _, blk := range b.Blocks {
		enc, err := Compress(blk.Method, blk.Data)
		if err != nil {
			return nil, err
		}
		meta.U32(uint32(len(blk.Data))).U32(uint32(len(enc))).U16(uint16(blk.Method))
		payload = append(payload, enc...)
	}
	meta.I32(int32(len(b.Entries)))
	for _, e := range b.Entries {
		meta.I64(e.Offset).I64(e.Size).U32(e.Status).CString(e.Name)
	}

	encMeta, err := Compress(b.MetaMethod, meta.Bytes())
	if err != nil {
		return nil, err
	}

	format := b.Format
	if format == 0 {
		format = 6
	}
	head := BE()
	head.CString(string(unitytype.SignatureFS)).I32(format)
	head.CString(b.Generator).CString(b.Engine)
	flags := uint32(b.MetaMethod)
	if b.MetaAtEnd {
		flags |= 0x80
	}
	total := head.Len() + 8 + 4 + 4 + 4 + len(encMeta) + len(payload)
	head.I64(int64(total)).U32(uint32(len(encMeta))).U32(uint32(meta.Len())).U32(flags)
	if b.MetaAtEnd {
		head.Raw(payload).Raw(encMeta)
	} else {
		head.Raw(encMeta).Raw(payload)
	}
	return head.Bytes(), nil
}

// RawAsset is one asset stored in a raw bundle.
type RawAsset struct {
	Name string
	Data []byte
}

// RawBundle describes a UnityRaw or UnityWeb bundle to encode.
type RawBundle struct {
	Signature unitytype.Signature
	Format    int32
	Generator string
	Engine    string
	Name      string
	Assets    []RawAsset
}

// rawMinHeader is the header size at which the extended raw fields appear.
const rawMinHeader = 60

// Bytes encodes the bundle. The directory and asset data follow the header;
// asset offsets are relative to the header size.
func (b RawBundle) Bytes() []byte {
	sig := b.Signature
	if sig == "" {
		sig = unitytype.SignatureRaw
	}
	format := b.Format
	if format == 0 {
		format = 3
	}

	dir := BE()
	dir.I32(int32(len(b.Assets)))
	dirLen := 4
	for _, a := range b.Assets {
		dirLen += len(a.Name) + 1 + 8
	}
	var data []byte
	for _, a := range b.Assets {
		dir.CString(a.Name).U32(uint32(dirLen + len(data))).U32(uint32(len(a.Data)))
		data = append(data, a.Data...)
	}

	head := BE()
	head.CString(string(sig)).I32(format).CString(b.Generator).CString(b.Engine)
	fixed := head.Len() + 4*4 + 4 + 4 + 8 + 4 + 1 + len(b.Name) + 1
	headerSize := max(fixed, rawMinHeader)
	bodyLen := uint32(dir.Len() + len(data))

	head.U32(uint32(headerSize) + bodyLen) // file size
	head.I32(int32(headerSize))
	head.I32(int32(len(b.Assets))) // file count
	head.I32(1)                    // bundle count
	if format >= 2 {
		head.U32(bodyLen)
	}
	if format >= 3 {
		head.U32(bodyLen)
	}
	head.U32(bodyLen) // compressed file size
	head.U32(0)       // asset header size
	head.I32(0).U8(0).CString(b.Name)
	head.PadTo(headerSize)
	head.Raw(dir.Bytes()).Raw(data)
	return head.Bytes()
}
