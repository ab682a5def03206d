package typetree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/sizing"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

// blobRecordSize is the width of one node record in the blob encoding.
const blobRecordSize = 24

// maxChildren bounds child counts in the recursive encoding.
const maxChildren = 1 << 16

// Load parses one tree in the encoding used by format.
// Negative blob string offsets index into globalStrings.
func Load(r *cursor.Reader, format uint32, globalStrings []byte) (*Node, error) {
	if UsesBlob(format) {
		return LoadBlob(r, globalStrings)
	}
	return LoadOld(r)
}

// LoadOld parses a tree in the recursive encoding.
func LoadOld(r *cursor.Reader) (*Node, error) {
	return loadOld(r, 0)
}

func loadOld(r *cursor.Reader, depth int) (*Node, error) {
	n := newNode()
	var err error
	if n.Type, err = r.ReadCString(); err != nil {
		return nil, err
	}
	if n.Name, err = r.ReadCString(); err != nil {
		return nil, err
	}
	if n.Size, err = r.ReadI32(); err != nil {
		return nil, err
	}
	if n.Index, err = r.ReadI32(); err != nil {
		return nil, err
	}
	isArray, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	n.IsArray = isArray != 0
	if n.Version, err = r.ReadI32(); err != nil {
		return nil, err
	}
	if n.Flags, err = r.ReadI32(); err != nil {
		return nil, err
	}
	count, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > maxChildren {
		return nil, fmt.Errorf("%w: node %q at depth %d has %d children",
			unitytype.ErrMalformedContainer, n.Name, depth, count)
	}
	for range count {
		child, err := loadOld(r, depth+1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}
	return n, nil
}

// LoadBlob parses a tree in the flat blob encoding.
//
// The node and string counts use the reader's byte order; the node records
// themselves are always little-endian.
func LoadBlob(r *cursor.Reader, globalStrings []byte) (*Node, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	poolLen, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	recordBytes, ok := sizing.MulInt64(int64(count), blobRecordSize)
	if !ok {
		return nil, fmt.Errorf("%w: %d blob nodes", unitytype.ErrSizeOverflow, count)
	}
	recordLen, err := sizing.ToInt(recordBytes)
	if err != nil {
		return nil, err
	}
	records, err := r.ReadBytes(recordLen)
	if err != nil {
		return nil, err
	}
	pool, err := r.ReadBytes(int(poolLen))
	if err != nil {
		return nil, err
	}

	strs := stringTable{local: pool, global: globalStrings}
	root := newNode()
	parents := []*Node{root}
	for i := range int(count) {
		rec := records[i*blobRecordSize : (i+1)*blobRecordSize]
		depth := int(rec[2])

		var cur *Node
		if depth == 0 {
			cur = root
		} else {
			if depth > len(parents) {
				return nil, fmt.Errorf("%w: blob node %d jumps to depth %d under depth %d",
					unitytype.ErrMalformedContainer, i, depth, len(parents)-1)
			}
			parents = parents[:depth]
			cur = newNode()
			parent := parents[len(parents)-1]
			parent.Children = append(parent.Children, cur)
			parents = append(parents, cur)
		}

		cur.Version = int32(int16(binary.LittleEndian.Uint16(rec[0:2])))
		cur.IsArray = rec[3] != 0
		cur.Type = strs.get(int32(binary.LittleEndian.Uint32(rec[4:8])))
		cur.Name = strs.get(int32(binary.LittleEndian.Uint32(rec[8:12])))
		cur.Size = int32(binary.LittleEndian.Uint32(rec[12:16]))
		cur.Index = int32(binary.LittleEndian.Uint32(rec[16:20]))
		cur.Flags = int32(binary.LittleEndian.Uint32(rec[20:24]))
	}
	return root, nil
}

// stringTable resolves blob name offsets. Non-negative offsets index the
// tree's own pool; negative offsets, with the sign bit cleared, index the
// shared pool.
type stringTable struct {
	local  []byte
	global []byte
}

func (s stringTable) get(offset int32) string {
	data := s.local
	off := int64(offset)
	if offset < 0 {
		off = int64(uint32(offset) & 0x7fffffff)
		data = s.global
	}
	if off >= int64(len(data)) {
		return nullName
	}
	str := data[off:]
	if end := bytes.IndexByte(str, 0); end >= 0 {
		str = str[:end]
	}
	return string(str)
}
