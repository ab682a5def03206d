package testutil

import (
	"encoding/binary"

	"github.com/meigma/unitypack/core/internal/typetree"
)

// N builds a type tree node.
func N(typ, name string, size int32, children ...*typetree.Node) *typetree.Node {
	return &typetree.Node{Type: typ, Name: name, Size: size, Index: -1, Children: children}
}

// Aligned sets the post-align flag on n and returns it.
func Aligned(n *typetree.Node) *typetree.Node {
	n.Flags |= 0x4000
	return n
}

// Array marks n as an array node and returns it.
func Array(n *typetree.Node) *typetree.Node {
	n.IsArray = true
	return n
}

// StringNode returns the usual layout of a string field.
func StringNode(name string) *typetree.Node {
	return N("string", name, -1,
		Aligned(Array(N("Array", "Array", -1,
			N("int", "size", 4),
			N("char", "data", 1),
		))),
	)
}

// VectorNode returns the usual layout of a vector field with element elem.
func VectorNode(typ, name string, elem *typetree.Node) *typetree.Node {
	elem.Name = "data"
	return N(typ, name, -1,
		Aligned(Array(N("Array", "Array", -1,
			N("int", "size", 4),
			elem,
		))),
	)
}

// PPtrNode returns a pointer field to class.
func PPtrNode(class, name string) *typetree.Node {
	return N("PPtr<"+class+">", name, 12,
		N("int", "m_FileID", 4),
		N("SInt64", "m_PathID", 8),
	)
}

// EncodeOld writes n in the recursive encoding.
func EncodeOld(w *Writer, n *typetree.Node) {
	w.CString(n.Type).CString(n.Name)
	w.I32(n.Size).I32(n.Index)
	if n.IsArray {
		w.I32(1)
	} else {
		w.I32(0)
	}
	w.I32(n.Version).I32(n.Flags)
	w.I32(int32(len(n.Children)))
	for _, c := range n.Children {
		EncodeOld(w, c)
	}
}

// EncodeBlob writes n in the flat blob encoding with a private string pool.
func EncodeBlob(w *Writer, n *typetree.Node) {
	var (
		records = LE()
		pool    []byte
		offsets = map[string]int32{}
		count   uint32
	)
	str := func(s string) int32 {
		if off, ok := offsets[s]; ok {
			return off
		}
		off := int32(len(pool))
		offsets[s] = off
		pool = append(pool, s...)
		pool = append(pool, 0)
		return off
	}

	var walk func(n *typetree.Node, depth int)
	walk = func(n *typetree.Node, depth int) {
		count++
		records.I16(int16(n.Version)).U8(uint8(depth))
		records.Bool(n.IsArray)
		records.I32(str(n.Type)).I32(str(n.Name))
		records.I32(n.Size).U32(uint32(n.Index)).I32(n.Flags)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)

	w.U32(count).U32(uint32(len(pool)))
	w.Raw(records.Bytes()).Raw(pool)
}

// Encode writes n in the encoding used by format.
func Encode(w *Writer, format uint32, n *typetree.Node) {
	if typetree.UsesBlob(format) {
		EncodeBlob(w, n)
		return
	}
	EncodeOld(w, n)
}

// SchemaType is one class entry in a type schema.
type SchemaType struct {
	ClassID  int32
	ScriptID int16 // written for format 17 and newer
	Tree     *typetree.Node
}

// Schema describes a type schema to encode.
type Schema struct {
	Generator string
	Platform  uint32
	NoTrees   bool
	Types     []SchemaType
}

// EncodeSchema writes s for format into w.
func EncodeSchema(w *Writer, format uint32, s Schema) {
	w.CString(s.Generator).U32(s.Platform)
	if format < 13 {
		w.I32(int32(len(s.Types)))
		for _, t := range s.Types {
			w.I32(t.ClassID)
			Encode(w, format, t.Tree)
		}
		return
	}
	w.Bool(!s.NoTrees)
	w.I32(int32(len(s.Types)))
	for _, t := range s.Types {
		w.I32(t.ClassID)
		if format >= 17 {
			w.U8(0).I16(t.ScriptID)
		}
		hashLen := 16
		if t.ClassID < 0 || (format >= 17 && t.ClassID == typetree.ClassMonoBehaviour) {
			hashLen = 32
		}
		w.Raw(make([]byte, hashLen))
		if !s.NoTrees {
			Encode(w, format, t.Tree)
		}
	}
}

// DefaultStructs encodes s as a default reference schema blob.
func DefaultStructs(s Schema) []byte {
	w := NewWriter(binary.LittleEndian)
	EncodeSchema(w, typetree.DefaultFormat, s)
	return w.Bytes()
}
