package unitypack

import (
	"fmt"
	"strings"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/sizing"
)

// maxArrayPrealloc caps the capacity reserved up front for array elements.
const maxArrayPrealloc = 1 << 12

// valueReader reads values from one asset's byte region following its type
// trees. It is used by a single goroutine for a single read.
type valueReader struct {
	asset  *Asset
	r      *cursor.Reader
	format uint32
}

func (a *Asset) valueReader(offset int64) (*valueReader, error) {
	r, err := a.reader()
	if err != nil {
		return nil, err
	}
	r.SetOrder(a.order)
	if err := r.Seek(offset); err != nil {
		return nil, err
	}
	return &valueReader{asset: a, r: r, format: a.format}, nil
}

// readID reads the path id of a pointer.
func (vr *valueReader) readID() (int64, error) {
	if vr.format >= 14 {
		return vr.r.ReadI64()
	}
	v, err := vr.r.ReadI32()
	return int64(v), err
}

func (vr *valueReader) read(node *TypeNode) (Value, error) {
	v, align, err := vr.dispatch(node)
	if err != nil {
		return Value{}, err
	}
	if align || node.PostAlign() {
		if err := vr.r.Align(); err != nil {
			return Value{}, err
		}
	}
	return v, nil
}

// dispatch reads node and reports whether the read requires trailing
// alignment on top of the node's own flag.
func (vr *valueReader) dispatch(node *TypeNode) (Value, bool, error) {
	r := vr.r
	switch node.Type {
	case "bool":
		b, err := r.ReadBool()
		return BoolValue(b), false, err
	case "SInt8":
		v, err := r.ReadI8()
		return IntValue(int64(v), 8), false, err
	case "UInt8", "char":
		v, err := r.ReadU8()
		return UintValue(uint64(v), 8), false, err
	case "SInt16", "short":
		v, err := r.ReadI16()
		return IntValue(int64(v), 16), false, err
	case "UInt16", "unsigned short":
		v, err := r.ReadU16()
		return UintValue(uint64(v), 16), false, err
	case "SInt32", "int":
		v, err := r.ReadI32()
		return IntValue(int64(v), 32), false, err
	case "UInt32", "unsigned int", "Type*":
		v, err := r.ReadU32()
		return UintValue(uint64(v), 32), false, err
	case "SInt64", "long long", "FileSize":
		v, err := r.ReadI64()
		return IntValue(v, 64), false, err
	case "UInt64", "unsigned long long":
		v, err := r.ReadU64()
		return UintValue(v, 64), false, err
	case "float":
		v, err := r.ReadF32()
		return FloatValue(float64(v), 32), false, err
	case "double":
		v, err := r.ReadF64()
		return FloatValue(v, 64), false, err
	case "string":
		s, err := r.ReadString()
		if err != nil {
			return Value{}, false, err
		}
		align := len(node.Children) > 0 && node.Children[0].PostAlign()
		return StringValue(s), align, nil
	}

	first := node
	if !node.IsArray {
		first = nil
		if len(node.Children) > 0 {
			first = node.Children[0]
		}
	}

	switch {
	case strings.Contains(node.Type, "PPtr<"):
		return vr.readPointer(node)
	case first != nil && first.IsArray:
		v, err := vr.readArray(first)
		return v, first.PostAlign(), err
	case node.Type == "pair":
		if len(node.Children) != 2 {
			return Value{}, false, schemaError(node, "pair has %d children", len(node.Children))
		}
		a, err := vr.read(node.Children[0])
		if err != nil {
			return Value{}, false, err
		}
		b, err := vr.read(node.Children[1])
		if err != nil {
			return Value{}, false, err
		}
		return PairValue(a, b), false, nil
	default:
		v, err := vr.readRecord(node)
		return v, false, err
	}
}

func (vr *valueReader) readPointer(node *TypeNode) (Value, bool, error) {
	fileID, err := vr.r.ReadI32()
	if err != nil {
		return Value{}, false, err
	}
	pathID, err := vr.readID()
	if err != nil {
		return Value{}, false, err
	}
	p := NewObjectPointer(vr.asset, node.Type, fileID, pathID)
	if p.IsNull() {
		return Value{}, false, nil
	}
	return PointerValue(p), false, nil
}

func (vr *valueReader) readArray(array *TypeNode) (Value, error) {
	if len(array.Children) < 2 {
		return Value{}, schemaError(array, "array has %d children", len(array.Children))
	}
	count, err := vr.r.ReadU32()
	if err != nil {
		return Value{}, err
	}
	elem := array.Children[1]
	if elem.Type == "char" || elem.Type == "UInt8" {
		b, err := vr.r.ReadBytes(int(count))
		if err != nil {
			return Value{}, err
		}
		return BytesValue(b), nil
	}
	if rem := vr.r.Remaining(); rem >= 0 && elem.Size > 0 {
		need, ok := sizing.MulInt64(int64(count), int64(elem.Size))
		if !ok || need > rem {
			return Value{}, fmt.Errorf("%w: %d array elements of %d bytes at offset %d, %d bytes remain",
				ErrTruncatedInput, count, elem.Size, vr.r.Tell(), rem)
		}
	}
	// Elements without a fixed size may be zero-width, so count alone does
	// not bound the payload.
	items := make([]Value, 0, min(count, maxArrayPrealloc))
	for range count {
		v, err := vr.read(elem)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	return ListValue(items), nil
}

func (vr *valueReader) readRecord(node *TypeNode) (Value, error) {
	rec := NewRecord(node.Type)
	for _, child := range node.Children {
		v, err := vr.read(child)
		if err != nil {
			return Value{}, err
		}
		rec.Set(child.Name, v)
	}
	if fn, ok := vr.asset.cfg.registry.Lookup(node.Type); ok {
		native, err := fn(vr.asset, rec)
		if err != nil {
			vr.asset.log().Debug("materializer failed",
				"asset", vr.asset.Name, "type", node.Type, "error", err)
		} else {
			rec.Native = native
		}
	}
	return RecordValue(rec), nil
}
