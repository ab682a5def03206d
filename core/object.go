package unitypack

import (
	"fmt"

	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/refdata"
)

// ObjectInfo describes one entry of an asset's object table.
type ObjectInfo struct {
	PathID int64
	// DataOffset is the absolute offset of the object data within the asset.
	DataOffset int64
	Size       uint32
	TypeID     int32
	ClassID    int32

	Destroyed   bool  // formats 10 and older
	ScriptIndex int16 // formats 11 to 16
	Stripped    uint8 // formats 15 and 16

	asset *Asset
	tree  *TypeNode
}

// Asset returns the asset holding the object.
func (o *ObjectInfo) Asset() *Asset {
	return o.asset
}

// Type returns the root of the object's type tree, or nil when no tree
// could be found for its class.
func (o *ObjectInfo) Type() *TypeNode {
	return o.tree
}

// TypeName returns the object's class name.
//
// Built-in classes are named from the reference class table. Script objects
// are named after the class of their MonoScript. Anything else falls back to
// the root type of the object's tree.
func (o *ObjectInfo) TypeName() string {
	if o.TypeID > 0 {
		if name, ok := o.asset.cfg.refData().ClassName(o.TypeID); ok {
			return name
		}
	}

	a := o.asset
	a.typeMu.Lock()
	name, ok := a.typeNames[o.TypeID]
	a.typeMu.Unlock()
	if ok {
		return name
	}

	name = o.scriptClassName()
	if name == "" {
		switch {
		case o.tree != nil:
			name = o.tree.Type
		default:
			name = refdata.UnknownClassName(o.TypeID)
		}
	}
	a.typeMu.Lock()
	a.typeNames[o.TypeID] = name
	a.typeMu.Unlock()
	return name
}

func (o *ObjectInfo) scriptClassName() string {
	if o.TypeID >= 0 || o.tree == nil || o.tree.Child("m_Script") == nil {
		return ""
	}
	v, err := o.Read()
	if err != nil {
		return ""
	}
	script, err := v.Field("m_Script").Resolve()
	if err != nil {
		return ""
	}
	return script.Field("m_ClassName").Str()
}

// Read deserializes the object. Pointers inside the value are left
// unresolved; use ObjectPointer.Resolve or ReadDeep to follow them.
func (o *ObjectInfo) Read() (Value, error) {
	if o.tree == nil {
		return Value{}, fmt.Errorf("%w: object %d in %s (type %d, class %d)",
			ErrSchemaMissing, o.PathID, o.asset.Name, o.TypeID, o.ClassID)
	}
	vr, err := o.asset.valueReader(o.DataOffset)
	if err != nil {
		return Value{}, err
	}
	v, err := vr.read(o.tree)
	if err != nil {
		return Value{}, fmt.Errorf("read object %d in %s at offset %d: %w",
			o.PathID, o.asset.Name, o.DataOffset, err)
	}
	return v, nil
}

// Bytes returns the object's raw serialized bytes.
func (o *ObjectInfo) Bytes() ([]byte, error) {
	return o.asset.ReadRaw(o.DataOffset, int64(o.Size))
}

// ReadDeep deserializes the object and replaces every pointer in the result
// with the value it refers to, recursively. Null and dangling pointers become
// the zero Value. A pointer back to an object that is still being expanded
// fails with ErrCyclicReference.
func (o *ObjectInfo) ReadDeep() (Value, error) {
	d := &deepReader{
		active: make(map[objectKey]bool),
		done:   make(map[objectKey]Value),
	}
	return d.object(o)
}

func (o *ObjectInfo) String() string {
	return fmt.Sprintf("<ObjectInfo %s path_id=%d>", o.TypeName(), o.PathID)
}

type objectKey struct {
	asset  *Asset
	pathID int64
}

type deepReader struct {
	active map[objectKey]bool
	done   map[objectKey]Value
}

func (d *deepReader) object(o *ObjectInfo) (Value, error) {
	key := objectKey{asset: o.asset, pathID: o.PathID}
	if d.active[key] {
		return Value{}, fmt.Errorf("%w: object %d in %s", ErrCyclicReference, o.PathID, o.asset.Name)
	}
	if v, ok := d.done[key]; ok {
		return v, nil
	}
	d.active[key] = true
	defer delete(d.active, key)

	v, err := o.Read()
	if err != nil {
		return Value{}, err
	}
	out, err := d.expand(v)
	if err != nil {
		return Value{}, err
	}
	d.done[key] = out
	return out, nil
}

func (d *deepReader) expand(v Value) (Value, error) {
	switch v.Kind() {
	case KindPointer:
		obj, err := v.Pointer().Object()
		if err != nil {
			return Value{}, err
		}
		if obj == nil {
			return Value{}, nil
		}
		return d.object(obj)
	case KindList:
		items := v.List()
		var out []Value
		for i, item := range items {
			if !item.hasPointers() {
				continue
			}
			if out == nil {
				out = append([]Value(nil), items...)
			}
			expanded, err := d.expand(item)
			if err != nil {
				return Value{}, err
			}
			out[i] = expanded
		}
		if out == nil {
			return v, nil
		}
		return ListValue(out), nil
	case KindPair:
		first, second := v.Pair()
		f, err := d.expand(first)
		if err != nil {
			return Value{}, err
		}
		s, err := d.expand(second)
		if err != nil {
			return Value{}, err
		}
		return PairValue(f, s), nil
	case KindRecord:
		rec := v.Record().clone()
		for name, field := range v.Record().All() {
			expanded, err := d.expand(field)
			if err != nil {
				return Value{}, err
			}
			rec.Set(name, expanded)
		}
		return RecordValue(rec), nil
	default:
		return v, nil
	}
}

// hasPointers reports whether v contains a pointer at any depth.
func (v Value) hasPointers() bool {
	switch v.kind {
	case KindPointer:
		return true
	case KindList:
		for _, item := range v.list {
			if item.hasPointers() {
				return true
			}
		}
	case KindPair:
		return v.pair[0].hasPointers() || v.pair[1].hasPointers()
	case KindRecord:
		for _, f := range v.rec.fields {
			if f.hasPointers() {
				return true
			}
		}
	}
	return false
}

// Resolve follows a pointer value. Values of other kinds resolve to the
// zero Value.
func (v Value) Resolve() (Value, error) {
	if v.kind != KindPointer {
		return Value{}, nil
	}
	return v.ptr.Resolve()
}

// schemaError reports a type tree that does not fit the shape its type
// name requires.
func schemaError(node *typetree.Node, format string, args ...any) error {
	return fmt.Errorf("%w: %s %q: %s", ErrMalformedContainer,
		node.Type, node.Name, fmt.Sprintf(format, args...))
}
