package unitypack

import (
	"encoding/binary"
	"fmt"

	"github.com/tidwall/btree"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/typetree"
)

// guidSize is the width of reference GUIDs.
const guidSize = 16

func (a *Asset) load() error {
	if a.IsResource() {
		return fmt.Errorf("%w: %s is a resource file, not a serialized file", ErrMalformedContainer, a.Name)
	}
	r, err := a.reader()
	if err != nil {
		return err
	}
	if err := a.readHeader(r); err != nil {
		return fmt.Errorf("asset %s header: %w", a.Name, err)
	}

	strs, err := a.cfg.refData().Strings()
	if err != nil {
		return fmt.Errorf("asset %s: %w", a.Name, err)
	}
	if a.schema, err = typetree.LoadMetadata(r, a.format, strs); err != nil {
		return fmt.Errorf("asset %s type schema: %w", a.Name, err)
	}

	if a.format >= 7 && a.format <= 13 {
		long, err := r.ReadU32()
		if err != nil {
			return fmt.Errorf("asset %s: %w", a.Name, err)
		}
		a.longIDs = long != 0
	}

	if err := a.readObjects(r); err != nil {
		return fmt.Errorf("asset %s object table: %w", a.Name, err)
	}
	if a.format >= 11 {
		if err := a.readAdds(r); err != nil {
			return fmt.Errorf("asset %s adds: %w", a.Name, err)
		}
	}
	if a.format >= 6 {
		if err := a.readRefs(r); err != nil {
			return fmt.Errorf("asset %s references: %w", a.Name, err)
		}
	}

	trailer, err := r.ReadCString()
	if err != nil {
		return fmt.Errorf("asset %s trailer: %w", a.Name, err)
	}
	if trailer != "" {
		return fmt.Errorf("%w: asset %s has trailing data %q at offset %d",
			ErrMalformedContainer, a.Name, trailer, r.Tell())
	}
	return nil
}

func (a *Asset) readHeader(r *cursor.Reader) error {
	r.SetOrder(binary.BigEndian)
	var err error
	if a.metadataSize, err = r.ReadU32(); err != nil {
		return err
	}
	if a.fileSize, err = r.ReadU32(); err != nil {
		return err
	}
	if a.format, err = r.ReadU32(); err != nil {
		return err
	}
	if a.dataOffset, err = r.ReadU32(); err != nil {
		return err
	}
	a.order = binary.BigEndian
	if a.format >= 9 {
		endian, err := r.ReadU32()
		if err != nil {
			return err
		}
		if endian == 0 {
			a.order = binary.LittleEndian
		}
	}
	r.SetOrder(a.order)
	return nil
}

// readID reads an object id as stored in the object table and adds list.
func (a *Asset) readID(r *cursor.Reader) (int64, error) {
	if a.longIDs || a.format >= 14 {
		return r.ReadI64()
	}
	v, err := r.ReadI32()
	return int64(v), err
}

// checkCount rejects counts that cannot fit in the remaining bytes at
// minSize bytes per entry.
func checkCount(r *cursor.Reader, what string, count uint32, minSize int64) error {
	if rem := r.Remaining(); rem >= 0 && int64(count)*minSize > rem {
		return fmt.Errorf("%w: %d %s at offset %d, %d bytes remain",
			ErrMalformedContainer, count, what, r.Tell(), rem)
	}
	return nil
}

func (a *Asset) readObjects(r *cursor.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if err := checkCount(r, "objects", count, 12); err != nil {
		return err
	}

	a.objects = btree.NewMap[int64, *ObjectInfo](0)
	a.typeNames = make(map[int32]string)
	resolved := make(map[int32]*TypeNode)
	for i := range count {
		obj, err := a.readObject(r)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		obj.tree = a.resolveType(obj, resolved)
		if prev, replaced := a.objects.Set(obj.PathID, obj); replaced {
			a.log().Warn("duplicate path id",
				"asset", a.Name, "path_id", obj.PathID,
				"previous_offset", prev.DataOffset, "offset", obj.DataOffset)
		}
	}
	return nil
}

func (a *Asset) readObject(r *cursor.Reader) (*ObjectInfo, error) {
	if a.format >= 14 {
		if err := r.Align(); err != nil {
			return nil, err
		}
	}
	obj := &ObjectInfo{asset: a}
	var err error
	if obj.PathID, err = a.readID(r); err != nil {
		return nil, err
	}
	offset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	obj.DataOffset = int64(offset) + int64(a.dataOffset)
	if obj.Size, err = r.ReadU32(); err != nil {
		return nil, err
	}
	typeField, err := r.ReadI32()
	if err != nil {
		return nil, err
	}

	if a.format >= 17 {
		classID, ok := a.schema.ClassAt(typeField)
		if !ok {
			return nil, fmt.Errorf("%w: type index %d outside %d schema entries",
				ErrMalformedContainer, typeField, len(a.schema.ClassIDs))
		}
		obj.TypeID = classID
		obj.ClassID = classID
		if classID < 0 {
			obj.ClassID = typetree.ClassMonoBehaviour
		}
		return obj, nil
	}

	obj.TypeID = typeField
	classID, err := r.ReadI16()
	if err != nil {
		return nil, err
	}
	obj.ClassID = int32(classID)
	switch {
	case a.format <= 10:
		destroyed, err := r.ReadI16()
		if err != nil {
			return nil, err
		}
		obj.Destroyed = destroyed != 0
	default:
		if obj.ScriptIndex, err = r.ReadI16(); err != nil {
			return nil, err
		}
		if a.format >= 15 {
			if obj.Stripped, err = r.ReadU8(); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

// resolveType finds the tree for an object: the asset's own tree for its type
// id, then the default tree for its class id. Results are shared per type id.
func (a *Asset) resolveType(obj *ObjectInfo, resolved map[int32]*TypeNode) *TypeNode {
	if tree, ok := resolved[obj.TypeID]; ok {
		return tree
	}
	tree := a.schema.Tree(obj.TypeID)
	if tree == nil {
		var err error
		tree, err = a.cfg.defaults().Tree(obj.ClassID)
		if err != nil {
			a.log().Warn("default type schema unavailable", "asset", a.Name, "error", err)
		}
	}
	if tree == nil {
		a.log().Warn("no type tree for object class",
			"asset", a.Name, "type_id", obj.TypeID, "class_id", obj.ClassID, "path_id", obj.PathID)
	}
	resolved[obj.TypeID] = tree
	return tree
}

func (a *Asset) readAdds(r *cursor.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if err := checkCount(r, "adds", count, 8); err != nil {
		return err
	}
	a.adds = make([]Add, 0, count)
	for range count {
		if a.format >= 14 {
			if err := r.Align(); err != nil {
				return err
			}
		}
		id, err := a.readID(r)
		if err != nil {
			return err
		}
		v, err := r.ReadI32()
		if err != nil {
			return err
		}
		a.adds = append(a.adds, Add{ID: id, Value: v})
	}
	return nil
}

func (a *Asset) readRefs(r *cursor.Reader) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	if err := checkCount(r, "references", count, guidSize+6); err != nil {
		return err
	}
	a.refs = make([]*AssetRef, 0, count)
	for range count {
		ref := &AssetRef{source: a}
		if ref.AssetPath, err = r.ReadCString(); err != nil {
			return err
		}
		guid, err := r.ReadBytes(guidSize)
		if err != nil {
			return err
		}
		ref.GUID = resolveUUID(guid)
		if ref.Type, err = r.ReadI32(); err != nil {
			return err
		}
		if ref.FilePath, err = r.ReadCString(); err != nil {
			return err
		}
		a.refs = append(a.refs, ref)
	}
	return nil
}
