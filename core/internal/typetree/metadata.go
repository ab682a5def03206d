package typetree

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

// ClassMonoBehaviour is the class id of script components.
const ClassMonoBehaviour = 114

// maxClasses bounds the class count of a schema.
const maxClasses = 1 << 20

// Metadata is the type schema of one serialized file.
type Metadata struct {
	GeneratorVersion string
	Platform         unitytype.RuntimePlatform
	HasTypeTrees     bool

	// ClassIDs lists the schema entries in file order. Format 17 and newer
	// object records refer to entries by their position in this list.
	ClassIDs []int32
	Trees    map[int32]*Node
	Hashes   map[int32][]byte
}

// Tree returns the root node stored for classID, or nil.
func (m *Metadata) Tree(classID int32) *Node {
	if m == nil {
		return nil
	}
	return m.Trees[classID]
}

// ClassAt returns the class id at position i of ClassIDs.
func (m *Metadata) ClassAt(i int32) (int32, bool) {
	if m == nil || i < 0 || int(i) >= len(m.ClassIDs) {
		return 0, false
	}
	return m.ClassIDs[i], true
}

// LoadMetadata parses a type schema for the given serialized-file format.
func LoadMetadata(r *cursor.Reader, format uint32, globalStrings []byte) (*Metadata, error) {
	m := &Metadata{
		Trees:  make(map[int32]*Node),
		Hashes: make(map[int32][]byte),
	}
	var err error
	if m.GeneratorVersion, err = r.ReadCString(); err != nil {
		return nil, fmt.Errorf("type schema generator version: %w", err)
	}
	platform, err := r.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("type schema platform: %w", err)
	}
	m.Platform = unitytype.RuntimePlatform(platform)

	if format >= 13 {
		err = m.loadModern(r, format, globalStrings)
	} else {
		err = m.loadLegacy(r, format, globalStrings)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func readCount(r *cursor.Reader, what string) (int, error) {
	n, err := r.ReadI32()
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", what, err)
	}
	if n < 0 || n > maxClasses {
		return 0, fmt.Errorf("%w: %s count %d", unitytype.ErrMalformedContainer, what, n)
	}
	return int(n), nil
}

func (m *Metadata) loadModern(r *cursor.Reader, format uint32, globalStrings []byte) error {
	var err error
	if m.HasTypeTrees, err = r.ReadBool(); err != nil {
		return fmt.Errorf("type schema tree flag: %w", err)
	}
	count, err := readCount(r, "type schema class")
	if err != nil {
		return err
	}
	for i := range count {
		classID, err := r.ReadI32()
		if err != nil {
			return fmt.Errorf("type schema class %d: %w", i, err)
		}
		if format >= 17 {
			if _, err := r.ReadU8(); err != nil {
				return err
			}
			scriptID, err := r.ReadI16()
			if err != nil {
				return err
			}
			if classID == ClassMonoBehaviour {
				classID = scriptClassID(scriptID)
			}
		}
		m.ClassIDs = append(m.ClassIDs, classID)

		hashLen := 16
		if classID < 0 {
			hashLen = 32
		}
		hash, err := r.ReadBytes(hashLen)
		if err != nil {
			return fmt.Errorf("type schema class %d hash: %w", classID, err)
		}
		m.Hashes[classID] = hash

		if m.HasTypeTrees {
			tree, err := Load(r, format, globalStrings)
			if err != nil {
				return fmt.Errorf("type tree for class %d: %w", classID, err)
			}
			m.Trees[classID] = tree
		}
	}
	return nil
}

func (m *Metadata) loadLegacy(r *cursor.Reader, format uint32, globalStrings []byte) error {
	m.HasTypeTrees = true
	count, err := readCount(r, "type schema class")
	if err != nil {
		return err
	}
	for i := range count {
		classID, err := r.ReadI32()
		if err != nil {
			return fmt.Errorf("type schema class %d: %w", i, err)
		}
		tree, err := Load(r, format, globalStrings)
		if err != nil {
			return fmt.Errorf("type tree for class %d: %w", classID, err)
		}
		m.ClassIDs = append(m.ClassIDs, classID)
		m.Trees[classID] = tree
	}
	return nil
}

// scriptClassID gives each script subclass its own negative schema slot.
// -1 stands for the MonoBehaviour base class itself.
func scriptClassID(scriptID int16) int32 {
	if scriptID < 0 {
		return -1
	}
	return -2 - int32(scriptID)
}

// ParseMetadata parses a standalone schema blob such as the default
// reference schema.
func ParseMetadata(data []byte, format uint32, order binary.ByteOrder, globalStrings []byte) (*Metadata, error) {
	r := cursor.FromBytes(data)
	r.SetOrder(order)
	return LoadMetadata(r, format, globalStrings)
}
