package typetree

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// DefaultFormat is the format version of the default reference schema.
const DefaultFormat = 15

// Source supplies the reference data a default schema is built from.
type Source interface {
	// Structs returns the serialized default schema.
	Structs() ([]byte, error)
	// Strings returns the shared string pool used by negative blob offsets.
	Strings() ([]byte, error)
}

// Defaults holds the fallback schema consulted when a file omits the tree
// for a class. It is parsed once on first use and read-only afterwards.
type Defaults struct {
	src  Source
	once sync.Once
	md   *Metadata
	err  error
}

// NewDefaults returns a lazily initialized default schema backed by src.
// A nil src yields an empty schema.
func NewDefaults(src Source) *Defaults {
	return &Defaults{src: src}
}

// Metadata returns the parsed default schema.
func (d *Defaults) Metadata() (*Metadata, error) {
	d.once.Do(func() {
		d.md, d.err = d.build()
	})
	return d.md, d.err
}

// Tree returns the default tree for classID, or nil.
func (d *Defaults) Tree(classID int32) (*Node, error) {
	md, err := d.Metadata()
	if err != nil {
		return nil, err
	}
	return md.Tree(classID), nil
}

func (d *Defaults) build() (*Metadata, error) {
	empty := &Metadata{Trees: map[int32]*Node{}, Hashes: map[int32][]byte{}}
	if d.src == nil {
		return empty, nil
	}
	structs, err := d.src.Structs()
	if err != nil {
		return nil, fmt.Errorf("load default schema: %w", err)
	}
	if len(structs) == 0 {
		return empty, nil
	}
	strs, err := d.src.Strings()
	if err != nil {
		return nil, fmt.Errorf("load shared strings: %w", err)
	}
	md, err := ParseMetadata(structs, DefaultFormat, binary.LittleEndian, strs)
	if err != nil {
		return nil, fmt.Errorf("parse default schema: %w", err)
	}
	return md, nil
}
