// Package refdata provides the reference data the bundle reader falls back on:
// the shared string pool used by blob type trees, the default type schema and
// the class id to class name table.
package refdata

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// File names looked up by Dir.
const (
	StringsFile = "strings.dat"
	StructsFile = "structs.dat"
	ClassesFile = "classes.yaml"
)

//go:embed classes.yaml
var builtinClasses []byte

// Provider exposes reference data. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Strings returns the shared string pool for negative blob offsets.
	Strings() ([]byte, error)
	// Structs returns the serialized default type schema.
	Structs() ([]byte, error)
	// ClassName returns the name of a built-in class id.
	ClassName(classID int32) (string, bool)
}

// ParseClasses parses a YAML (or JSON) mapping of class id to class name.
func ParseClasses(data []byte) (map[int32]string, error) {
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse class table: %w", err)
	}
	out := make(map[int32]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse class table: class id %q: %w", k, err)
		}
		out[int32(id)] = v
	}
	return out, nil
}

var (
	builtinOnce sync.Once
	builtinMap  map[int32]string
	builtinErr  error
)

// BuiltinClasses returns the class table compiled into the package.
func BuiltinClasses() (map[int32]string, error) {
	builtinOnce.Do(func() {
		builtinMap, builtinErr = ParseClasses(builtinClasses)
	})
	return builtinMap, builtinErr
}

// UnknownClassName formats the placeholder name used for unmapped class ids.
func UnknownClassName(classID int32) string {
	return "<Unknown " + strconv.Itoa(int(classID)) + ">"
}

// Static is a Provider over in-memory data. A nil Classes map falls back to
// the built-in table.
type Static struct {
	StringsData []byte
	StructsData []byte
	Classes     map[int32]string
}

var _ Provider = (*Static)(nil)

func (s *Static) Strings() ([]byte, error) { return s.StringsData, nil }
func (s *Static) Structs() ([]byte, error) { return s.StructsData, nil }

func (s *Static) ClassName(classID int32) (string, bool) {
	classes := s.Classes
	if classes == nil {
		classes, _ = BuiltinClasses() //nolint:errcheck // the embedded table is validated by tests
	}
	name, ok := classes[classID]
	return name, ok
}

// Empty returns a Provider with no string pool, no default schema and the
// built-in class table.
func Empty() Provider {
	return &Static{}
}

// Dir is a Provider that reads reference files from a filesystem on first use.
// Missing files are treated as empty; the class table then falls back to the
// built-in one.
type Dir struct {
	fsys fs.FS

	once    sync.Once
	strings []byte
	structs []byte
	classes map[int32]string
	err     error
}

var _ Provider = (*Dir)(nil)

// NewDir returns a Provider reading from fsys.
func NewDir(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

func (d *Dir) load() error {
	d.once.Do(func() {
		if d.strings, d.err = readOptional(d.fsys, StringsFile); d.err != nil {
			return
		}
		if d.structs, d.err = readOptional(d.fsys, StructsFile); d.err != nil {
			return
		}
		var classes []byte
		if classes, d.err = readOptional(d.fsys, ClassesFile); d.err != nil {
			return
		}
		if classes == nil {
			d.classes, d.err = BuiltinClasses()
			return
		}
		d.classes, d.err = ParseClasses(classes)
	})
	return d.err
}

func readOptional(fsys fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Strings returns the contents of strings.dat.
func (d *Dir) Strings() ([]byte, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	return d.strings, nil
}

// Structs returns the contents of structs.dat.
func (d *Dir) Structs() ([]byte, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	return d.structs, nil
}

// ClassName looks up classID in classes.yaml.
func (d *Dir) ClassName(classID int32) (string, bool) {
	if err := d.load(); err != nil {
		return "", false
	}
	name, ok := d.classes[classID]
	return name, ok
}
