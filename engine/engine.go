// Package engine materializes common engine classes from the records the
// bundle reader produces.
//
// Register installs the materializers into a registry:
//
//	reg := unitycore.NewRegistry()
//	engine.Register(reg)
//	b, err := unitycore.Load(src, unitycore.WithRegistry(reg))
//
// Objects read from b then carry a *GameObject, *Texture2D and so on in
// Value.Native.
package engine

import (
	"errors"
	"fmt"

	unitycore "github.com/meigma/unitypack/core"
)

// ErrFieldMissing is returned when a record lacks a field its class requires.
var ErrFieldMissing = errors.New("engine: required field missing")

// Register installs every materializer in this package into reg.
func Register(reg *unitycore.Registry) {
	reg.Register("GameObject", materialize(newGameObject))
	reg.Register("Transform", materialize(newTransform))
	reg.Register("RectTransform", materialize(newTransform))
	reg.Register("Material", materialize(newMaterial))
	reg.Register("TextAsset", materialize(newTextAsset))
	reg.Register("Texture2D", materialize(newTexture2D))
	reg.Register("MonoScript", materialize(newMonoScript))
	reg.Register("AssetBundle", materialize(newAssetBundle))
}

// NewRegistry returns a registry holding every materializer in this package.
func NewRegistry() *unitycore.Registry {
	reg := unitycore.NewRegistry()
	Register(reg)
	return reg
}

func materialize[T any](fn func(src *unitycore.Asset, r *unitycore.Record) (T, error)) unitycore.Materializer {
	return func(src *unitycore.Asset, r *unitycore.Record) (any, error) {
		return fn(src, r)
	}
}

// needFields checks that r has every named field.
func needFields(r *unitycore.Record, names ...string) error {
	for _, name := range names {
		if !r.Has(name) {
			return fmt.Errorf("%w: %s.%s", ErrFieldMissing, r.TypeName, name)
		}
	}
	return nil
}

// pointers collects the pointers of a list value, keeping nil for null entries.
func pointers(v unitycore.Value) []*unitycore.ObjectPointer {
	items := v.List()
	if len(items) == 0 {
		return nil
	}
	out := make([]*unitycore.ObjectPointer, len(items))
	for i, item := range items {
		out[i] = item.Pointer()
	}
	return out
}

// Vector3 is a Vector3f record.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is a Quaternionf record.
type Quaternion struct {
	X, Y, Z, W float64
}

func vector3(v unitycore.Value) Vector3 {
	return Vector3{X: v.Field("x").Float(), Y: v.Field("y").Float(), Z: v.Field("z").Float()}
}

func quaternion(v unitycore.Value) Quaternion {
	return Quaternion{
		X: v.Field("x").Float(),
		Y: v.Field("y").Float(),
		Z: v.Field("z").Float(),
		W: v.Field("w").Float(),
	}
}
