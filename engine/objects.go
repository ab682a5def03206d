package engine

import (
	unitycore "github.com/meigma/unitypack/core"
)

// Component is one entry of a GameObject's component list.
type Component struct {
	// ClassID is set by formats that store it next to the pointer.
	ClassID   int32
	Component *unitycore.ObjectPointer
}

// GameObject is a scene node: a name, a layer and a list of components.
type GameObject struct {
	Name       string
	Active     bool
	Layer      uint32
	Tag        uint16
	Components []Component
}

func newGameObject(_ *unitycore.Asset, r *unitycore.Record) (*GameObject, error) {
	if err := needFields(r, "m_Name", "m_Component"); err != nil {
		return nil, err
	}
	g := &GameObject{
		Name:   r.Field("m_Name").Str(),
		Active: r.Field("m_IsActive").Bool(),
		Layer:  uint32(r.Field("m_Layer").Uint()),
		Tag:    uint16(r.Field("m_Tag").Uint()),
	}
	for _, item := range r.Field("m_Component").List() {
		switch item.Kind() {
		case unitycore.KindPair:
			// Older files store (class id, pointer) pairs.
			id, ptr := item.Pair()
			g.Components = append(g.Components, Component{ClassID: int32(id.Int()), Component: ptr.Pointer()})
		default:
			g.Components = append(g.Components, Component{Component: item.Field("component").Pointer()})
		}
	}
	return g, nil
}

// Transform positions a GameObject relative to its parent.
type Transform struct {
	GameObject    *unitycore.ObjectPointer
	LocalRotation Quaternion
	LocalPosition Vector3
	LocalScale    Vector3
	Children      []*unitycore.ObjectPointer
	Father        *unitycore.ObjectPointer
}

func newTransform(_ *unitycore.Asset, r *unitycore.Record) (*Transform, error) {
	if err := needFields(r, "m_LocalPosition", "m_LocalRotation", "m_LocalScale"); err != nil {
		return nil, err
	}
	return &Transform{
		GameObject:    r.Field("m_GameObject").Pointer(),
		LocalRotation: quaternion(r.Field("m_LocalRotation")),
		LocalPosition: vector3(r.Field("m_LocalPosition")),
		LocalScale:    vector3(r.Field("m_LocalScale")),
		Children:      pointers(r.Field("m_Children")),
		Father:        r.Field("m_Father").Pointer(),
	}, nil
}

// MonoScript names the class behind script components.
type MonoScript struct {
	Name         string
	ClassName    string
	Namespace    string
	AssemblyName string
}

// FullName returns the namespace-qualified class name.
func (m *MonoScript) FullName() string {
	if m.Namespace == "" {
		return m.ClassName
	}
	return m.Namespace + "." + m.ClassName
}

func newMonoScript(_ *unitycore.Asset, r *unitycore.Record) (*MonoScript, error) {
	if err := needFields(r, "m_ClassName"); err != nil {
		return nil, err
	}
	return &MonoScript{
		Name:         r.Field("m_Name").Str(),
		ClassName:    r.Field("m_ClassName").Str(),
		Namespace:    r.Field("m_Namespace").Str(),
		AssemblyName: r.Field("m_AssemblyName").Str(),
	}, nil
}

// ContainerEntry maps an asset path to the objects it loads.
type ContainerEntry struct {
	Path         string
	PreloadIndex int32
	PreloadSize  int32
	Asset        *unitycore.ObjectPointer
}

// AssetBundle is the manifest object every bundle carries.
type AssetBundle struct {
	Name         string
	PreloadTable []*unitycore.ObjectPointer
	Container    []ContainerEntry
}

// Lookup returns the container entry for path, or false.
func (b *AssetBundle) Lookup(path string) (ContainerEntry, bool) {
	for _, e := range b.Container {
		if e.Path == path {
			return e, true
		}
	}
	return ContainerEntry{}, false
}

func newAssetBundle(_ *unitycore.Asset, r *unitycore.Record) (*AssetBundle, error) {
	if err := needFields(r, "m_Container"); err != nil {
		return nil, err
	}
	b := &AssetBundle{
		Name:         r.Field("m_Name").Str(),
		PreloadTable: pointers(r.Field("m_PreloadTable")),
	}
	for _, item := range r.Field("m_Container").List() {
		path, info := item.Pair()
		b.Container = append(b.Container, ContainerEntry{
			Path:         path.Str(),
			PreloadIndex: int32(info.Field("preloadIndex").Int()),
			PreloadSize:  int32(info.Field("preloadSize").Int()),
			Asset:        info.Field("asset").Pointer(),
		})
	}
	return b, nil
}
