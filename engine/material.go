package engine

import (
	"strings"

	unitycore "github.com/meigma/unitypack/core"
)

// Material binds a shader to its saved properties.
type Material struct {
	Name                    string
	Shader                  *unitycore.ObjectPointer
	ShaderKeywords          []string
	GlobalIlluminationFlags uint32
	RenderQueue             int32
	// SavedProperties groups properties by kind (m_TexEnvs, m_Floats,
	// m_Colors and so on), then by property name.
	SavedProperties map[string]map[string]unitycore.Value
}

// Float returns a float property, or false.
func (m *Material) Float(name string) (float64, bool) {
	v, ok := m.SavedProperties["m_Floats"][name]
	return v.Float(), ok
}

// Texture returns the texture pointer of a texture property, or nil.
func (m *Material) Texture(name string) *unitycore.ObjectPointer {
	return m.SavedProperties["m_TexEnvs"][name].Field("m_Texture").Pointer()
}

func newMaterial(_ *unitycore.Asset, r *unitycore.Record) (*Material, error) {
	if err := needFields(r, "m_Name", "m_Shader"); err != nil {
		return nil, err
	}
	m := &Material{
		Name:                    r.Field("m_Name").Str(),
		Shader:                  r.Field("m_Shader").Pointer(),
		ShaderKeywords:          keywords(r.Field("m_ShaderKeywords")),
		GlobalIlluminationFlags: uint32(r.Field("m_LightmapFlags").Uint()),
		RenderQueue:             int32(r.Field("m_CustomRenderQueue").Int()),
		SavedProperties:         make(map[string]map[string]unitycore.Value),
	}
	props := r.Field("m_SavedProperties").Record()
	for group, entries := range props.All() {
		byName := make(map[string]unitycore.Value, entries.Len())
		for _, entry := range entries.List() {
			key, value := entry.Pair()
			byName[propertyName(key)] = value
		}
		m.SavedProperties[group] = byName
	}
	return m, nil
}

// keywords accepts the space separated string of older files and the string
// list of newer ones.
func keywords(v unitycore.Value) []string {
	switch v.Kind() {
	case unitycore.KindList:
		out := make([]string, 0, v.Len())
		for _, item := range v.List() {
			out = append(out, item.Str())
		}
		return out
	case unitycore.KindString:
		return strings.Fields(v.Str())
	default:
		return nil
	}
}

// propertyName unwraps FastPropertyName records used by older files.
func propertyName(key unitycore.Value) string {
	if key.Kind() == unitycore.KindRecord {
		return key.Field("name").Str()
	}
	return key.Str()
}
