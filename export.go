package unitypack

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format for Export.
type Format string

// Supported export formats.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat returns the format called name, case-insensitively.
// "yml" and "mpk" are accepted as aliases.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatJSON, FormatYAML, FormatCBOR, FormatMsgpack:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "mpk", "msgp":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown export format %q", name)
	}
}

// cborEncMode uses Core Deterministic Encoding so equal values encode to
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("unitypack: CBOR encoder initialization failed: " + err.Error())
	}
}

// Export writes v to w in format.
//
// Records keep their field order in JSON and YAML. CBOR and MessagePack maps
// are written with sorted keys. Pointers are written as a map of file_id,
// path_id and type; they are not followed, so resolve them first with
// ObjectInfo.ReadDeep to export a whole object graph. JSON has no encoding for
// NaN or infinities, so those are written as the strings "NaN", "+Inf" and
// "-Inf".
func Export(w io.Writer, v Value, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exportTree(v, true))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		node, err := yamlNode(exportTree(v, false))
		if err != nil {
			return err
		}
		if err := enc.Encode(node); err != nil {
			return err
		}
		return enc.Close()
	case FormatCBOR:
		return cborEncMode.NewEncoder(w).Encode(unordered(exportTree(v, false)))
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.SetSortMapKeys(true)
		return enc.Encode(unordered(exportTree(v, false)))
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// orderedMap is a string-keyed map that remembers insertion order.
type orderedMap struct {
	keys   []string
	values []any
}

func (m *orderedMap) set(key string, v any) {
	m.keys = append(m.keys, key)
	m.values = append(m.values, v)
}

// MarshalJSON writes the entries in insertion order.
func (m *orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		val, err := json.Marshal(m.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// exportTree converts v into bool, integer, float, []byte, string, []any,
// *orderedMap or nil.
func exportTree(v Value, jsonSafe bool) any {
	switch v.Kind() {
	case KindBool:
		return v.Bool()
	case KindInt:
		return v.Int()
	case KindUint:
		return v.Uint()
	case KindFloat:
		f := v.Float()
		if jsonSafe && (math.IsNaN(f) || math.IsInf(f, 0)) {
			switch {
			case math.IsNaN(f):
				return "NaN"
			case f > 0:
				return "+Inf"
			default:
				return "-Inf"
			}
		}
		if v.Bits() == 32 {
			return float32(f)
		}
		return f
	case KindBytes:
		return v.Bytes()
	case KindString:
		return v.Str()
	case KindList:
		out := make([]any, 0, v.Len())
		for _, item := range v.List() {
			out = append(out, exportTree(item, jsonSafe))
		}
		return out
	case KindPair:
		first, second := v.Pair()
		return []any{exportTree(first, jsonSafe), exportTree(second, jsonSafe)}
	case KindRecord:
		m := &orderedMap{}
		for name, field := range v.Record().All() {
			m.set(name, exportTree(field, jsonSafe))
		}
		return m
	case KindPointer:
		p := v.Pointer()
		m := &orderedMap{}
		m.set("file_id", int64(p.FileID))
		m.set("path_id", p.PathID)
		m.set("type", p.TypeName)
		return m
	default:
		return nil
	}
}

// unordered replaces ordered maps with plain maps for encoders that sort keys.
func unordered(v any) any {
	switch t := v.(type) {
	case *orderedMap:
		out := make(map[string]any, len(t.keys))
		for i, key := range t.keys {
			out[key] = unordered(t.values[i])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = unordered(item)
		}
		return out
	default:
		return v
	}
}

func yamlNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *orderedMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for i, key := range t.keys {
			val, err := yamlNode(t.values[i])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, val)
		}
		return node, nil
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			val, err := yamlNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, val)
		}
		return node, nil
	case []byte:
		return &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!binary",
			Value: base64.StdEncoding.EncodeToString(t),
		}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		node := &yaml.Node{}
		if err := node.Encode(t); err != nil {
			return nil, fmt.Errorf("encode %T: %w", t, err)
		}
		return node, nil
	}
}
