package unitypack

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/refdata"
	"github.com/meigma/unitypack/core/testutil"
)

func TestAssetLegacyFormat(t *testing.T) {
	t.Parallel()

	a := singleAsset(t, testutil.Asset{
		Format:    9,
		BigEndian: true,
		Schema: testutil.Schema{
			Generator: "4.7.2f1",
			Platform:  5,
			Types:     []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}},
		},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(testutil.BE(), "Foo", 7)},
		},
	})

	format, err := a.Format()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), format)
	order, err := a.ByteOrder()
	require.NoError(t, err)
	assert.Equal(t, "BigEndian", order.String())

	schema, err := a.Schema()
	require.NoError(t, err)
	assert.Equal(t, "4.7.2f1", schema.GeneratorVersion)
	assert.True(t, schema.HasTypeTrees)

	obj, err := a.Object(1)
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, uint32(12), obj.Size, "4 byte length, 3 bytes of text, 1 pad byte, 4 byte int")
	assert.False(t, obj.Destroyed)
	assert.Equal(t, "Base", obj.TypeName())

	v, err := obj.Read()
	require.NoError(t, err)
	require.Equal(t, KindRecord, v.Kind())
	assert.Equal(t, "Base", v.Record().TypeName)
	assert.Equal(t, []string{"m_Name", "m_Value"}, v.Record().Names())
	assert.Equal(t, "Foo", v.Field("m_Name").Str())
	assert.Equal(t, int64(7), v.Field("m_Value").Int())
	assert.Equal(t, uint8(32), v.Field("m_Value").Bits())

	missing, err := a.Object(2)
	require.NoError(t, err)
	assert.Nil(t, missing)

	raw, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, baseData(testutil.BE(), "Foo", 7), raw)
}

func TestAssetModernFormat(t *testing.T) {
	t.Parallel()

	gameObject := testutil.N("GameObject", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.N("bool", "m_IsActive", 1),
		testutil.Aligned(testutil.N("UInt8", "m_Layer", 1)),
		testutil.N("float", "m_Weight", 4),
	)
	behaviour := testutil.N("MonoBehaviour", "Base", -1,
		testutil.PPtrNode("MonoScript", "m_Script"),
		testutil.N("SInt64", "m_Score", 8),
	)
	script := testutil.N("MonoScript", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.StringNode("m_ClassName"),
	)

	a := singleAsset(t, testutil.Asset{
		Format: 17,
		Schema: testutil.Schema{
			Generator: "2017.4.1f1",
			Types: []testutil.SchemaType{
				{ClassID: 1, Tree: gameObject},
				{ClassID: typetree.ClassMonoBehaviour, ScriptID: 0, Tree: behaviour},
				{ClassID: 115, Tree: script},
			},
		},
		Objects: []testutil.Object{
			{PathID: 10, TypeID: 0, Data: testutil.LE().String("Player").Align(4).Bool(true).U8(8).Align(4).F32(1.5).Bytes()},
			{PathID: 11, TypeID: 1, Data: testutil.LE().I32(0).I64(12).I64(-3).Bytes()},
			{PathID: 12, TypeID: 2, Data: testutil.LE().String("Ctl").Align(4).String("PlayerController").Align(4).Bytes()},
		},
	})

	order, err := a.ByteOrder()
	require.NoError(t, err)
	assert.Equal(t, "LittleEndian", order.String())

	objs, err := a.Objects()
	require.NoError(t, err)
	require.Len(t, objs, 3)
	assert.Equal(t, []int64{10, 11, 12}, []int64{objs[0].PathID, objs[1].PathID, objs[2].PathID})

	goObj := objs[0]
	assert.Equal(t, int32(1), goObj.ClassID)
	assert.Equal(t, "GameObject", goObj.TypeName())
	v, err := goObj.Read()
	require.NoError(t, err)
	assert.Equal(t, "Player", v.Field("m_Name").Str())
	assert.True(t, v.Field("m_IsActive").Bool())
	assert.Equal(t, uint64(8), v.Field("m_Layer").Uint())
	assert.InDelta(t, 1.5, v.Field("m_Weight").Float(), 1e-9)

	mb := objs[1]
	assert.Equal(t, int32(-2), mb.TypeID)
	assert.Equal(t, int32(typetree.ClassMonoBehaviour), mb.ClassID)
	assert.Equal(t, "PlayerController", mb.TypeName())
	v, err = mb.Read()
	require.NoError(t, err)
	assert.Equal(t, int64(-3), v.Field("m_Score").Int())
	require.Equal(t, KindPointer, v.Field("m_Script").Kind())
	ptr := v.Field("m_Script").Pointer()
	assert.Equal(t, "PPtr<MonoScript>", ptr.TypeName)
	assert.Same(t, a, ptr.Source())

	assert.Equal(t, "MonoScript", objs[2].TypeName())

	var ids []int64
	for id := range a.All() {
		ids = append(ids, id)
	}
	assert.Equal(t, []int64{10, 11, 12}, ids)
}

func TestAssetDuplicatePathID(t *testing.T) {
	t.Parallel()

	h := &recordHandler{}
	a := singleAsset(t, testutil.Asset{
		Format: 15,
		Schema: testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}}},
		Objects: []testutil.Object{
			{PathID: 5, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "first", 1)},
			{PathID: 5, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "second", 2)},
		},
	}, WithLogger(slog.New(h)))

	n, err := a.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, h.count(slog.LevelWarn, "duplicate path id"))

	obj, err := a.Object(5)
	require.NoError(t, err)
	v, err := obj.Read()
	require.NoError(t, err)
	assert.Equal(t, "second", v.Field("m_Name").Str())
}

func TestAssetTrailingData(t *testing.T) {
	t.Parallel()

	a := LoadAsset(NewMemorySource(testutil.Asset{Format: 15, Trailer: "junk"}.Bytes()), "CAB-bad")
	err := a.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedContainer))
	assert.Equal(t, err, a.Load(), "load runs once")

	_, err = a.Object(1)
	assert.True(t, errors.Is(err, ErrMalformedContainer))
}

func TestAssetTruncated(t *testing.T) {
	t.Parallel()

	data := testutil.Asset{
		Format: 15,
		Schema: testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}}},
	}.Bytes()
	a := LoadAsset(NewMemorySource(data[:40]), "CAB-short")
	assert.True(t, errors.Is(a.Load(), ErrTruncatedInput))
}

func TestAssetSchemaMissing(t *testing.T) {
	t.Parallel()

	h := &recordHandler{}
	a := singleAsset(t, testutil.Asset{
		Format: 15,
		Schema: testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}}},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 99, ClassID: 99, Data: []byte{1, 2, 3, 4}},
		},
	}, WithLogger(slog.New(h)))
	assert.Equal(t, 1, h.count(slog.LevelWarn, "no type tree for object class"))

	obj, err := a.Object(1)
	require.NoError(t, err)
	assert.Nil(t, obj.Type())
	assert.Equal(t, "<Unknown 99>", obj.TypeName())

	_, err = obj.Read()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaMissing))

	raw, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, raw)
}

func TestAssetDefaultSchema(t *testing.T) {
	t.Parallel()

	refs := &refdata.Static{
		StructsData: testutil.DefaultStructs(testutil.Schema{
			Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}},
		}),
	}
	t.Cleanup(func() { ReleaseDefaultSchema(refs) })

	a := singleAsset(t, testutil.Asset{
		Format: 16,
		Schema: testutil.Schema{NoTrees: true, Types: []testutil.SchemaType{{ClassID: 42}}},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "Bar", -9)},
		},
	}, WithReferenceData(refs))

	schema, err := a.Schema()
	require.NoError(t, err)
	assert.False(t, schema.HasTypeTrees)

	obj, err := a.Object(1)
	require.NoError(t, err)
	require.NotNil(t, obj.Type())
	v, err := obj.Read()
	require.NoError(t, err)
	assert.Equal(t, "Bar", v.Field("m_Name").Str())
	assert.Equal(t, int64(-9), v.Field("m_Value").Int())
	assert.Same(t, DefaultSchema(refs), DefaultSchema(refs))
}

// mapRefData is a value-type provider whose dynamic type is not comparable.
type mapRefData struct {
	structs []byte
	classes map[int32]string
}

func (m mapRefData) Strings() ([]byte, error) { return nil, nil }
func (m mapRefData) Structs() ([]byte, error) { return m.structs, nil }

func (m mapRefData) ClassName(classID int32) (string, bool) {
	name, ok := m.classes[classID]
	return name, ok
}

func TestAssetDefaultSchemaUncomparableProvider(t *testing.T) {
	t.Parallel()

	refs := mapRefData{
		structs: testutil.DefaultStructs(testutil.Schema{
			Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}},
		}),
		classes: map[int32]string{42: "Base"},
	}
	require.NotPanics(t, func() { ReleaseDefaultSchema(refs) })

	a := singleAsset(t, testutil.Asset{
		Format: 16,
		Schema: testutil.Schema{NoTrees: true, Types: []testutil.SchemaType{{ClassID: 42}}},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "Baz", 3)},
		},
	}, WithReferenceData(refs))

	obj, err := a.Object(1)
	require.NoError(t, err)
	v, err := obj.Read()
	require.NoError(t, err)
	assert.Equal(t, "Baz", v.Field("m_Name").Str())
	assert.Equal(t, int64(3), v.Field("m_Value").Int())
	assert.Equal(t, "Base", obj.TypeName())
}

func TestAssetAddsAndRefs(t *testing.T) {
	t.Parallel()

	guid := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	a := singleAsset(t, testutil.Asset{
		Format: 15,
		Adds:   []testutil.Add{{ID: 3, Value: 9}, {ID: 4, Value: -1}},
		Refs: []testutil.Ref{
			{GUID: guid, Type: 2, FilePath: "archive:/CAB-other/CAB-other"},
			{Path: "library/unity default resources", FilePath: "Library/unity default resources"},
		},
	})

	adds, err := a.Adds()
	require.NoError(t, err)
	assert.Equal(t, []Add{{ID: 3, Value: 9}, {ID: 4, Value: -1}}, adds)

	refs, err := a.Refs()
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, guid, refs[0].GUID)
	assert.Equal(t, int32(2), refs[0].Type)
	assert.Equal(t, "archive:/CAB-other/CAB-other", refs[0].FilePath)
	assert.Equal(t, "library/unity default resources", refs[1].AssetPath)

	ref, err := a.Ref(2)
	require.NoError(t, err)
	assert.Same(t, refs[1], ref)
	for _, id := range []int32{0, 3, -1} {
		ref, err := a.Ref(id)
		require.NoError(t, err)
		assert.Nil(t, ref, "file id %d", id)
	}

	_, err = refs[0].Resolve()
	assert.True(t, errors.Is(err, ErrAssetNotFound))
}

func TestAssetRegistry(t *testing.T) {
	t.Parallel()

	type named struct {
		Name  string
		Value int64
	}
	reg := NewRegistry()
	reg.Register("Base", func(src *Asset, r *Record) (any, error) {
		if r.Field("m_Value").Int() < 0 {
			return nil, errors.New("negative value")
		}
		return named{Name: r.Field("m_Name").Str(), Value: r.Field("m_Value").Int()}, nil
	})
	assert.Equal(t, []string{"Base"}, reg.Names())

	a := singleAsset(t, testutil.Asset{
		Format: 15,
		Schema: testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}}},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "ok", 3)},
			{PathID: 2, TypeID: 42, ClassID: 42, Data: baseData(testutil.LE(), "bad", -3)},
		},
	}, WithRegistry(reg))

	obj, err := a.Object(1)
	require.NoError(t, err)
	v, err := obj.Read()
	require.NoError(t, err)
	assert.Equal(t, named{Name: "ok", Value: 3}, v.Native())

	obj, err = a.Object(2)
	require.NoError(t, err)
	v, err = obj.Read()
	require.NoError(t, err, "materializer errors keep the plain record")
	assert.Nil(t, v.Native())
	assert.Equal(t, "bad", v.Field("m_Name").Str())
}

func TestReadStringAlignment(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("fields after an aligned string start on a 4-byte boundary", prop.ForAll(
		func(name string, value int32, bigEndian bool) bool {
			w := testutil.LE()
			if bigEndian {
				w = testutil.BE()
			}
			a := LoadAsset(NewMemorySource(testutil.Asset{
				Format:    15,
				BigEndian: bigEndian,
				Schema:    testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}}},
				Objects: []testutil.Object{
					{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(w, name, value)},
				},
			}.Bytes()), "CAB-prop")
			obj, err := a.Object(1)
			if err != nil || obj == nil {
				return false
			}
			v, err := obj.Read()
			if err != nil {
				return false
			}
			return v.Field("m_Name").Str() == name && v.Field("m_Value").Int() == int64(value)
		},
		gen.AlphaString(),
		gen.Int32(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestReadArraysAndPairs(t *testing.T) {
	t.Parallel()

	pairNode := testutil.N("pair", "data", -1,
		testutil.N("int", "first", 4),
		testutil.StringNode("second"),
	)
	tree := testutil.N("Table", "Base", -1,
		testutil.VectorNode("vector", "m_Bytes", testutil.N("UInt8", "", 1)),
		testutil.VectorNode("vector", "m_Values", testutil.N("UInt16", "", 2)),
		testutil.VectorNode("map", "m_Map", pairNode),
		testutil.VectorNode("vector", "m_Markers", testutil.N("Marker", "", 0)),
		testutil.N("double", "m_Ratio", 8),
	)
	data := testutil.LE().
		U32(3).Raw([]byte{1, 2, 3}).Align(4).
		U32(2).U16(10).U16(20).Align(4).
		U32(1).I32(4).String("four").Align(4).
		U32(64).
		F64(0.25).
		Bytes()

	a := singleAsset(t, testutil.Asset{
		Format:  15,
		Schema:  testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: tree}}},
		Objects: []testutil.Object{{PathID: 1, TypeID: 42, ClassID: 42, Data: data}},
	})
	obj, err := a.Object(1)
	require.NoError(t, err)
	v, err := obj.Read()
	require.NoError(t, err)

	assert.Equal(t, KindBytes, v.Field("m_Bytes").Kind())
	assert.Equal(t, []byte{1, 2, 3}, v.Field("m_Bytes").Bytes())

	values := v.Field("m_Values")
	require.Equal(t, 2, values.Len())
	assert.Equal(t, uint64(20), values.Index(1).Uint())

	entries := v.Field("m_Map")
	require.Equal(t, 1, entries.Len())
	k, val := entries.Index(0).Pair()
	assert.Equal(t, int64(4), k.Int())
	assert.Equal(t, "four", val.Str())

	markers := v.Field("m_Markers")
	require.Equal(t, 64, markers.Len(), "zero-width elements need no payload")
	assert.Equal(t, 0, markers.Index(63).Record().Len())

	assert.InDelta(t, 0.25, v.Field("m_Ratio").Float(), 1e-12)
}

func TestReadArrayCountExceedsData(t *testing.T) {
	t.Parallel()

	tree := testutil.N("Table", "Base", -1,
		testutil.VectorNode("vector", "m_Values", testutil.N("int", "", 4)),
	)
	a := singleAsset(t, testutil.Asset{
		Format:  15,
		Schema:  testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: tree}}},
		Objects: []testutil.Object{{PathID: 1, TypeID: 42, ClassID: 42, Data: testutil.LE().U32(1 << 30).Bytes()}},
	})
	obj, err := a.Object(1)
	require.NoError(t, err)
	_, err = obj.Read()
	assert.True(t, errors.Is(err, ErrTruncatedInput))
}

func TestReadMalformedPair(t *testing.T) {
	t.Parallel()

	tree := testutil.N("Holder", "Base", -1,
		testutil.N("pair", "m_Pair", -1, testutil.N("int", "first", 4)),
	)
	a := singleAsset(t, testutil.Asset{
		Format:  15,
		Schema:  testutil.Schema{Types: []testutil.SchemaType{{ClassID: 42, Tree: tree}}},
		Objects: []testutil.Object{{PathID: 1, TypeID: 42, ClassID: 42, Data: testutil.LE().I32(1).Bytes()}},
	})
	obj, err := a.Object(1)
	require.NoError(t, err)
	_, err = obj.Read()
	assert.True(t, errors.Is(err, ErrMalformedContainer))
}
