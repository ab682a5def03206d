package typetree_test

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypack/core/internal/cursor"
	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/internal/unitytype"
	"github.com/meigma/unitypack/core/testutil"
)

func TestLoadMetadataLegacy(t *testing.T) {
	t.Parallel()

	w := testutil.BE()
	w.CString("3.4.0f5").U32(uint32(unitytype.PlatformWindowsPlayer))
	w.I32(1)  // class count
	w.I32(42) // class id
	w.CString("Base").CString("Base").I32(-1).I32(0).I32(0).I32(1).I32(0).I32(2)
	w.CString("int").CString("count").I32(4).I32(1).I32(0).I32(1).I32(0).I32(0)
	w.CString("string").CString("name").I32(-1).I32(2).I32(0).I32(1).I32(0x4000).I32(0)

	md, err := typetree.LoadMetadata(cursor.FromBytes(w.Bytes()), 9, nil)
	require.NoError(t, err)
	assert.Equal(t, "3.4.0f5", md.GeneratorVersion)
	assert.Equal(t, unitytype.PlatformWindowsPlayer, md.Platform)
	assert.Equal(t, []int32{42}, md.ClassIDs)

	root := md.Tree(42)
	require.NotNil(t, root)
	assert.Equal(t, 3, root.Count())
	assert.Equal(t, "Base", root.Type)
	assert.Equal(t, "Base", root.Name)
	assert.Equal(t, int32(-1), root.Size)
	require.Len(t, root.Children, 2)

	count := root.Children[0]
	assert.Equal(t, "int", count.Type)
	assert.Equal(t, "count", count.Name)
	assert.Equal(t, int32(4), count.Size)
	assert.False(t, count.PostAlign())

	name := root.Children[1]
	assert.Equal(t, "string", name.Type)
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, int32(-1), name.Size)
	assert.True(t, name.PostAlign())
	assert.Same(t, name, root.Child("name"))
}

func TestLoadMetadataModern(t *testing.T) {
	t.Parallel()

	tree := testutil.N("MonoBehaviour", "Base", -1, testutil.N("int", "m_Enabled", 4))
	schema := testutil.Schema{
		Generator: "2017.4.1f1",
		Platform:  uint32(unitytype.PlatformAndroid),
		Types: []testutil.SchemaType{
			{ClassID: 1, Tree: testutil.N("GameObject", "Base", -1)},
			{ClassID: typetree.ClassMonoBehaviour, ScriptID: 3, Tree: tree},
			{ClassID: typetree.ClassMonoBehaviour, ScriptID: -1, Tree: tree},
		},
	}
	w := testutil.LE()
	testutil.EncodeSchema(w, 17, schema)
	r := cursor.FromBytes(w.Bytes())
	r.SetOrder(binary.LittleEndian)

	md, err := typetree.LoadMetadata(r, 17, nil)
	require.NoError(t, err)
	assert.True(t, md.HasTypeTrees)
	assert.Equal(t, []int32{1, -5, -1}, md.ClassIDs)
	assert.Len(t, md.Hashes[1], 16)
	assert.Len(t, md.Hashes[-5], 32)
	require.NotNil(t, md.Tree(-5))
	assert.Equal(t, "m_Enabled", md.Tree(-5).Children[0].Name)

	id, ok := md.ClassAt(1)
	assert.True(t, ok)
	assert.Equal(t, int32(-5), id)
	_, ok = md.ClassAt(3)
	assert.False(t, ok)
	assert.Equal(t, int64(w.Len()), r.Tell())
}

func TestLoadMetadataWithoutTrees(t *testing.T) {
	t.Parallel()

	w := testutil.BE()
	testutil.EncodeSchema(w, 15, testutil.Schema{
		NoTrees: true,
		Types:   []testutil.SchemaType{{ClassID: 28}, {ClassID: 43}},
	})
	md, err := typetree.LoadMetadata(cursor.FromBytes(w.Bytes()), 15, nil)
	require.NoError(t, err)
	assert.False(t, md.HasTypeTrees)
	assert.Equal(t, []int32{28, 43}, md.ClassIDs)
	assert.Nil(t, md.Tree(28))
}

func TestLoadBlobStrings(t *testing.T) {
	t.Parallel()

	global := []byte("AABB\x00int\x00")
	pool := []byte("Base\x00")

	rec := testutil.LE()
	node := func(depth uint8, typ, name int32) {
		rec.I16(1).U8(depth).U8(0).I32(typ).I32(name).I32(4).U32(0).I32(0)
	}
	node(0, 0, 0)
	// Shared "int" with an out of range local name.
	node(1, int32(-0x80000000|5), 100)
	// Out of range shared type with a local name.
	node(1, int32(-0x80000000|99), 0)

	w := testutil.BE()
	w.U32(3).U32(uint32(len(pool))).Raw(rec.Bytes()).Raw(pool)

	root, err := typetree.LoadBlob(cursor.FromBytes(w.Bytes()), global)
	require.NoError(t, err)
	assert.Equal(t, "Base", root.Type)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "int", root.Children[0].Type)
	assert.Equal(t, "(null)", root.Children[0].Name)
	assert.Equal(t, "(null)", root.Children[1].Type)
	assert.Equal(t, "Base", root.Children[1].Name)
	assert.Equal(t, int32(1), root.Children[1].Version)
}

func TestLoadBlobDepthJump(t *testing.T) {
	t.Parallel()

	rec := testutil.LE()
	rec.I16(1).U8(0).U8(0).I32(0).I32(0).I32(4).U32(0).I32(0)
	rec.I16(1).U8(3).U8(0).I32(0).I32(0).I32(4).U32(0).I32(0)
	w := testutil.BE()
	w.U32(2).U32(2).Raw(rec.Bytes()).Raw([]byte("A\x00"))

	_, err := typetree.LoadBlob(cursor.FromBytes(w.Bytes()), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, unitytype.ErrMalformedContainer))
}

func TestLoadTruncated(t *testing.T) {
	t.Parallel()

	w := testutil.BE()
	testutil.EncodeOld(w, testutil.N("Base", "Base", -1, testutil.N("int", "x", 4)))
	data := w.Bytes()[:w.Len()-3]

	_, err := typetree.LoadOld(cursor.FromBytes(data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, unitytype.ErrTruncatedInput))
}

type staticSource struct {
	structs []byte
	strings []byte
	calls   int
}

func (s *staticSource) Structs() ([]byte, error) {
	s.calls++
	return s.structs, nil
}

func (s *staticSource) Strings() ([]byte, error) { return s.strings, nil }

func TestDefaultsLoadOnce(t *testing.T) {
	t.Parallel()

	src := &staticSource{structs: testutil.DefaultStructs(testutil.Schema{
		Generator: "5.0.0f4",
		Types: []testutil.SchemaType{
			{ClassID: 49, Tree: testutil.N("TextAsset", "Base", -1, testutil.StringNode("m_Name"))},
		},
	})}
	d := typetree.NewDefaults(src)

	tree, err := d.Tree(49)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, "TextAsset", tree.Type)

	missing, err := d.Tree(1)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Equal(t, 1, src.calls)
}

func TestDefaultsEmpty(t *testing.T) {
	t.Parallel()

	tree, err := typetree.NewDefaults(nil).Tree(1)
	require.NoError(t, err)
	assert.Nil(t, tree)
}

// genTree generates trees up to the given depth with short ASCII names.
func genTree(depth int) gopter.Gen {
	leaf := gopter.CombineGens(
		gen.Identifier(),
		gen.Identifier(),
		gen.Int32Range(-1, 64),
		gen.Bool(),
	).Map(func(v []any) *typetree.Node {
		n := testutil.N(v[0].(string), v[1].(string), v[2].(int32))
		if v[3].(bool) {
			n.Flags = 0x4000
		}
		return n
	})
	if depth <= 1 {
		return leaf
	}
	children := gen.IntRange(0, 3).FlatMap(func(v any) gopter.Gen {
		return gen.SliceOfN(v.(int), genTree(depth-1))
	}, reflect.TypeOf([]*typetree.Node{}))
	return gopter.CombineGens(leaf, children).Map(func(v []any) *typetree.Node {
		n := v[0].(*typetree.Node)
		n.Children = v[1].([]*typetree.Node)
		return n
	})
}

func sameShape(a, b *typetree.Node) bool {
	if a.Type != b.Type || a.Name != b.Name || a.Size != b.Size || a.Flags != b.Flags ||
		len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !sameShape(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func TestBlobRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("blob encoding rebuilds the recursive tree", prop.ForAll(
		func(tree *typetree.Node) bool {
			old := testutil.BE()
			testutil.EncodeOld(old, tree)
			parsed, err := typetree.LoadOld(cursor.FromBytes(old.Bytes()))
			if err != nil {
				return false
			}

			blob := testutil.BE()
			testutil.EncodeBlob(blob, parsed)
			rebuilt, err := typetree.LoadBlob(cursor.FromBytes(blob.Bytes()), nil)
			if err != nil {
				return false
			}
			return sameShape(parsed, rebuilt) && sameShape(tree, rebuilt)
		},
		genTree(5),
	))

	properties.TestingRun(t)
}
