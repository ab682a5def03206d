package unitypack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	unitycore "github.com/meigma/unitypack/core"
	"github.com/meigma/unitypack/core/testutil"
)

// linkTree is a record with a name and a pointer to another Link.
func linkTree() *unitycore.TypeNode {
	return testutil.N("Link", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.PPtrNode("Link", "m_Next"),
	)
}

func linkData(name string, fileID int32, pathID int64) []byte {
	return testutil.LE().String(name).Align(4).I32(fileID).I64(pathID).Bytes()
}

func linkAsset(objects []testutil.Object, refs ...testutil.Ref) []byte {
	return testutil.Asset{
		Format:  17,
		Schema:  testutil.Schema{Types: []testutil.SchemaType{{ClassID: 1001, Tree: linkTree()}}},
		Objects: objects,
		Refs:    refs,
	}.Bytes()
}

// bundleOf packs serialized files into a single-block FS bundle.
func bundleOf(t *testing.T, files ...testutil.RawAsset) []byte {
	t.Helper()
	var (
		payload []byte
		entries []testutil.Entry
	)
	for _, f := range files {
		entries = append(entries, testutil.Entry{
			Name:   f.Name,
			Offset: int64(len(payload)),
			Size:   int64(len(f.Data)),
		})
		payload = append(payload, f.Data...)
	}
	data, err := testutil.FSBundle{
		Generator: "5.x.x",
		Engine:    "2019.4.0f1",
		Blocks:    []testutil.Block{{Data: payload, Method: unitycore.CompressionZlib}},
		Entries:   entries,
	}.Bytes()
	require.NoError(t, err)
	return data
}

// depBundle holds one Link object at path id 9 called "dep".
func depBundle(t *testing.T) []byte {
	t.Helper()
	return bundleOf(t, testutil.RawAsset{
		Name: "CAB-dep",
		Data: linkAsset([]testutil.Object{{PathID: 9, Data: linkData("dep", 0, 0)}}),
	})
}

// mainBundle points objects 1 and 2 at CAB-dep through two reference
// entries, and object 3 at a bundle that does not exist.
func mainBundle(t *testing.T) []byte {
	t.Helper()
	return bundleOf(t, testutil.RawAsset{
		Name: "CAB-main",
		Data: linkAsset(
			[]testutil.Object{
				{PathID: 1, Data: linkData("one", 1, 9)},
				{PathID: 2, Data: linkData("two", 2, 9)},
				{PathID: 3, Data: linkData("lost", 3, 9)},
			},
			testutil.Ref{FilePath: "archive:/CAB-dep/CAB-dep"},
			testutil.Ref{FilePath: "archive:/CAB-dep/CAB-dep"},
			testutil.Ref{FilePath: "archive:/CAB-gone/CAB-gone"},
		),
	})
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func newEnv(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	env, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })
	return env
}

// readNext reads object pathID of asset and resolves its m_Next pointer.
func readNext(t *testing.T, a *Asset, pathID int64) Value {
	t.Helper()
	obj, err := a.Object(pathID)
	require.NoError(t, err)
	require.NotNil(t, obj, "object %d", pathID)
	v, err := obj.Read()
	require.NoError(t, err)
	next, err := v.Field("m_Next").Resolve()
	require.NoError(t, err)
	return next
}
