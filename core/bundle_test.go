package unitypack

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypack/core/testutil"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestLoadFSBundleAcrossBlocks(t *testing.T) {
	t.Parallel()

	data := payload(96)
	guid := uuid.MustParse("0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0")

	tests := []struct {
		name   string
		bundle testutil.FSBundle
	}{
		{
			name: "stored",
			bundle: testutil.FSBundle{
				Blocks: testutil.Split(data, 64, 32),
			},
		},
		{
			name: "lz4 blocks zlib metadata",
			bundle: testutil.FSBundle{
				MetaMethod: CompressionZlib,
				Blocks: []testutil.Block{
					{Data: make([]byte, 64), Method: CompressionLZ4},
					{Data: data[64:], Method: CompressionNone},
				},
			},
		},
		{
			name: "metadata at end",
			bundle: testutil.FSBundle{
				MetaAtEnd: true,
				Blocks:    testutil.Split(data, 64, 32),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := data
			if tt.bundle.Blocks[0].Method == CompressionLZ4 {
				want = append(append([]byte(nil), tt.bundle.Blocks[0].Data...), tt.bundle.Blocks[1].Data...)
			}
			tt.bundle.Generator = "5.x.x"
			tt.bundle.Engine = "2018.4.2f1"
			tt.bundle.GUID = guid
			tt.bundle.Entries = []testutil.Entry{{Name: "CAB-abc.resS", Offset: 5, Size: 90}}

			raw, err := tt.bundle.Bytes()
			require.NoError(t, err)
			b := loadBundle(t, raw)

			assert.Equal(t, SignatureFS, b.Signature)
			assert.Equal(t, int32(6), b.FormatVersion)
			assert.Equal(t, "2018.4.2f1", b.EngineVersion)
			assert.Equal(t, guid, b.GUID)
			assert.Equal(t, tt.bundle.MetaMethod, b.Compression)
			assert.Equal(t, "CAB-abc.resS", b.Name)
			require.Len(t, b.Blocks, 2)
			assert.Equal(t, int64(96), b.PayloadSize())

			require.Len(t, b.Assets(), 1)
			a := b.Assets()[0]
			assert.True(t, a.IsResource())
			assert.Equal(t, int64(90), a.Size())

			got, err := a.ReadRaw(0, 90)
			require.NoError(t, err)
			assert.Equal(t, want[5:95], got)

			part, err := a.ReadRaw(55, 10)
			require.NoError(t, err)
			assert.Equal(t, want[60:70], part)

			_, err = a.ReadRaw(85, 10)
			assert.True(t, errors.Is(err, ErrTruncatedInput))

			assert.Same(t, a, b.Resource("archive:/CAB-abc/CAB-abc.resS"))
			assert.Nil(t, b.Resource("archive:/CAB-abc/CAB-other.resS"))
			assert.True(t, errors.Is(a.Load(), ErrMalformedContainer), "resources are not serialized files")
		})
	}
}

func TestLoadFSBundleBlockCache(t *testing.T) {
	t.Parallel()

	data := make([]byte, 128)
	raw, err := testutil.FSBundle{
		Blocks:  []testutil.Block{{Data: data, Method: CompressionLZ4}},
		Entries: []testutil.Entry{{Name: "CAB-x.resS", Offset: 0, Size: 128}},
	}.Bytes()
	require.NoError(t, err)

	bc := testutil.NewMockCache()
	for range 2 {
		b := loadBundle(t, raw, WithBlockCache(bc))
		got, err := b.Assets()[0].ReadRaw(0, 128)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
	assert.Equal(t, 1, bc.Len())
	assert.Equal(t, 1, bc.Hits())
}

func TestLoadFSBundleEntryOutOfRange(t *testing.T) {
	t.Parallel()

	raw, err := testutil.FSBundle{
		Blocks:  []testutil.Block{{Data: payload(16)}},
		Entries: []testutil.Entry{{Name: "CAB-x", Offset: 8, Size: 9}},
	}.Bytes()
	require.NoError(t, err)

	_, err = Load(NewMemorySource(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedContainer))
}

func TestLoadRejectsUnknownSignature(t *testing.T) {
	t.Parallel()

	_, err := Load(NewMemorySource(testutil.BE().CString("UnityArchive").I32(6).Bytes()))
	assert.True(t, errors.Is(err, ErrMalformedContainer))

	_, err = Load(NewMemorySource([]byte("Unity")))
	assert.True(t, errors.Is(err, ErrTruncatedInput))
}

func TestLoadFSBundleUnsupportedMetadata(t *testing.T) {
	t.Parallel()

	raw, err := testutil.FSBundle{
		MetaMethod: CompressionLZMA,
		Blocks:     []testutil.Block{{Data: payload(16)}},
	}.Bytes()
	require.NoError(t, err)

	_, err = Load(NewMemorySource(raw))
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))
}

func TestLoadRawBundle(t *testing.T) {
	t.Parallel()

	file := testutil.Asset{
		Format:    9,
		BigEndian: true,
		Schema: testutil.Schema{
			Generator: "4.7.2f1",
			Types:     []testutil.SchemaType{{ClassID: 42, Tree: baseTree()}},
		},
		Objects: []testutil.Object{
			{PathID: 1, TypeID: 42, ClassID: 42, Data: baseData(testutil.BE(), "Foo", 7)},
		},
	}
	raw := testutil.RawBundle{
		Generator: "3.x.x",
		Engine:    "4.7.2f1",
		Name:      "level0",
		Assets: []testutil.RawAsset{
			{Name: "CAB-first", Data: file.Bytes()},
			{Name: "CAB-first.resS", Data: payload(12)},
		},
	}.Bytes()

	b := loadBundle(t, raw)
	assert.Equal(t, SignatureRaw, b.Signature)
	assert.Equal(t, "level0", b.Name)
	require.NotNil(t, b.Raw)
	assert.Equal(t, int32(2), b.Raw.FileCount)
	require.Len(t, b.Assets(), 2)

	a := b.Asset("cab-FIRST")
	require.NotNil(t, a)
	obj, err := a.Object(1)
	require.NoError(t, err)
	require.NotNil(t, obj)
	v, err := obj.Read()
	require.NoError(t, err)
	assert.Equal(t, "Foo", v.Field("m_Name").Str())
	assert.Equal(t, int64(7), v.Field("m_Value").Int())

	res := b.Resource("CAB-first.resS")
	require.NotNil(t, res)
	got, err := res.ReadRaw(0, 12)
	require.NoError(t, err)
	assert.Equal(t, payload(12), got)
}

func TestLoadWebBundleUnsupported(t *testing.T) {
	t.Parallel()

	raw := testutil.RawBundle{
		Signature: SignatureWeb,
		Name:      "web",
		Assets:    []testutil.RawAsset{{Name: "CAB-web", Data: payload(8)}},
	}.Bytes()

	b := loadBundle(t, raw)
	assert.Equal(t, SignatureWeb, b.Signature)
	require.Len(t, b.Assets(), 1)
	err := b.Assets()[0].Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))

	_, err = b.Assets()[0].Objects()
	assert.True(t, errors.Is(err, ErrUnsupportedCompression))
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/level0.unity3d"
	raw := bundleOf(t, testutil.RawAsset{Name: "CAB-file.resS", Data: payload(4)})
	require.NoError(t, writeFile(path, raw))

	bf, err := OpenFile(path)
	require.NoError(t, err)
	defer bf.Close()
	assert.Equal(t, path, bf.Path)
	require.Len(t, bf.Assets(), 1)

	_, err = OpenFile(path + ".missing")
	assert.Error(t, err)
}
