package unitypack

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/testutil"
)

// recordHandler keeps every log record it receives.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h *recordHandler) WithGroup(string) slog.Handler            { return h }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

// count returns how many records at level carry msg.
func (h *recordHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

// baseTree is a record with an aligned string and an int.
func baseTree() *typetree.Node {
	return testutil.N("Base", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.N("int", "m_Value", 4),
	)
}

// linkTree is a record with a name and a pointer to another Link.
func linkTree() *typetree.Node {
	return testutil.N("Link", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.PPtrNode("Link", "m_Next"),
	)
}

func baseData(w *testutil.Writer, name string, value int32) []byte {
	return w.String(name).Align(4).I32(value).Bytes()
}

func linkData(name string, fileID int32, pathID int64) []byte {
	return testutil.LE().String(name).Align(4).I32(fileID).I64(pathID).Bytes()
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
		Blocks:    []testutil.Block{{Data: payload}},
		Entries:   entries,
	}.Bytes()
	require.NoError(t, err)
	return data
}

func loadBundle(t *testing.T, data []byte, opts ...Option) *Bundle {
	t.Helper()
	b, err := Load(NewMemorySource(data), opts...)
	require.NoError(t, err)
	return b
}

// singleAsset returns a standalone asset over the encoded file.
func singleAsset(t *testing.T, a testutil.Asset, opts ...Option) *Asset {
	t.Helper()
	asset := LoadAsset(NewMemorySource(a.Bytes()), "CAB-test", opts...)
	require.NoError(t, asset.Load())
	return asset
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o600)
}
