package disk

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeebo/blake3"
)

func key(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	block := bytes.Repeat([]byte("decoded"), 32)
	k := key([]byte("compressed"))
	if err := c.Put(k, block); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(k)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, block) {
		t.Fatalf("Get() = %q, want %q", got, block)
	}
	if c.SizeBytes() != int64(len(block)) {
		t.Fatalf("SizeBytes() = %d, want %d", c.SizeBytes(), len(block))
	}

	hexKey := hex.EncodeToString(k)
	path := filepath.Join(dir, hexKey[:defaultShardPrefixLen], hexKey)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected block file at %s: %v", path, err)
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	k := key([]byte("x"))
	if err := c.Put(k, []byte("y")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, hex.EncodeToString(k))); err != nil {
		t.Fatalf("expected unsharded block file: %v", err)
	}
}

func TestCacheMissAndDelete(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	k := key([]byte("missing"))
	if _, ok := c.Get(k); ok {
		t.Fatal("Get() on empty cache ok = true")
	}
	if err := c.Delete(k); err != nil {
		t.Fatalf("Delete() of missing key error = %v", err)
	}

	if err := c.Put(k, []byte("data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Delete(k); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(k); ok {
		t.Fatal("Get() after Delete ok = true")
	}
	if c.SizeBytes() != 0 {
		t.Fatalf("SizeBytes() = %d, want 0", c.SizeBytes())
	}
}

func TestCacheMaxBytesPrunesOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(10))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	oldKey := key([]byte("old"))
	newKey := key([]byte("new"))
	if err := c.Put(oldKey, []byte("123456")); err != nil {
		t.Fatalf("Put(old) error = %v", err)
	}
	hexOld := hex.EncodeToString(oldKey)
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, hexOld[:2], hexOld), past, past); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	if err := c.Put(newKey, []byte("abcdef")); err != nil {
		t.Fatalf("Put(new) error = %v", err)
	}
	if _, ok := c.Get(oldKey); ok {
		t.Fatal("oldest block should have been pruned")
	}
	if _, ok := c.Get(newKey); !ok {
		t.Fatal("newest block should be cached")
	}
	if c.SizeBytes() > c.MaxBytes() {
		t.Fatalf("SizeBytes() = %d exceeds MaxBytes() = %d", c.SizeBytes(), c.MaxBytes())
	}
}

func TestCacheOversizedBlockSkipped(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	k := key([]byte("big"))
	if err := c.Put(k, []byte("too large")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := c.Get(k); ok {
		t.Fatal("oversized block should not be cached")
	}
}

func TestNewReportsExistingSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(key([]byte("a")), []byte("abc")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	if reopened.SizeBytes() != 3 {
		t.Fatalf("SizeBytes() after reopen = %d, want 3", reopened.SizeBytes())
	}
}

func TestNewInvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil")
	}
	if _, err := New(t.TempDir(), WithMaxBytes(-1)); err == nil {
		t.Fatal("New() with negative max bytes error = nil")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() with negative shard prefix error = nil")
	}
}
