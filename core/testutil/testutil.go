// Package testutil provides byte sources, caches and container builders for
// tests of the bundle reader.
package testutil

import (
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
)

// MockByteSource implements a simple in-memory byte source for tests.
type MockByteSource struct {
	data     []byte
	sourceID string

	mu    sync.Mutex
	reads int
}

// NewMockByteSource returns a byte source backed by the provided data.
func NewMockByteSource(data []byte) *MockByteSource {
	return &MockByteSource{
		data:     data,
		sourceID: "mock:" + digest.FromBytes(data).Encoded(),
	}
}

// ReadAt implements io.ReaderAt semantics over the backing slice.
func (m *MockByteSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Size returns the total size of the backing data.
func (m *MockByteSource) Size() int64 {
	return int64(len(m.data))
}

// SourceID returns a stable identifier for the source data.
func (m *MockByteSource) SourceID() string {
	return m.sourceID
}

// Reads returns the number of ReadAt calls served so far.
func (m *MockByteSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// MockCache implements a basic concurrency-safe block cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte
	max  int64
	hits int
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Get returns a cached block.
func (c *MockCache) Get(key []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.data[string(key)]
	if ok {
		c.hits++
	}
	return data, ok
}

// Put stores a copy of data.
func (c *MockCache) Put(key []byte, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[string(key)] = append([]byte(nil), data...)
	return nil
}

// Delete removes cached content for the given key.
func (c *MockCache) Delete(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, string(key))
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *MockCache) MaxBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.max
}

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Prune removes cached entries until the cache is at or below targetBytes.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	if total <= targetBytes {
		return 0, nil
	}
	var freed int64
	for key, data := range c.data {
		if total <= targetBytes {
			break
		}
		delete(c.data, key)
		total -= int64(len(data))
		freed += int64(len(data))
	}
	return freed, nil
}

// Len returns the number of cached blocks.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Hits returns the number of successful Get calls.
func (c *MockCache) Hits() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits
}
