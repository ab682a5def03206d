package cache

// BlockCache stores decompressed blocks.
//
// Keys are digests of the compressed block bytes together with the compression
// method and the declared uncompressed size. Implementations must be safe for
// concurrent use and handle their own size limits.
type BlockCache interface {
	// Get returns the decoded block for key.
	// Returns nil, false if the block is not cached.
	Get(key []byte) ([]byte, bool)

	// Put stores a decoded block. The cache must not retain data after
	// Put returns unless it copies it.
	Put(key []byte, data []byte) error

	// Delete removes a cached block. Missing entries are a no-op.
	Delete(key []byte) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
