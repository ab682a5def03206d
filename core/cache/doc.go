// Package cache provides caching for decompressed archive blocks.
//
// Decompressing an LZ4 or zlib block is the dominant cost of reading objects
// out of a block-archive bundle. A BlockStream discards its decoded block when
// a read moves elsewhere, so workloads that jump between objects in different
// blocks decode the same block repeatedly. A BlockCache keeps decoded blocks
// keyed by a digest of their compressed bytes, which makes entries shareable
// across bundles that contain identical blocks.
package cache
