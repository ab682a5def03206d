package unitytype

import "errors"

// Sentinel errors shared by the parsing packages.
var (
	// ErrTruncatedInput is returned when fewer bytes remain than a read requires.
	ErrTruncatedInput = errors.New("unitypack: truncated input")

	// ErrUnsupportedCompression is returned for compression methods that are
	// present in the data but not implemented (LZMA, LZHAM, LZFSE).
	ErrUnsupportedCompression = errors.New("unitypack: unsupported compression")

	// ErrMalformedContainer is returned when a bundle or asset header violates
	// the container layout.
	ErrMalformedContainer = errors.New("unitypack: malformed container")

	// ErrSchemaMissing is returned when no type tree can be found for an object.
	ErrSchemaMissing = errors.New("unitypack: schema missing")

	// ErrCyclicReference is returned when a deep read revisits an object that
	// is still being resolved.
	ErrCyclicReference = errors.New("unitypack: cyclic reference")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("unitypack: size overflow")

	// ErrAssetNotFound is returned by lookups that name an asset that is not
	// loaded and cannot be discovered.
	ErrAssetNotFound = errors.New("unitypack: asset not found")
)
