package unitypack

import "github.com/meigma/unitypack/core/internal/unitytype"

// Sentinel errors re-exported from internal/unitytype.
var (
	// ErrTruncatedInput is returned when fewer bytes remain than a read requires.
	ErrTruncatedInput = unitytype.ErrTruncatedInput

	// ErrUnsupportedCompression is returned for LZMA, LZHAM and LZFSE data.
	ErrUnsupportedCompression = unitytype.ErrUnsupportedCompression

	// ErrMalformedContainer is returned when a bundle, asset or type tree
	// violates its layout.
	ErrMalformedContainer = unitytype.ErrMalformedContainer

	// ErrSchemaMissing is returned when reading an object that has no type tree.
	ErrSchemaMissing = unitytype.ErrSchemaMissing

	// ErrCyclicReference is returned by deep reads that revisit an object.
	ErrCyclicReference = unitytype.ErrCyclicReference

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = unitytype.ErrSizeOverflow

	// ErrAssetNotFound is returned when a referenced asset cannot be located.
	ErrAssetNotFound = unitytype.ErrAssetNotFound
)
