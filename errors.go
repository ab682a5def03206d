package unitypack

import unitycore "github.com/meigma/unitypack/core"

// Errors re-exported from core.
var (
	// ErrTruncatedInput is returned when fewer bytes remain than a read requires.
	ErrTruncatedInput = unitycore.ErrTruncatedInput

	// ErrUnsupportedCompression is returned for LZMA, LZHAM and LZFSE data.
	ErrUnsupportedCompression = unitycore.ErrUnsupportedCompression

	// ErrMalformedContainer is returned when a bundle, asset or type tree
	// violates its layout.
	ErrMalformedContainer = unitycore.ErrMalformedContainer

	// ErrSchemaMissing is returned when reading an object that has no type tree.
	ErrSchemaMissing = unitycore.ErrSchemaMissing

	// ErrCyclicReference is returned by deep reads that revisit an object.
	ErrCyclicReference = unitycore.ErrCyclicReference

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = unitycore.ErrSizeOverflow

	// ErrAssetNotFound is returned when an asset or bundle cannot be located.
	ErrAssetNotFound = unitycore.ErrAssetNotFound
)
