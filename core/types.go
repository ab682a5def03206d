package unitypack

import (
	"github.com/meigma/unitypack/core/internal/blockstream"
	"github.com/meigma/unitypack/core/internal/typetree"
	"github.com/meigma/unitypack/core/internal/unitytype"
)

// Re-export types from the internal packages for the public API.
type (
	// Signature is the archive variant named by the leading bundle string.
	Signature = unitytype.Signature

	// Compression identifies the compression method of a block.
	Compression = unitytype.Compression

	// RuntimePlatform is the target platform recorded in a type schema.
	RuntimePlatform = unitytype.RuntimePlatform

	// ArchiveBlock is one entry of an FS bundle's block index.
	ArchiveBlock = blockstream.Block

	// TypeNode is one node of a type tree.
	TypeNode = typetree.Node

	// Metadata is the type schema of one serialized file.
	Metadata = typetree.Metadata
)

// Re-export signature constants.
const (
	SignatureFS  = unitytype.SignatureFS
	SignatureWeb = unitytype.SignatureWeb
	SignatureRaw = unitytype.SignatureRaw
)

// Re-export compression constants.
const (
	CompressionNone  = unitytype.CompressionNone
	CompressionLZMA  = unitytype.CompressionLZMA
	CompressionLZ4   = unitytype.CompressionLZ4
	CompressionLZ4HC = unitytype.CompressionLZ4HC
	CompressionLZHAM = unitytype.CompressionLZHAM
	CompressionLZFSE = unitytype.CompressionLZFSE
	CompressionZlib  = unitytype.CompressionZlib
)
