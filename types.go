package unitypack

import unitycore "github.com/meigma/unitypack/core"

// --- Re-exports from core ---

// Bundle is a parsed asset bundle.
type Bundle = unitycore.Bundle

// Asset is one serialized file inside a bundle.
type Asset = unitycore.Asset

// ObjectInfo describes one object of an asset.
type ObjectInfo = unitycore.ObjectInfo

// Value is a deserialized object or field.
type Value = unitycore.Value

// Record is an ordered set of named fields.
type Record = unitycore.Record

// ObjectPointer is a typed reference to an object.
type ObjectPointer = unitycore.ObjectPointer

// ByteSource provides random access to bundle bytes.
type ByteSource = unitycore.ByteSource

// Registry maps type names to materializers.
type Registry = unitycore.Registry

// Materializer converts a record into a native value.
type Materializer = unitycore.Materializer

// Kind identifies the shape of a Value.
type Kind = unitycore.Kind

// Kind constants.
const (
	KindInvalid = unitycore.KindInvalid
	KindBool    = unitycore.KindBool
	KindInt     = unitycore.KindInt
	KindUint    = unitycore.KindUint
	KindFloat   = unitycore.KindFloat
	KindBytes   = unitycore.KindBytes
	KindString  = unitycore.KindString
	KindList    = unitycore.KindList
	KindPair    = unitycore.KindPair
	KindRecord  = unitycore.KindRecord
	KindPointer = unitycore.KindPointer
)

// NewRegistry returns an empty registry.
var NewRegistry = unitycore.NewRegistry

// SplitArchivePath splits an "archive:/<bundle>/<asset>" path.
var SplitArchivePath = unitycore.SplitArchivePath
