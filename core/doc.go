// Package unitypack reads Unity asset bundles.
//
// A bundle is an archive of serialized files called assets. Load parses the
// bundle header and directory; each Asset parses its own type schema and
// object table on first access, and each object is deserialized on demand
// into a Value by walking its type tree.
//
// Bundles come in two layouts:
//   - UnityFS: a block index and a directory, with the payload split into
//     independently compressed blocks that are decoded as they are read
//   - UnityRaw and UnityWeb: a fixed header followed by the assets
//
// Pointers between objects are kept as ObjectPointer values and resolved
// lazily, through an AssetLocator when they cross asset boundaries.
package unitypack
