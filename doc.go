// Package unitypack reads Unity asset bundles: the UnityFS, UnityRaw and
// UnityWeb containers, the serialized files inside them, and the objects
// those files hold.
//
// This package provides [Environment], which loads bundles, caches their
// assets by name and resolves references between bundles. For parsing a
// single bundle without an environment, use the [core] subpackage.
//
// # Quick Start
//
// Load a bundle and read its objects:
//
//	env, err := unitypack.New(unitypack.WithBasePath("./bundles"))
//	if err != nil {
//	    return err
//	}
//	defer env.Close()
//
//	b, err := env.Load("./bundles/characters.unity3d")
//	if err != nil {
//	    return err
//	}
//	for _, asset := range b.Assets() {
//	    for _, obj := range asset.All() {
//	        v, err := obj.Read()
//	        ...
//	    }
//	}
//
// # References
//
// Pointers into other serialized files are resolved through the
// environment: assets already loaded are found by name, and missing bundles
// are found with the configured [Discoverer]. Pass the registry from
// engine.NewRegistry to [WithRegistry] to get typed GameObject, Material and
// Texture2D values.
//
// # Export
//
// [Export] writes a value as JSON, YAML, CBOR or MessagePack.
package unitypack
