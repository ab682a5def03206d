package main

import (
	"fmt"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"strings"

	unitycore "github.com/meigma/unitypack/core"
	"github.com/meigma/unitypack/core/testutil"
)

// chainLength bounds the pointer chains followed by deep reads.
const chainLength = 16

// actorTree is the type tree of the generated objects.
func actorTree() *unitycore.TypeNode {
	return testutil.N("Actor", "Base", -1,
		testutil.StringNode("m_Name"),
		testutil.N("int", "m_Value", 4),
		testutil.VectorNode("vector", "m_Weights", testutil.N("float", "data", 4)),
		testutil.PPtrNode("Actor", "m_Next"),
	)
}

// makeBundle builds a UnityFS bundle holding one serialized file with
// cfg.objects Actor objects. Every object points at the next one, except at
// the end of each chain of chainLength objects.
//
//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func makeBundle(cfg config) ([]byte, error) {
	rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
	objects := make([]testutil.Object, 0, cfg.objects)
	for i := range cfg.objects {
		pathID := int64(i + 1)
		next := pathID + 1
		if (i+1)%chainLength == 0 || i == cfg.objects-1 {
			next = 0
		}

		w := testutil.LE()
		w.String(fmt.Sprintf("actor-%05d", i)).Align(4)
		w.I32(int32(rng.Intn(1 << 20))) //nolint:gosec // bounded above
		w.I32(int32(cfg.weights))       //nolint:gosec // flag value
		for range cfg.weights {
			if cfg.pattern == "random" {
				w.F32(rng.Float32())
			} else {
				w.F32(float32(i % 7))
			}
		}
		w.Align(4).I32(0).I64(next)
		objects = append(objects, testutil.Object{PathID: pathID, Data: w.Bytes()})
	}

	asset := testutil.Asset{
		Format: 17,
		Schema: testutil.Schema{
			Generator: "2019.4.0f1",
			Types:     []testutil.SchemaType{{ClassID: 1001, Tree: actorTree()}},
		},
		Objects: objects,
	}.Bytes()

	method, err := parseCompression(cfg.compression)
	if err != nil {
		return nil, err
	}
	var blocks []testutil.Block
	for off := 0; off < len(asset); off += cfg.blockSize {
		data := asset[off:min(off+cfg.blockSize, len(asset))]
		blockMethod := method
		if _, err := testutil.Compress(method, data); err != nil {
			// Incompressible blocks are stored, as Unity does.
			blockMethod = unitycore.CompressionNone
		}
		blocks = append(blocks, testutil.Block{Data: data, Method: blockMethod})
	}
	return testutil.FSBundle{
		Generator: "5.x.x",
		Engine:    "2019.4.0f1",
		Blocks:    blocks,
		Entries:   []testutil.Entry{{Name: "CAB-profile", Size: int64(len(asset))}},
	}.Bytes()
}

func parseCompression(name string) (unitycore.Compression, error) {
	switch strings.ToLower(name) {
	case "none":
		return unitycore.CompressionNone, nil
	case "lz4":
		return unitycore.CompressionLZ4, nil
	case "lz4hc":
		return unitycore.CompressionLZ4HC, nil
	case "zlib":
		return unitycore.CompressionZlib, nil
	default:
		return 0, fmt.Errorf("unknown compression: %s", name)
	}
}
