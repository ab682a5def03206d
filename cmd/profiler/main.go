package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/unitypack"
	unitycore "github.com/meigma/unitypack/core"
	"github.com/meigma/unitypack/core/testutil"
	"github.com/meigma/unitypack/engine"
)

const cacheNone = "none"

type config struct {
	mode            string
	objects         int
	weights         int
	blockSize       int
	compression     string
	pattern         string
	dataURL         string
	dataHTTPLatency time.Duration
	dataHTTPBPS     int64
	readAhead       int64 // -1 = source default
	fgProfile       string
	duration        time.Duration
	iterations      int
	pprofAddr       string
	cpuProfile      string
	memProfile      string
	traceFile       string
	cache           string
	cacheDir        string
	exportFormat    string
	materialize     bool
	concurrency     int
	tempDir         string
	keepTemp        bool
	randomSeed      int64
	paths           []string
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkValue  unitycore.Value
	sinkBundle *unitycore.Bundle
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	ds, err := newDataset(cfg)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}
	defer ds.close()

	var stopFG func() error
	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG = fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, ds, dir)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d objects=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.objects,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
	if ds.remote != nil {
		fmt.Printf("http requests=%d read-ahead=%d\n", ds.remote.Requests(), cfg.readAhead)
	}
}

type profileStats struct {
	ops     int
	objects int
	bytes   int64
	elapsed time.Duration
}

// dataset is the set of bundles a run loads: files named on the command line,
// or one generated bundle served from memory or HTTP.
type dataset struct {
	paths  []string
	source unitycore.ByteSource
	remote *remote // nil unless the bundle is read over HTTP
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newDataset(cfg config) (*dataset, error) {
	if len(cfg.paths) > 0 {
		return &dataset{paths: cfg.paths}, nil
	}
	data, err := makeBundle(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.dataURL == "" {
		return &dataset{source: unitycore.NewMemorySource(data)}, nil
	}
	r, err := newRemote(cfg, data)
	if err != nil {
		return nil, err
	}
	return &dataset{source: r.source, remote: r}, nil
}

func (d *dataset) close() {
	if d.remote != nil {
		d.remote.close()
	}
}

// load parses every bundle of the dataset into env and returns their
// payload size.
func (d *dataset) load(ctx context.Context, env *unitypack.Environment) ([]*unitycore.Bundle, int64, error) {
	var bundles []*unitycore.Bundle
	if d.source != nil {
		b, err := env.LoadSource(d.source, "generated")
		if err != nil {
			return nil, 0, err
		}
		bundles = []*unitycore.Bundle{b}
	} else {
		var err error
		if bundles, err = env.LoadAll(ctx, d.paths); err != nil {
			return nil, 0, err
		}
	}
	var size int64
	for _, b := range bundles {
		size += b.PayloadSize()
	}
	return bundles, size, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func newEnvironment(cfg config, rootDir string) (*unitypack.Environment, func() error, error) {
	opts := []unitypack.Option{unitypack.WithLoadConcurrency(cfg.concurrency)}
	if cfg.materialize {
		opts = append(opts, unitypack.WithRegistry(engine.NewRegistry()))
	}
	cleanup := func() error { return nil }

	switch cfg.cache {
	case cacheNone:
	case "memory":
		opts = append(opts, unitypack.WithBlockCache(testutil.NewMockCache()))
	case "disk":
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			base := filepath.Join(rootDir, "cache")
			if err := os.MkdirAll(base, 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
				return nil, nil, err
			}
			dir, err := os.MkdirTemp(base, "run-*")
			if err != nil {
				return nil, nil, err
			}
			cacheDir = dir
			cleanup = func() error { return os.RemoveAll(dir) }
		}
		opts = append(opts, unitypack.WithBlockCacheDir(cacheDir))
	default:
		return nil, nil, fmt.Errorf("unknown cache: %s", cfg.cache)
	}

	env, err := unitypack.New(opts...)
	if err != nil {
		_ = cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
		return nil, nil, err
	}
	return env, func() error {
		return errors.Join(env.Close(), cleanup())
	}, nil
}

// visit calls fn for every object of every serialized file in bundles.
func visit(bundles []*unitycore.Bundle, fn func(obj *unitycore.ObjectInfo) error) (int, int64, error) {
	count := 0
	var size int64
	for _, b := range bundles {
		for _, a := range b.Assets() {
			if a.IsResource() {
				continue
			}
			objects, err := a.Objects()
			if err != nil {
				return 0, 0, fmt.Errorf("%s: %w", a.Name, err)
			}
			for _, obj := range objects {
				if err := fn(obj); err != nil {
					return 0, 0, fmt.Errorf("%s: %s: %w", a.Name, obj, err)
				}
				count++
				size += int64(obj.Size)
			}
		}
	}
	return count, size, nil
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, ds *dataset, rootDir string) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	ops := 0
	objects := 0
	var byteCount int64

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "load":
		for shouldContinue() {
			env, cleanup, err := newEnvironment(cfg, rootDir)
			if err != nil {
				return profileStats{}, err
			}
			bundles, size, err := ds.load(ctx, env)
			count := 0
			if err == nil {
				count, _, err = visit(bundles, func(*unitycore.ObjectInfo) error { return nil })
			}
			if cerr := cleanup(); err == nil {
				err = cerr
			}
			if err != nil {
				return profileStats{}, err
			}
			if len(bundles) > 0 {
				sinkBundle = bundles[0]
			}
			objects += count
			byteCount += size
			ops++
		}

	case "read", "deep", "export":
		env, cleanup, err := newEnvironment(cfg, rootDir)
		if err != nil {
			return profileStats{}, err
		}
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler

		bundles, _, err := ds.load(ctx, env)
		if err != nil {
			return profileStats{}, err
		}
		read, err := objectReader(cfg)
		if err != nil {
			return profileStats{}, err
		}

		start = time.Now()
		for shouldContinue() {
			count, size, err := visit(bundles, read)
			if err != nil {
				return profileStats{}, err
			}
			objects += count
			byteCount += size
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		objects: objects,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func objectReader(cfg config) (func(obj *unitycore.ObjectInfo) error, error) {
	switch cfg.mode {
	case "read":
		return func(obj *unitycore.ObjectInfo) error {
			v, err := obj.Read()
			sinkValue = v
			return err
		}, nil
	case "deep":
		return func(obj *unitycore.ObjectInfo) error {
			v, err := obj.ReadDeep()
			if errors.Is(err, unitycore.ErrCyclicReference) {
				// Cycles are legal in real bundles; count the shallow read.
				v, err = obj.Read()
			}
			sinkValue = v
			return err
		}, nil
	default:
		format, err := unitypack.ParseFormat(cfg.exportFormat)
		if err != nil {
			return nil, err
		}
		return func(obj *unitycore.ObjectInfo) error {
			v, err := obj.Read()
			if err != nil {
				return err
			}
			return unitypack.Export(io.Discard, v, format)
		}, nil
	}
}

func parseFlags() config {
	var cfg config
	var dataHTTPBPS, readAhead string
	flags := pflag.NewFlagSet("profiler", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: profiler [flags] [bundle ...]\n\n")
		fmt.Fprintf(os.Stderr, "Without bundle paths a bundle is generated.\n\n")
		flags.PrintDefaults()
	}
	flags.StringVar(&cfg.mode, "mode", "read", "mode: load, read, deep, export")
	flags.IntVar(&cfg.objects, "objects", 4096, "number of generated objects")
	flags.IntVar(&cfg.weights, "weights", 32, "float array length of each generated object")
	flags.IntVar(&cfg.blockSize, "block-size", 128<<10, "uncompressed archive block size of the generated bundle")
	flags.StringVar(&cfg.compression, "compression", "lz4hc", "block compression: none, lz4, lz4hc, zlib")
	flags.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flags.StringVar(&cfg.dataURL, "data-url", "", "HTTP bundle URL (use \"local\" to serve the generated bundle)")
	flags.DurationVar(&cfg.dataHTTPLatency, "data-http-latency", 0, "per-request latency for HTTP data source")
	flags.StringVar(&dataHTTPBPS, "data-http-bps", "", "bytes/sec throttle for HTTP data source (e.g. 10MBps)")
	flags.StringVar(&readAhead, "data-http-read-ahead", "", "minimum HTTP range request size (e.g. 256KiB, 0 = exact reads)")
	flags.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flags.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flags.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flags.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flags.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flags.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flags.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flags.StringVar(&cfg.cache, "cache", cacheNone, "decoded block cache: memory, disk, none")
	flags.StringVar(&cfg.cacheDir, "cache-dir", "", "cache directory (disk cache only)")
	flags.StringVar(&cfg.exportFormat, "format", "json", "export format: json, yaml, cbor, msgpack")
	flags.BoolVar(&cfg.materialize, "materialize", false, "apply the engine materializers while reading")
	flags.IntVar(&cfg.concurrency, "concurrency", 0, "bundles parsed in parallel (0 = GOMAXPROCS)")
	flags.StringVar(&cfg.tempDir, "temp-dir", "", "directory for disk caches")
	flags.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flags.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	_ = flags.Parse(os.Args[1:]) //nolint:errcheck // ExitOnError exits on failure
	cfg.paths = flags.Args()

	if dataHTTPBPS != "" {
		bps, err := parseByteSize(dataHTTPBPS)
		if err != nil {
			log.Fatalf("data-http-bps: %v", err)
		}
		cfg.dataHTTPBPS = bps
	}
	cfg.readAhead = -1
	switch readAhead {
	case "":
	case "0":
		cfg.readAhead = 0
	default:
		n, err := parseByteSize(readAhead)
		if err != nil {
			log.Fatalf("data-http-read-ahead: %v", err)
		}
		cfg.readAhead = n
	}
	if cfg.objects <= 0 || cfg.blockSize <= 0 || cfg.weights < 0 {
		log.Fatal("objects and block-size must be positive, weights non-negative")
	}
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "unitypack-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}
