// Package loader implements the Compiler/Loader: it turns one photon
// source file and a configuration record into a running instance, caching
// compiled artifacts by content hash so reload after an unrelated edit
// elsewhere on disk never pays a full rebuild twice.
package loader

import (
	"context"
	"os"
	"sync"

	"github.com/photon-run/photon/internal/analyzer"
	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/telemetry"
)

// Result bundles everything the Photon Instance (component C) needs after
// a successful load: the instantiated object and the catalog the analyzer
// derived from its source.
type Result struct {
	Instance    *LoadedPhoton
	Spec        catalog.Spec
	SourceBytes []byte
}

// Loader compiles and instantiates photon source files, content-addressed
// by source bytes plus declared dependencies.
type Loader struct {
	cache   *Cache
	workDir string
	log     telemetry.Logger

	mu       sync.Mutex
	buildSem chan struct{} // bounds concurrent "go build" subprocesses
}

// New constructs a Loader backed by a cache directory under dataDir.
func New(dataDir string, log telemetry.Logger) (*Loader, error) {
	cache, err := NewCache(dataDir + "/cache")
	if err != nil {
		return nil, err
	}
	workDir := dataDir + "/build"
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, err
	}
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Loader{cache: cache, workDir: workDir, log: log, buildSem: make(chan struct{}, 4)}, nil
}

// Load resolves a photon source file into a running instance. configRecord
// supplies values for the root struct's exported fields; missing required
// fields surface as NotConfigured once the config store has had a chance
// to backfill defaults and environment overrides (that backfill happens in
// internal/config, not here).
func (l *Loader) Load(ctx context.Context, sourcePath string, configRecord map[string]any) (*Result, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.LoadError, err, "read source file")
	}
	return l.LoadSource(ctx, sourcePath, source, configRecord)
}

// LoadSource is Load with the source bytes already in memory, used by the
// serve command, which has already read the file to analyze it. The file
// watcher reloads through Load, which reads the file again.
func (l *Loader) LoadSource(ctx context.Context, sourcePath string, source []byte, configRecord map[string]any) (*Result, error) {
	skeleton, err := analyzer.Analyze(string(source))
	if err != nil {
		return nil, err
	}

	deps, err := parseDependencies(string(source))
	if err != nil {
		return nil, photonerr.Wrap(photonerr.LoadError, err, "parse dependency directives")
	}

	key := Key(source, deps)
	soPath := l.cache.Path(key)
	if !l.cache.Has(key) {
		built, err := l.build(ctx, string(source), deps)
		if err != nil {
			return nil, err
		}
		soPath, err = l.cache.Store(key, built)
		if err != nil {
			return nil, err
		}
		l.log.Info(ctx, "photon compiled", "source", sourcePath, "cacheKey", key)
	} else {
		l.log.Debug(ctx, "photon cache hit", "source", sourcePath, "cacheKey", key)
	}

	instance, err := instantiate(soPath, configRecord)
	if err != nil {
		return nil, err
	}

	spec := specFromSkeleton(skeleton, source, sourcePath)
	return &Result{Instance: instance, Spec: spec, SourceBytes: source}, nil
}

// build bounds concurrent compiles to four through a small semaphore; "go
// build -buildmode=plugin" is memory-heavy enough that unbounded
// concurrency across many reloading photons would thrash the host.
func (l *Loader) build(ctx context.Context, source string, deps []Dependency) (string, error) {
	l.buildSem <- struct{}{}
	defer func() { <-l.buildSem }()
	return compile(ctx, source, deps, l.workDir)
}

func specFromSkeleton(skel *analyzer.SpecSkeleton, source []byte, sourcePath string) catalog.Spec {
	return catalog.Spec{
		Name:         skel.Name,
		DisplayName:  skel.Name,
		Description:  skel.Description,
		Tools:        skel.Tools,
		Prompts:      skel.Prompts,
		Resources:    skel.Resources,
		ConfigSchema: skel.ConfigSchema,
		SourceHash:   Key(source, nil),
		SourcePath:   sourcePath,
	}
}
