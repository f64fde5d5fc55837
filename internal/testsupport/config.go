package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"siren/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The API endpoint points at an unroutable address until WithAPIEndpoint is
// applied, and retries are disabled so failures surface immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.Endpoint = "http://127.0.0.1:1/api/"
	cfgVal.API.MaxRetries = 0
	cfgVal.API.RetryDelayMS = 1
	cfgVal.Download.Dir = filepath.Join(base, "music")
	cfgVal.Download.MinFreeMiB = 0
	cfgVal.Cache.Path = filepath.Join(base, "music", "metadata.json")
	cfgVal.Logging.Dir = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure test directories: %v", err)
	}
	return builder.cfg
}

// WithAPIEndpoint points the metadata client at endpoint.
func WithAPIEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Endpoint = endpoint
	}
}

// WithCacheBackend selects the metadata cache backend and its default file.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
		name := "metadata.json"
		if backend == config.CacheBackendSQLite {
			name = "metadata.db"
		}
		b.cfg.Cache.Path = filepath.Join(b.cfg.Download.Dir, name)
	}
}

// WithConcurrency sets download concurrency and sync batch size.
func WithConcurrency(concurrency, batch int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.Concurrency = concurrency
		b.cfg.Download.BatchSize = batch
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffplay is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffplay"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Download.Dir)
}
