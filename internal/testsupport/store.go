package testsupport

import (
	"context"
	"testing"

	"siren/internal/config"
	"siren/internal/logging"
	"siren/internal/metacache"
)

// MustOpenCache opens the metadata cache described by cfg and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *metacache.Cache {
	t.Helper()

	cache, err := metacache.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("metacache.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = cache.Close()
	})
	return cache
}
