package metacache

import (
	"context"
	"fmt"
	"log/slog"

	"siren/internal/config"
	"siren/internal/services"
)

// Backend loads and stores whole cache documents.
type Backend interface {
	// Load returns the stored document, or an empty one when nothing usable
	// is stored.
	Load(ctx context.Context) (Document, error)
	// Save replaces the stored document with doc.
	Save(ctx context.Context, doc Document) error
	Close() error
}

// OpenBackend opens the backend selected by cfg.Cache.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Backend, error) {
	switch cfg.Cache.Backend {
	case "", config.CacheBackendJSON:
		return NewJSONBackend(cfg.Cache.Path, logger), nil
	case config.CacheBackendSQLite:
		return OpenSQLiteBackend(ctx, cfg.Cache.Path)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "metacache", "open backend",
			fmt.Sprintf("unknown cache backend %q", cfg.Cache.Backend), nil)
	}
}
