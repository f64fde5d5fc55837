package metacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"siren/internal/logging"
)

const lockRetryDelay = 50 * time.Millisecond

// JSONBackend stores the document as indented JSON. Reads and writes hold
// an advisory lock on path.lock so concurrent processes do not interleave.
type JSONBackend struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewJSONBackend returns a backend for the file at path. The file is created
// on first Save.
func NewJSONBackend(path string, logger *slog.Logger) *JSONBackend {
	return &JSONBackend{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "metacache"),
	}
}

// Path returns the document location.
func (b *JSONBackend) Path() string { return b.path }

// Load reads the document. Unreadable or invalid content is logged, unless
// the file is blank, and yields an empty document.
func (b *JSONBackend) Load(ctx context.Context) (Document, error) {
	var data []byte
	err := b.withLock(ctx, func() error {
		var readErr error
		data, readErr = os.ReadFile(b.path)
		return readErr
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newDocument(), nil
		}
		if ctx.Err() != nil {
			return Document{}, err
		}
		logging.ErrorWithContext(ctx, b.logger, "metadata cache unreadable", "metacache_read_failed",
			logging.String("path", b.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache file"),
			logging.String(logging.FieldImpact, "cache starts empty; songs will be fetched again"),
		)
		return newDocument(), nil
	}
	if strings.TrimSpace(string(data)) == "" {
		return newDocument(), nil
	}
	doc, err := decodeDocument(data)
	if err != nil {
		logging.ErrorWithContext(ctx, b.logger, "metadata cache invalid", "metacache_invalid",
			logging.String("path", b.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the file or run siren cache clear"),
			logging.String(logging.FieldImpact, "cache starts empty; the file is replaced on next save"),
		)
		return newDocument(), nil
	}
	b.logger.DebugContext(ctx, "loaded metadata cache",
		logging.Int("entry_count", len(doc.Entries)),
		logging.String("path", b.path),
	)
	return doc, nil
}

// Save validates doc and writes it atomically via a temp file.
func (b *JSONBackend) Save(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	return b.withLock(ctx, func() error {
		tmpPath := b.path + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := os.Rename(tmpPath, b.path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	})
}

// Close is a no-op; the lock is only held during Load and Save.
func (b *JSONBackend) Close() error { return nil }

func (b *JSONBackend) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	ok, err := b.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s: not acquired", b.lock.Path())
	}
	defer func() {
		if err := b.lock.Unlock(); err != nil {
			b.logger.Warn("failed to release cache lock", logging.Error(err))
		}
	}()
	return fn()
}
