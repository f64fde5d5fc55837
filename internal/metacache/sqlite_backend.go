package metacache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	cid   TEXT PRIMARY KEY,
	data  TEXT NOT NULL,
	path  TEXT,
	b3sum TEXT
);
`

// SQLiteBackend stores one row per entry. Save rewrites every row inside a
// single transaction.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// OpenSQLiteBackend opens or creates the database at path.
func OpenSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('version', ?)`, fmt.Sprint(Version)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema version: %w", err)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

// Path returns the database location.
func (b *SQLiteBackend) Path() string { return b.path }

func (b *SQLiteBackend) Load(ctx context.Context) (Document, error) {
	var version string
	if err := b.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'version'`).Scan(&version); err != nil {
		return Document{}, fmt.Errorf("read version: %w", err)
	}
	if version != fmt.Sprint(Version) {
		return Document{}, fmt.Errorf("%w: version %s, want %d", ErrInvalidDocument, version, Version)
	}

	rows, err := b.db.QueryContext(ctx, `SELECT cid, data, path, b3sum FROM entries ORDER BY cid`)
	if err != nil {
		return Document{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	doc := newDocument()
	for rows.Next() {
		var (
			entry Entry
			data  string
			path  sql.NullString
			sum   sql.NullString
		)
		if err := rows.Scan(&entry.CID, &data, &path, &sum); err != nil {
			return Document{}, fmt.Errorf("scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &entry.Data); err != nil {
			return Document{}, fmt.Errorf("%w: entry %q: %w", ErrInvalidDocument, entry.CID, err)
		}
		entry.Path = path.String
		entry.B3Sum = sum.String
		doc.Entries[entry.CID] = entry
	}
	if err := rows.Err(); err != nil {
		return Document{}, fmt.Errorf("iterate entries: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		return withTx(ctx, b.db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
				return fmt.Errorf("clear entries: %w", err)
			}
			stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (cid, data, path, b3sum) VALUES (?, ?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			defer stmt.Close()
			for cid, entry := range doc.Entries {
				data, err := json.Marshal(entry.Data)
				if err != nil {
					return fmt.Errorf("marshal entry %q: %w", cid, err)
				}
				if _, err := stmt.ExecContext(ctx, cid, string(data), nullable(entry.Path), nullable(entry.B3Sum)); err != nil {
					return fmt.Errorf("insert entry %q: %w", cid, err)
				}
			}
			return nil
		})
	})
}

func (b *SQLiteBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// withTx runs fn inside a transaction, rolling back when fn fails.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
