package metacache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"siren/internal/config"
	"siren/internal/logging"
	"siren/internal/msr"
)

// ErrNotCached reports a cid with no entry.
var ErrNotCached = errors.New("song not cached")

// Cache is the in-memory view of a backend document. Mutations mark the
// cache dirty; Flush writes it back.
type Cache struct {
	backend Backend
	logger  *slog.Logger

	flushMu sync.Mutex
	mu      sync.RWMutex
	doc     Document
	dirty   bool
}

// Open loads the cache selected by cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Cache, error) {
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	cache, err := New(ctx, backend, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return cache, nil
}

// New loads the document held by backend.
func New(ctx context.Context, backend Backend, logger *slog.Logger) (*Cache, error) {
	doc, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load metadata cache: %w", err)
	}
	return &Cache{
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "metacache"),
		doc:     doc,
	}, nil
}

// Lookup returns the entry for cid.
func (c *Cache) Lookup(cid string) (Entry, bool) {
	cid = strings.TrimSpace(cid)
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.doc.Entries[cid]
	return entry, ok
}

// Put stores entry, replacing any entry with the same cid.
func (c *Cache) Put(entry Entry) error {
	entry.CID = strings.TrimSpace(entry.CID)
	if entry.CID == "" {
		return errors.New("cid cannot be empty")
	}
	if entry.Data.CID != entry.CID {
		return fmt.Errorf("entry %q carries song %q", entry.CID, entry.Data.CID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.Entries[entry.CID] = entry
	c.dirty = true
	return nil
}

// Record stores the metadata of song, keeping any path and digest already
// recorded for it.
func (c *Cache) Record(song msr.SongDetail) Entry {
	song.CID = strings.TrimSpace(song.CID)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.doc.Entries[song.CID]
	entry.CID = song.CID
	entry.Data = song
	c.doc.Entries[song.CID] = entry
	c.dirty = true
	return entry
}

// SetFile records where cid was downloaded and the digest of that file.
func (c *Cache) SetFile(cid, path, digest string) (Entry, error) {
	cid = strings.TrimSpace(cid)
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.doc.Entries[cid]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotCached, cid)
	}
	entry.Path = path
	entry.B3Sum = digest
	c.doc.Entries[cid] = entry
	c.dirty = true
	return entry, nil
}

// Invalidate forgets the file recorded for cid but keeps its metadata.
func (c *Cache) Invalidate(cid string) (Entry, error) {
	return c.SetFile(cid, "", "")
}

// Remove deletes the entry for cid.
func (c *Cache) Remove(cid string) error {
	cid = strings.TrimSpace(cid)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.doc.Entries[cid]; !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, cid)
	}
	delete(c.doc.Entries, cid)
	c.dirty = true
	return nil
}

// List returns every entry sorted by cid.
func (c *Cache) List() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]Entry, 0, len(c.doc.Entries))
	for _, entry := range c.doc.Entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CID < entries[j].CID
	})
	return entries
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = newDocument()
	c.dirty = true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.doc.Entries)
}

// Dirty reports whether there are unflushed changes.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// Flush writes the document to the backend if it changed.
func (c *Cache) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	doc := c.doc.clone()
	c.dirty = false
	c.mu.Unlock()

	if err := c.backend.Save(ctx, doc); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return fmt.Errorf("persist metadata cache: %w", err)
	}
	c.logger.DebugContext(ctx, "metadata cache flushed", logging.Int("entry_count", len(doc.Entries)))
	return nil
}

// Close releases the backend without flushing.
func (c *Cache) Close() error {
	return c.backend.Close()
}
