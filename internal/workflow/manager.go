package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"siren/internal/catalog"
	"siren/internal/config"
	"siren/internal/download"
	"siren/internal/logging"
	"siren/internal/metacache"
	"siren/internal/preflight"
	"siren/internal/services"
)

// SongSource resolves song metadata. *catalog.Catalog implements it.
type SongSource interface {
	Song(ctx context.Context, ref any) (*catalog.Song, error)
	Songs(ctx context.Context) ([]catalog.SongRef, error)
}

// Result describes one song that ended up on disk.
type Result struct {
	Entry        metacache.Entry
	Cached       bool // metadata came from the cache
	Downloaded   bool // the file was fetched during this run
	Redownloaded bool // the recorded digest did not match and the file was fetched again
	Play         bool
}

// Manager coordinates metadata lookup, downloads and checksum bookkeeping.
type Manager struct {
	cfg        *config.Config
	songs      SongSource
	cache      *metacache.Cache
	downloader *download.Downloader
	logger     *slog.Logger
	reporter   Reporter
	guard      func(*config.Config) error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithReporter sends transfer progress to r.
func WithReporter(r Reporter) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.reporter = r
		}
	}
}

// WithGuard replaces the filesystem preflight run before any download.
func WithGuard(guard func(*config.Config) error) ManagerOption {
	return func(m *Manager) {
		m.guard = guard
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, songs SongSource, cache *metacache.Cache, downloader *download.Downloader, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:        cfg,
		songs:      songs,
		cache:      cache,
		downloader: downloader,
		logger:     logging.NewComponentLogger(logger, "workflow"),
		reporter:   nopReporter{},
		guard:      preflight.Guard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run fetches every requested song concurrently, bounded by the configured
// download concurrency. A cid named more than once is processed once. Results
// of the songs that succeeded are returned in request order together with the
// joined errors of those that did not.
func (m *Manager) Run(ctx context.Context, requests []Request) ([]Result, error) {
	ctx, logger := m.beginRun(ctx, "run")
	if err := m.preflight(); err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	requests = mergeRequests(requests)

	start := time.Now()
	logger.InfoContext(ctx, "workflow started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("song_count", len(requests)),
	)

	results := make([]Result, len(requests))
	errs := make([]error, len(requests))
	sem := make(chan struct{}, m.concurrency())
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = fmt.Errorf("song %s: %w", req.CID, ctx.Err())
				return
			}
			defer func() { <-sem }()
			results[i], errs[i] = m.processRequest(ctx, req)
		}()
	}
	wg.Wait()

	return m.finish(ctx, logger, "workflow completed", start, results, errs)
}

// SyncAll mirrors every song of the catalog into the download directory, in
// batches of the configured size. Files are always fetched again and their
// digests recorded.
func (m *Manager) SyncAll(ctx context.Context) ([]Result, error) {
	ctx, logger := m.beginRun(ctx, "sync")
	if err := m.preflight(); err != nil {
		return nil, err
	}

	start := time.Now()
	refs, err := m.songs.Songs(withStage(ctx, "metadata"))
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	batch := m.batchSize()
	logger.InfoContext(ctx, "sync started",
		logging.String(logging.FieldEventType, "sync_start"),
		logging.Int("song_count", len(refs)),
		logging.Int("batch_size", batch),
	)

	results := make([]Result, len(refs))
	errs := make([]error, len(refs))
	for offset := 0; offset < len(refs); offset += batch {
		if err := ctx.Err(); err != nil {
			for i := offset; i < len(refs); i++ {
				errs[i] = fmt.Errorf("song %s: %w", refs[i].CID(), err)
			}
			break
		}
		end := min(offset+batch, len(refs))
		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = m.syncSong(ctx, refs[i])
			}()
		}
		wg.Wait()
		if err := m.cache.Flush(ctx); err != nil {
			logging.WarnWithContext(ctx, logger, "metadata cache flush failed", "cache_flush_failed",
				logging.Int("batch_end", end),
				logging.Error(err),
				logging.String(logging.FieldImpact, "progress is retried at the next flush"),
			)
		}
		logger.DebugContext(ctx, "sync batch completed",
			logging.Int("batch_start", offset),
			logging.Int("batch_end", end),
		)
	}

	return m.finish(ctx, logger, "sync completed", start, results, errs)
}

func (m *Manager) beginRun(ctx context.Context, kind string) (context.Context, *slog.Logger) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, m.logger).With(logging.String("run", kind))
}

func (m *Manager) preflight() error {
	if m.guard == nil {
		return nil
	}
	if err := m.guard(m.cfg); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}
	return nil
}

// finish flushes the cache, which happens whatever the item outcomes were,
// and folds per-song errors into one.
func (m *Manager) finish(ctx context.Context, logger *slog.Logger, msg string, start time.Time, results []Result, errs []error) ([]Result, error) {
	flushErr := m.cache.Flush(context.WithoutCancel(ctx))
	if flushErr != nil {
		logging.ErrorWithContext(ctx, logger, "metadata cache flush failed", "cache_flush_failed",
			logging.Error(flushErr),
			logging.String(logging.FieldErrorHint, "check permissions of the cache path"),
		)
	}

	done := make([]Result, 0, len(results))
	failed := 0
	for i, res := range results {
		if errs[i] != nil {
			failed++
			continue
		}
		done = append(done, res)
	}
	logger.InfoContext(ctx, msg,
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("succeeded", len(done)),
		logging.Int("failed", failed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return done, errors.Join(append(errs, flushErr)...)
}

func (m *Manager) concurrency() int {
	if m.cfg != nil && m.cfg.Download.Concurrency > 0 {
		return m.cfg.Download.Concurrency
	}
	return 1
}

func (m *Manager) batchSize() int {
	if m.cfg != nil && m.cfg.Download.BatchSize > 0 {
		return m.cfg.Download.BatchSize
	}
	return 10
}

func withStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}

// progressFor adapts the downloader callback to the reporter. A zero-byte
// report starts a transfer. A canceled context interrupts it.
func (m *Manager) progressFor(ctx context.Context, cid, name string) download.Progress {
	return func(n, total int64) bool {
		if n == 0 {
			m.reporter.Begin(cid, name, total)
		} else {
			m.reporter.Advance(cid, n)
		}
		return ctx.Err() != nil
	}
}
