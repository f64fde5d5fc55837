package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"siren/internal/catalog"
	"siren/internal/checksum"
	"siren/internal/logging"
	"siren/internal/metacache"
	"siren/internal/services"
)

func (m *Manager) processRequest(ctx context.Context, req Request) (Result, error) {
	ctx = services.WithSongID(ctx, req.CID)
	var transferErr error
	defer func() { m.reporter.Finish(req.CID, transferErr) }()

	var (
		entry  metacache.Entry
		cached bool
	)
	err := m.runStage(ctx, "metadata", func(ctx context.Context, logger *slog.Logger) error {
		if hit, ok := m.cache.Lookup(req.CID); ok {
			logger.InfoContext(ctx, "fetching song", logging.Bool("cached", true))
			entry, cached = hit, true
			return nil
		}
		logger.InfoContext(ctx, "fetching song", logging.Bool("cached", false))
		song, err := m.songs.Song(ctx, req.CID)
		if err != nil {
			return err
		}
		entry = m.cache.Record(song.Detail())
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", req.CID, err)
	}

	song := catalog.NewSong(entry.Data)
	progress := m.progressFor(ctx, req.CID, song.Name())

	var (
		path       string
		downloaded bool
	)
	err = m.runStage(ctx, "download", func(ctx context.Context, logger *slog.Logger) error {
		if entry.Path == "" {
			logger.InfoContext(ctx, "downloading song", logging.String("url", song.SourceURL()))
			p, err := m.downloader.Download(ctx, song, "", progress)
			path, downloaded = p, err == nil
			return err
		}
		p, fetched, err := m.downloader.Ensure(ctx, song, entry.Path, progress)
		path, downloaded = p, fetched
		return err
	})
	if err != nil {
		transferErr = err
		return Result{}, fmt.Errorf("song %s: %w", req.CID, err)
	}

	var (
		digest       string
		redownloaded bool
	)
	err = m.runStage(ctx, "verify", func(ctx context.Context, logger *slog.Logger) error {
		if downloaded {
			// A fresh file replaces whatever digest was recorded.
			var err error
			digest, err = checksum.File(path)
			return err
		}
		check, err := checksum.Verify(path, entry.B3Sum)
		if err != nil {
			return err
		}
		if !check.Mismatch() {
			digest = check.Digest
			return nil
		}
		logging.WarnWithContext(ctx, logger, "checksum mismatch; redownloading", "checksum_mismatch",
			logging.String("path", path),
			logging.String("recorded", entry.B3Sum),
			logging.String("actual", check.Digest),
			logging.String(logging.FieldImpact, "local file replaced"),
		)
		// The stale record must be durable before the file is replaced.
		if _, err := m.cache.Invalidate(req.CID); err != nil {
			return err
		}
		if err := m.cache.Flush(ctx); err != nil {
			return fmt.Errorf("invalidate cached file: %w", err)
		}
		if _, err := m.downloader.Download(ctx, song, path, progress); err != nil {
			transferErr = err
			return err
		}
		redownloaded = true
		digest, err = checksum.File(path)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", req.CID, err)
	}

	entry, err = m.cache.SetFile(req.CID, path, digest)
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", req.CID, err)
	}
	return Result{
		Entry:        entry,
		Cached:       cached,
		Downloaded:   downloaded || redownloaded,
		Redownloaded: redownloaded,
		Play:         req.Play,
	}, nil
}

func (m *Manager) syncSong(ctx context.Context, ref catalog.SongRef) (Result, error) {
	cid := ref.CID()
	ctx = services.WithSongID(ctx, cid)
	var transferErr error
	defer func() { m.reporter.Finish(cid, transferErr) }()

	var song *catalog.Song
	err := m.runStage(ctx, "metadata", func(ctx context.Context, logger *slog.Logger) error {
		detail, err := ref.Detail(ctx)
		if err != nil {
			return err
		}
		song = detail
		m.cache.Record(song.Detail())
		logger.InfoContext(ctx, "requesting song", logging.String("name", song.Name()))
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", cid, err)
	}

	var path string
	err = m.runStage(ctx, "download", func(ctx context.Context, _ *slog.Logger) error {
		var err error
		path, err = m.downloader.Download(ctx, song, "", m.progressFor(ctx, cid, song.Name()))
		return err
	})
	if err != nil {
		transferErr = err
		return Result{}, fmt.Errorf("song %s: %w", cid, err)
	}

	var digest string
	err = m.runStage(ctx, "verify", func(context.Context, *slog.Logger) error {
		var err error
		digest, err = checksum.File(path)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", cid, err)
	}

	entry, err := m.cache.SetFile(cid, path, digest)
	if err != nil {
		return Result{}, fmt.Errorf("song %s: %w", cid, err)
	}
	return Result{Entry: entry, Downloaded: true}, nil
}

// runStage stamps stage into ctx, logs its boundaries and reports a failure
// while the stage is still known.
func (m *Manager) runStage(ctx context.Context, stage string, fn func(context.Context, *slog.Logger) error) error {
	ctx = withStage(ctx, stage)
	logger := logging.WithContext(ctx, m.logger)
	start := time.Now()
	logger.DebugContext(ctx, "stage started", logging.String(logging.FieldEventType, "stage_start"))

	if err := fn(ctx, logger); err != nil {
		m.stageFailed(ctx, logger, err)
		return err
	}

	logger.DebugContext(ctx, "stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", time.Since(start)),
	)
	return nil
}

func (m *Manager) stageFailed(ctx context.Context, logger *slog.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		logger.DebugContext(ctx, "stage canceled", logging.Error(err))
		return
	}
	logging.ErrorWithContext(ctx, logger, "stage failed", "stage_failure",
		logging.String("error_kind", services.Classify(err)),
		logging.Bool("retryable", services.Retryable(err)),
		logging.String(logging.FieldErrorHint, failureHint(err)),
		logging.Error(err),
	)
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "check the song cid"
	case errors.Is(err, services.ErrConfiguration):
		return "run siren config validate"
	case services.Retryable(err):
		return "run the command again"
	default:
		return "check logs for details"
	}
}
