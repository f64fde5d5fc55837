package workflow

import (
	"context"
	"log/slog"
	"sync"

	"siren/internal/logging"
)

// Reporter observes song transfers. Begin starts a transfer of total bytes
// (download.UnknownTotal when the server did not say, 0 when an existing file
// is reused). Advance reports n more bytes. Finish closes the transfer.
// Implementations must be safe for concurrent use across songs.
type Reporter interface {
	Begin(cid, name string, total int64)
	Advance(cid string, n int64)
	Finish(cid string, err error)
}

type nopReporter struct{}

func (nopReporter) Begin(string, string, int64) {}
func (nopReporter) Advance(string, int64)       {}
func (nopReporter) Finish(string, error)        {}

// LogReporter logs transfer progress in 10% steps.
type LogReporter struct {
	logger *slog.Logger

	mu        sync.Mutex
	transfers map[string]*transfer
}

type transfer struct {
	name    string
	total   int64
	done    int64
	sampler *logging.ProgressSampler
}

// NewLogReporter builds a reporter writing to logger.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{
		logger:    logging.NewComponentLogger(logger, "progress"),
		transfers: map[string]*transfer{},
	}
}

func (r *LogReporter) Begin(cid, name string, total int64) {
	r.mu.Lock()
	t := &transfer{name: name, total: total, sampler: logging.NewProgressSampler(10)}
	r.transfers[cid] = t
	emit := t.sampler.ShouldLog(logging.Percent(0, total), "transfer")
	r.mu.Unlock()
	if emit && total != 0 {
		r.logger.Info("transfer started",
			logging.String(logging.FieldSongID, cid),
			logging.String("name", name),
			logging.Bytes("size", total),
		)
	}
}

func (r *LogReporter) Advance(cid string, n int64) {
	r.mu.Lock()
	t, ok := r.transfers[cid]
	if !ok {
		r.mu.Unlock()
		return
	}
	t.done += n
	done, total := t.done, t.total
	percent := logging.Percent(done, total)
	emit := percent >= 0 && t.sampler.ShouldLog(percent, "transfer")
	r.mu.Unlock()
	if emit {
		r.logger.Debug("transfer progress",
			logging.String(logging.FieldSongID, cid),
			logging.Int("percent", int(percent)),
			logging.Bytes("received", done),
		)
	}
}

func (r *LogReporter) Finish(cid string, err error) {
	r.mu.Lock()
	t, ok := r.transfers[cid]
	delete(r.transfers, cid)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err != nil {
		logging.WarnWithContext(context.Background(), r.logger, "transfer failed", "transfer_failed",
			logging.String(logging.FieldSongID, cid),
			logging.String("name", t.name),
			logging.Error(err),
		)
		return
	}
	r.logger.Debug("transfer finished",
		logging.String(logging.FieldSongID, cid),
		logging.Bytes("received", t.done),
	)
}
