package main

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"siren/internal/workflow"
)

// barReporter folds every transfer into one byte-based progress bar. Songs
// whose size is unknown grow the bar as their bytes arrive.
type barReporter struct {
	out   io.Writer
	songs int

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	max     int64
	unknown map[string]bool
	done    int
	failed  int
}

func newBarReporter(out io.Writer, songs int) *barReporter {
	return &barReporter{out: out, songs: songs, unknown: map[string]bool{}}
}

// newReporter picks a progress bar for terminals and progress logs otherwise.
func newReporter(out io.Writer, jsonOutput bool, songs int, logger *slog.Logger) workflow.Reporter {
	if !jsonOutput && shouldColorize(out) {
		return newBarReporter(out, songs)
	}
	return workflow.NewLogReporter(logger)
}

func (r *barReporter) Begin(cid, _ string, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if total < 0 {
		r.unknown[cid] = true
		return
	}
	delete(r.unknown, cid)
	r.grow(total)
}

func (r *barReporter) Advance(cid string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unknown[cid] {
		r.grow(n)
	}
	if r.bar != nil {
		_ = r.bar.Add64(n)
	}
}

func (r *barReporter) Finish(cid string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unknown, cid)
	if err != nil {
		r.failed++
	} else {
		r.done++
	}
	if r.bar != nil {
		r.bar.Describe(r.describe())
	}
}

// Close completes the bar and moves the cursor past it.
func (r *barReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	fmt.Fprintln(r.out)
}

func (r *barReporter) grow(n int64) {
	if n <= 0 {
		return
	}
	r.max += n
	if r.bar == nil {
		r.bar = progressbar.NewOptions64(r.max,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(r.describe()),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetPredictTime(false),
		)
		return
	}
	r.bar.ChangeMax64(r.max)
}

func (r *barReporter) describe() string {
	label := fmt.Sprintf("%d songs", r.done)
	if r.songs > 0 {
		label = fmt.Sprintf("%d/%d songs", r.done, r.songs)
	}
	if r.failed > 0 {
		label += fmt.Sprintf(", %d failed", r.failed)
	}
	return label
}
