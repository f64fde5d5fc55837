package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"siren/internal/config"
)

// LogFileName is the rotating log file written under the configured log dir.
const LogFileName = "siren.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives console records. Defaults to stderr so stdout stays
	// free for command output.
	Output      io.Writer
	File        *FileOptions
	Development bool
}

// FileOptions configures the rotating JSON file sink.
type FileOptions struct {
	Path       string
	MaxSizeMiB int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var console slog.Handler
	switch format {
	case "json":
		console = newJSONHandler(out, levelVar, addSource)
	case "console":
		console = newPrettyHandler(out, levelVar, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var file slog.Handler
	if opts.File != nil && strings.TrimSpace(opts.File.Path) != "" {
		writer, err := newRotatingWriter(*opts.File)
		if err != nil {
			return nil, err
		}
		file = newJSONHandler(writer, levelVar, addSource)
	}

	return slog.New(newContextHandler(newFanoutHandler(console, file))), nil
}

// NewFromConfig creates a logger using application config defaults.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}
	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if dir := strings.TrimSpace(cfg.Logging.Dir); dir != "" {
		opts.File = &FileOptions{
			Path:       filepath.Join(dir, LogFileName),
			MaxSizeMiB: cfg.Logging.MaxSizeMiB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   true,
		}
	}
	return New(opts)
}

func newRotatingWriter(opts FileOptions) (io.Writer, error) {
	path := strings.TrimSpace(opts.Path)
	if err := ensureLogDir(path); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMiB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
