package logging_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siren/internal/config"
	"siren/internal/logging"
	"siren/internal/services"
)

func TestNewFromConfigWritesRotatingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Dir = t.TempDir()
	cfg.Logging.Level = "debug"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Debug("file sink message", logging.String("k", "v"))

	content, err := os.ReadFile(filepath.Join(cfg.Logging.Dir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"file sink message"`) {
		t.Fatalf("expected JSON record in log file, got %q", content)
	}
	if !strings.Contains(string(content), `"level":"debug"`) {
		t.Fatalf("expected lowercase level, got %q", content)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(logger, "download").Info("saved", logging.Bytes("size", 4_200_000))

	out := buf.String()
	if strings.Contains(out, ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", out)
	}
	if !strings.Contains(out, "INFO download: saved") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, `size="4.2 MB"`) {
		t.Fatalf("expected humanized size, got %q", out)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with source")

	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected source information in debug logs, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "invalid", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info threshold, got %q", buf.String())
	}
}

func TestContextFieldsReachRecords(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRequestID(ctx, "req-xyz")
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithSongID(ctx, "880374")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.InfoContext(ctx, "contextual log")

	out := buf.String()
	for _, want := range []string{
		`"correlation_id":"req-xyz"`,
		`"stage":"download"`,
		`"song_id":"880374"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}

func TestContextFieldsDoNotDuplicateBoundAttrs(t *testing.T) {
	ctx := services.WithStage(context.Background(), "download")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).InfoContext(ctx, "once")

	if n := strings.Count(buf.String(), `"stage"`); n != 1 {
		t.Fatalf("expected stage once, got %d in %q", n, buf.String())
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(context.Background(), logger, "checksum mismatch", "checksum_mismatch",
		logging.String(logging.FieldImpact, "file will be downloaded again"),
	)

	out := buf.String()
	for _, want := range []string{
		`"event_type":"checksum_mismatch"`,
		`"error_hint":"check logs for details"`,
		`"impact":"file will be downloaded again"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}
