package metacache_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"siren/internal/config"
	"siren/internal/metacache"
	"siren/internal/msr"
	"siren/internal/testsupport"
)

func songDetail(cid string) msr.SongDetail {
	lyric := "https://cdn.example/" + cid + ".lrc"
	return msr.SongDetail{
		CID:       cid,
		Name:      "Song " + cid,
		AlbumCID:  "1010",
		SourceURL: "https://cdn.example/" + cid + ".mp3",
		LyricURL:  &lyric,
		Artists:   []string{"塞壬唱片-MSR"},
	}
}

func backends() []string {
	return []string{config.CacheBackendJSON, config.CacheBackendSQLite}
}

func TestCacheRoundTripAcrossBackends(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend(backend))

			cache := testsupport.MustOpenCache(t, cfg)
			if cache.Len() != 0 {
				t.Fatalf("new cache has %d entries", cache.Len())
			}
			cache.Record(songDetail("697699"))
			cache.Record(songDetail("232234"))
			if _, err := cache.SetFile("697699", "/music/697699_Song.mp3", "digest"); err != nil {
				t.Fatalf("SetFile: %v", err)
			}
			if !cache.Dirty() {
				t.Fatal("expected dirty cache after mutations")
			}
			if err := cache.Flush(ctx); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if cache.Dirty() {
				t.Fatal("expected clean cache after flush")
			}
			if err := cache.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			reopened := testsupport.MustOpenCache(t, cfg)
			entries := reopened.List()
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].CID != "232234" || entries[1].CID != "697699" {
				t.Fatalf("entries not sorted by cid: %s, %s", entries[0].CID, entries[1].CID)
			}
			got, ok := reopened.Lookup("697699")
			if !ok {
				t.Fatal("Lookup failed after reopen")
			}
			if got.Path != "/music/697699_Song.mp3" || got.B3Sum != "digest" {
				t.Fatalf("unexpected file record: %+v", got)
			}
			if got.Data.LyricURL == nil || *got.Data.LyricURL != "https://cdn.example/697699.lrc" {
				t.Fatalf("lyric url lost: %v", got.Data.LyricURL)
			}
			if got.Data.MVURL != nil {
				t.Fatalf("expected nil mv url, got %v", *got.Data.MVURL)
			}
			other, _ := reopened.Lookup("232234")
			if other.Path != "" || other.B3Sum != "" {
				t.Fatalf("expected no file record, got %+v", other)
			}
		})
	}
}

func TestInvalidateKeepsMetadata(t *testing.T) {
	for _, backend := range backends() {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testsupport.NewConfig(t, testsupport.WithCacheBackend(backend))
			cache := testsupport.MustOpenCache(t, cfg)

			cache.Record(songDetail("1"))
			if _, err := cache.SetFile("1", "/music/1.mp3", "old"); err != nil {
				t.Fatalf("SetFile: %v", err)
			}
			if err := cache.Flush(ctx); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			entry, err := cache.Invalidate("1")
			if err != nil {
				t.Fatalf("Invalidate: %v", err)
			}
			if entry.Path != "" || entry.B3Sum != "" || entry.Data.Name != "Song 1" {
				t.Fatalf("unexpected entry after invalidate: %+v", entry)
			}
			if err := cache.Flush(ctx); err != nil {
				t.Fatalf("Flush: %v", err)
			}

			reopened := testsupport.MustOpenCache(t, cfg)
			got, ok := reopened.Lookup("1")
			if !ok || got.B3Sum != "" || got.Path != "" {
				t.Fatalf("invalidation not persisted: %+v", got)
			}

			if _, err := cache.Invalidate("missing"); !errors.Is(err, metacache.ErrNotCached) {
				t.Fatalf("expected ErrNotCached, got %v", err)
			}
		})
	}
}

func TestRecordKeepsFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)

	cache.Record(songDetail("1"))
	if _, err := cache.SetFile("1", "/music/1.mp3", "sum"); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	updated := songDetail("1")
	updated.Name = "Renamed"
	entry := cache.Record(updated)
	if entry.Path != "/music/1.mp3" || entry.B3Sum != "sum" || entry.Data.Name != "Renamed" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestEntryPointsTrimCID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)

	cache.Record(songDetail(" 7 "))
	if _, err := cache.SetFile("7\n", "/music/7.mp3", "sum"); err != nil {
		t.Fatalf("SetFile: %v", err)
	}
	entry, ok := cache.Lookup("7")
	if !ok {
		t.Fatal("entry not stored under the trimmed cid")
	}
	if entry.CID != "7" || entry.Data.CID != "7" || entry.Path != "/music/7.mp3" || entry.B3Sum != "sum" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d, want 1", cache.Len())
	}
	if _, err := cache.Invalidate(" 7"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := cache.Remove("7 "); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)

	cache.Record(songDetail("1"))
	cache.Record(songDetail("2"))
	if err := cache.Remove("1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := cache.Remove("1"); !errors.Is(err, metacache.ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cache.Len())
	}
	cache.Clear()
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	data, err := os.ReadFile(cfg.Cache.Path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("cache file is not json: %v", err)
	}
	if doc["version"] != float64(0) {
		t.Fatalf("unexpected version %v", doc["version"])
	}
	if entries, ok := doc["entries"].(map[string]any); !ok || len(entries) != 0 {
		t.Fatalf("expected empty entries, got %v", doc["entries"])
	}
}

func TestPutRejectsMismatchedCID(t *testing.T) {
	cache := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	if err := cache.Put(metacache.Entry{CID: "1", Data: songDetail("2")}); err == nil {
		t.Fatal("expected error for mismatched cid")
	}
	if err := cache.Put(metacache.Entry{CID: " ", Data: songDetail("2")}); err == nil {
		t.Fatal("expected error for empty cid")
	}
	if err := cache.Put(metacache.Entry{CID: "2", Data: songDetail("2"), Path: "/x.mp3"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestJSONFileLayout(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	cache := testsupport.MustOpenCache(t, cfg)
	cache.Record(songDetail("1"))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	data, err := os.ReadFile(cfg.Cache.Path)
	if err != nil {
		t.Fatalf("read cache file: %v", err)
	}
	var doc struct {
		Version int                        `json:"version"`
		Entries map[string]json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(doc.Entries["1"], &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	for _, key := range []string{"path", "b3sum"} {
		value, ok := entry[key]
		if !ok || value != nil {
			t.Fatalf("expected %s to be null, got %v (present=%v)", key, value, ok)
		}
	}
	if entry["cid"] != "1" {
		t.Fatalf("unexpected cid %v", entry["cid"])
	}
	if _, err := os.Stat(cfg.Cache.Path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestJSONBackendInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		logged  bool
	}{
		{"blank", "  \n", false},
		{"not json", "{oops", true},
		{"wrong version", `{"version":1,"entries":{}}`, true},
		{"key mismatch", `{"version":0,"entries":{"1":{"cid":"2","data":{},"path":null,"b3sum":null}}}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			if err := os.WriteFile(cfg.Cache.Path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			cache, err := metacache.Open(context.Background(), cfg, logger)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer cache.Close()
			if cache.Len() != 0 {
				t.Fatalf("expected empty cache, got %d entries", cache.Len())
			}
			logged := strings.Contains(buf.String(), "metadata cache invalid")
			if logged != tt.logged {
				t.Fatalf("logged = %v, want %v; log: %s", logged, tt.logged, buf.String())
			}
		})
	}
}

func TestSaveRejectsInvalidDocument(t *testing.T) {
	backend := metacache.NewJSONBackend(t.TempDir()+"/metadata.json", nil)
	err := backend.Save(context.Background(), metacache.Document{
		Version: 0,
		Entries: map[string]metacache.Entry{"1": {CID: "2", Data: songDetail("2")}},
	})
	if !errors.Is(err, metacache.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.Backend = "redis"
	if _, err := metacache.Open(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
