package download_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"siren/internal/catalog"
	"siren/internal/download"
	"siren/internal/msr"
	"siren/internal/services"
	"siren/internal/testsupport"
)

func song(cid, name, source string) *catalog.Song {
	return catalog.NewSong(msr.SongDetail{
		CID:       cid,
		Name:      name,
		AlbumCID:  "1010",
		SourceURL: source,
		Artists:   []string{},
	})
}

type recorder struct {
	calls [][2]int64
	stop  int
}

func (r *recorder) progress(n, total int64) bool {
	r.calls = append(r.calls, [2]int64{n, total})
	return r.stop > 0 && len(r.calls) >= r.stop
}

func (r *recorder) sum() int64 {
	var s int64
	for _, c := range r.calls {
		s += c[0]
	}
	return s
}

func TestGeneratePath(t *testing.T) {
	tests := []struct {
		name   string
		song   download.Source
		expect string
	}{
		{"plain", song("697699", "Grow on My Time", "https://cdn.example/a/b.mp3"), "697699_Grow on My Time.mp3"},
		{"query", song("1", "x", "https://cdn.example/a.wav?sign=abc.def"), "1_x.wav"},
		{"separators", song("2", "AC/DC\\live", "https://cdn.example/a.mp3"), "2_AC_DC_live.mp3"},
		{"nfc", song("3", "Cafe\u0301", "https://cdn.example/a.flac"), "3_Caf\u00e9.flac"},
		{"control", song("4", "tab\there\n", "https://cdn.example/a.mp3"), "4_tabhere.mp3"},
		{"no ext", song("5", "y", "https://cdn.example/stream"), "5_y"},
		{"dots", song("6", "..", "https://cdn.example/a.mp3"), "6___.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := download.GeneratePath("/music", tt.song)
			if want := filepath.Join("/music", tt.expect); got != want {
				t.Fatalf("GeneratePath = %q, want %q", got, want)
			}
		})
	}
}

func TestDownloadWritesFileAndReportsProgress(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	audio := testsupport.AudioBytes("7", 100_000)
	detail := srv.AddSong(msr.SongDetail{CID: "697699", Name: "Grow on My Time", AlbumCID: "1010"}, audio)

	dir := t.TempDir()
	d := download.New(dir)
	rec := &recorder{}
	path, err := d.Download(context.Background(), catalog.NewSong(detail), "", rec.progress)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != filepath.Join(dir, "697699_Grow on My Time.mp3") {
		t.Fatalf("unexpected path %q", path)
	}
	got := testsupport.ReadFile(t, path)
	if !bytes.Equal(got, audio) {
		t.Fatalf("file content differs: %d bytes, want %d", len(got), len(audio))
	}
	if rec.calls[0] != [2]int64{0, int64(len(audio))} {
		t.Fatalf("first progress call = %v", rec.calls[0])
	}
	for _, c := range rec.calls {
		if c[1] != int64(len(audio)) {
			t.Fatalf("progress total = %d, want %d", c[1], len(audio))
		}
	}
	if rec.sum() != int64(len(audio)) {
		t.Fatalf("progress deltas sum to %d, want %d", rec.sum(), len(audio))
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Fatalf("part file left behind: %v", err)
	}
}

func TestDownloadUnknownLengthProceeds(t *testing.T) {
	audio := testsupport.AudioBytes("3", 50_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		half := len(audio) / 2
		_, _ = w.Write(audio[:half])
		w.(http.Flusher).Flush()
		_, _ = w.Write(audio[half:])
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "out.mp3")
	rec := &recorder{}
	n, err := download.New(filepath.Dir(path)).To(context.Background(), song("1", "a", srv.URL+"/a.mp3"), path, rec.progress)
	if err != nil {
		t.Fatalf("To: %v", err)
	}
	if n != int64(len(audio)) {
		t.Fatalf("wrote %d bytes, want %d", n, len(audio))
	}
	for _, c := range rec.calls {
		if c[1] != download.UnknownTotal {
			t.Fatalf("expected unknown total, got %d", c[1])
		}
	}
	if !bytes.Equal(testsupport.ReadFile(t, path), audio) {
		t.Fatal("file content differs")
	}
}

func TestDownloadInterrupted(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	detail := srv.AddSong(msr.SongDetail{CID: "1", Name: "a", AlbumCID: "2"}, testsupport.AudioBytes("1", 200_000))

	dir := t.TempDir()
	rec := &recorder{stop: 2}
	_, err := download.New(dir).Download(context.Background(), catalog.NewSong(detail), "", rec.progress)
	if !errors.Is(err, download.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files after interruption, found %d", len(entries))
	}
}

func TestDownloadRejectsBadResponses(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	srv.SetAudio("page.mp3", []byte("<html>"), "text/html; charset=utf-8")
	srv.SetAudio("empty.mp3", []byte{}, "audio/mpeg")
	srv.SetAudio("params.mp3", []byte("ok"), "Audio/MPEG; bitrate=320")

	tests := []struct {
		name   string
		file   string
		target error
	}{
		{"missing", "missing.mp3", download.ErrStatus},
		{"html", "page.mp3", download.ErrContentType},
		{"empty", "empty.mp3", download.ErrEmptyBody},
		{"params", "params.mp3", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.mp3")
			_, err := download.New(filepath.Dir(path)).To(context.Background(), song("1", "a", srv.AudioURL(tt.file)), path, nil)
			if tt.target == nil {
				if err != nil {
					t.Fatalf("To: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Fatalf("file should not exist: %v", statErr)
			}
		})
	}
}

func TestDownloadNotFoundIsClassified(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	path := filepath.Join(t.TempDir(), "out.mp3")
	_, err := download.New(filepath.Dir(path)).To(context.Background(), song("1", "a", srv.AudioURL("nope.mp3")), path, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("404 must not be retryable")
	}
}

func TestEnsureSkipsExistingFile(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	detail := srv.AddSong(msr.SongDetail{CID: "1", Name: "a", AlbumCID: "2"}, []byte("fresh"))
	dir := t.TempDir()
	d := download.New(dir)
	s := catalog.NewSong(detail)

	existing := d.Path(s)
	testsupport.WriteFile(t, existing, []byte("old"))

	rec := &recorder{}
	path, downloaded, err := d.Ensure(context.Background(), s, "", rec.progress)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if downloaded || path != existing {
		t.Fatalf("unexpected result path=%q downloaded=%v", path, downloaded)
	}
	if len(rec.calls) != 1 || rec.calls[0] != [2]int64{0, 0} {
		t.Fatalf("expected a single (0, 0) report, got %v", rec.calls)
	}
	if string(testsupport.ReadFile(t, existing)) != "old" {
		t.Fatal("existing file was replaced")
	}
	if hits := srv.Hits("/audio/1.mp3"); hits != 0 {
		t.Fatalf("expected no audio request, got %d", hits)
	}

	stop := &recorder{stop: 1}
	if _, _, err := d.Ensure(context.Background(), s, "", stop.progress); !errors.Is(err, download.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

func TestEnsureDownloadsMissingFile(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	detail := srv.AddSong(msr.SongDetail{CID: "1", Name: "a", AlbumCID: "2"}, []byte("fresh"))
	d := download.New(t.TempDir())

	path, downloaded, err := d.Ensure(context.Background(), catalog.NewSong(detail), "", nil)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !downloaded {
		t.Fatal("expected a download")
	}
	if string(testsupport.ReadFile(t, path)) != "fresh" {
		t.Fatal("unexpected content")
	}
}
