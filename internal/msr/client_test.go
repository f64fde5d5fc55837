package msr_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"siren/internal/msr"
	"siren/internal/services"
	"siren/internal/testsupport"
)

func strPtr(s string) *string { return &s }

func newClient(t *testing.T, base string, retries int) *msr.Client {
	t.Helper()
	client, err := msr.NewClient(msr.Config{
		BaseURL:    base,
		UserAgent:  "siren-test",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// rawServer answers every request with status and body.
func rawServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestURLBuilders(t *testing.T) {
	client := newClient(t, "https://example.test/api", 0)

	cases := map[string]string{
		client.AlbumsURL().String():            "https://example.test/api/albums",
		client.AlbumDetailURL("1030").String(): "https://example.test/api/album/1030/detail",
		client.SongsURL().String():             "https://example.test/api/songs",
		client.SongURL("880374").String():      "https://example.test/api/song/880374",
		client.BaseURL().String():              "https://example.test/api/",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("url = %q, want %q", got, want)
		}
	}
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	_, err := msr.NewClient(msr.Config{BaseURL: "api/"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchEndpoints(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	srv.AddAlbum(msr.AlbumDetail{
		CID:        "1030",
		Name:       "Grow on My Time",
		Intro:      "intro",
		Belong:     "arknights",
		CoverURL:   "https://cdn.example/cover.jpg",
		CoverDeURL: "https://cdn.example/cover-de.jpg",
		Songs:      []msr.AlbumSong{{CID: "1010", Name: "Grow on My Time", Artistes: []string{"塞壬唱片-MSR"}}},
	}, []string{"塞壬唱片-MSR"})
	song := srv.AddSong(msr.SongDetail{
		CID:      "1010",
		Name:     "Grow on My Time",
		AlbumCID: "1030",
		LyricURL: strPtr("https://cdn.example/1010.lrc"),
		Artists:  []string{"塞壬唱片-MSR"},
	}, []byte("audio"))

	client := newClient(t, srv.APIBase(), 0)
	ctx := context.Background()

	albums, err := client.Albums(ctx)
	if err != nil {
		t.Fatalf("Albums: %v", err)
	}
	if len(albums) != 1 || albums[0].CID != "1030" || albums[0].Artistes[0] != "塞壬唱片-MSR" {
		t.Fatalf("unexpected albums: %+v", albums)
	}

	detail, err := client.AlbumDetail(ctx, "1030")
	if err != nil {
		t.Fatalf("AlbumDetail: %v", err)
	}
	if detail.Belong != "arknights" || len(detail.Songs) != 1 || detail.Songs[0].CID != "1010" {
		t.Fatalf("unexpected album detail: %+v", detail)
	}

	songs, err := client.Songs(ctx)
	if err != nil {
		t.Fatalf("Songs: %v", err)
	}
	if len(songs) != 1 || songs[0].AlbumCID != "1030" {
		t.Fatalf("unexpected songs: %+v", songs)
	}

	got, err := client.Song(ctx, "1010")
	if err != nil {
		t.Fatalf("Song: %v", err)
	}
	if got.SourceURL != song.SourceURL {
		t.Fatalf("source url = %q, want %q", got.SourceURL, song.SourceURL)
	}
	if got.LyricURL == nil || *got.LyricURL != "https://cdn.example/1010.lrc" {
		t.Fatalf("unexpected lyric url: %v", got.LyricURL)
	}
	if got.MVURL != nil || got.MVCoverURL != nil {
		t.Fatalf("expected null mv links, got %v %v", got.MVURL, got.MVCoverURL)
	}
}

func TestRequestHeaders(t *testing.T) {
	var accept, agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"code":0,"msg":"","data":[]}`))
	}))
	defer srv.Close()

	if _, err := newClient(t, srv.URL, 0).Albums(context.Background()); err != nil {
		t.Fatalf("Albums: %v", err)
	}
	if accept != "application/json" {
		t.Fatalf("Accept = %q", accept)
	}
	if agent != "siren-test" {
		t.Fatalf("User-Agent = %q", agent)
	}
}

func TestNotFoundIsNotRetried(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	client := newClient(t, srv.APIBase(), 3)

	_, err := client.Song(context.Background(), "404404")
	if !errors.Is(err, msr.ErrStatus) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found status error, got %v", err)
	}
	var statusErr *msr.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
	if hits := srv.Hits("/api/song/404404"); hits != 1 {
		t.Fatalf("expected a single request, got %d", hits)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	srv := testsupport.NewMSRServer(t)
	srv.AddSong(msr.SongDetail{CID: "1", Name: "a", AlbumCID: "2"}, nil)
	srv.FailNext("/api/song/1", http.StatusBadGateway, http.StatusServiceUnavailable)

	got, err := newClient(t, srv.APIBase(), 2).Song(context.Background(), "1")
	if err != nil {
		t.Fatalf("Song: %v", err)
	}
	if got.CID != "1" {
		t.Fatalf("unexpected song: %+v", got)
	}
	if hits := srv.Hits("/api/song/1"); hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestRetriesExhausted(t *testing.T) {
	srv, hits := rawServer(t, http.StatusInternalServerError, "oops")

	_, err := newClient(t, srv.URL, 1).Albums(context.Background())
	if !errors.Is(err, msr.ErrStatus) {
		t.Fatalf("expected status error, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatalf("5xx failures should stay retryable, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", hits.Load())
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := newClient(t, base, 1).Songs(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	srv, _ := rawServer(t, http.StatusServiceUnavailable, "")
	client, err := msr.NewClient(msr.Config{BaseURL: srv.URL, MaxRetries: 5, RetryDelay: time.Hour})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Albums(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEnvelopeAndSchemaErrors(t *testing.T) {
	validSong := `"cid":"1","name":"a","albumCid":"2","sourceUrl":"https://cdn.example/a.mp3","lyricUrl":null,"mvUrl":null,"mvCoverUrl":null,"artists":[]`
	tests := []struct {
		name   string
		body   string
		target error
		field  string
	}{
		{"api code", `{"code":-1,"msg":"invalid cid","data":null}`, msr.ErrAPICode, ""},
		{"missing code", `{"msg":"","data":{}}`, msr.ErrSchema, "code"},
		{"missing data", `{"code":0,"msg":""}`, msr.ErrSchema, "data"},
		{"not json", `<html>`, msr.ErrSchema, "body"},
		{"missing name", `{"code":0,"msg":"","data":{"cid":"1","albumCid":"2","sourceUrl":"https://x.example/a","lyricUrl":null,"mvUrl":null,"mvCoverUrl":null,"artists":[]}}`, msr.ErrSchema, "data.name"},
		{"relative source", `{"code":0,"msg":"","data":{"cid":"1","name":"a","albumCid":"2","sourceUrl":"/a.mp3","lyricUrl":null,"mvUrl":null,"mvCoverUrl":null,"artists":[]}}`, msr.ErrSchema, "data.sourceUrl"},
		{"missing nullable", `{"code":0,"msg":"","data":{"cid":"1","name":"a","albumCid":"2","sourceUrl":"https://x.example/a","mvUrl":null,"mvCoverUrl":null,"artists":[]}}`, msr.ErrSchema, "data.lyricUrl"},
		{"bad nullable", `{"code":0,"msg":"","data":{` + strings.Replace(validSong, `"mvUrl":null`, `"mvUrl":"ftp://x"`, 1) + `}}`, msr.ErrSchema, "data.mvUrl"},
		{"null artists", `{"code":0,"msg":"","data":{` + strings.Replace(validSong, `"artists":[]`, `"artists":null`, 1) + `}}`, msr.ErrSchema, "data.artists"},
		{"wrong type", `{"code":0,"msg":"","data":{` + strings.Replace(validSong, `"cid":"1"`, `"cid":1`, 1) + `}}`, msr.ErrSchema, "data.cid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := rawServer(t, http.StatusOK, tt.body)
			_, err := newClient(t, srv.URL, 0).Song(context.Background(), "1")
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("schema and code errors should be validation failures, got %v", err)
			}
			if tt.field == "" {
				return
			}
			var schemaErr *msr.SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %T", err)
			}
			if schemaErr.Field != tt.field {
				t.Fatalf("field = %q, want %q (%v)", schemaErr.Field, tt.field, err)
			}
		})
	}
}

func TestSongsRequiresList(t *testing.T) {
	srv, _ := rawServer(t, http.StatusOK, `{"code":0,"msg":"","data":{"autoplay":null}}`)
	_, err := newClient(t, srv.URL, 0).Songs(context.Background())
	var schemaErr *msr.SchemaError
	if !errors.As(err, &schemaErr) || schemaErr.Field != "data.list" {
		t.Fatalf("expected data.list schema error, got %v", err)
	}
}

func TestAlbumListFieldPath(t *testing.T) {
	srv, _ := rawServer(t, http.StatusOK, `{"code":0,"msg":"","data":[{"cid":"1","name":"a","coverUrl":"https://x.example/c.jpg","artistes":[]},{"cid":"2","name":"b","coverUrl":"nope","artistes":[]}]}`)
	_, err := newClient(t, srv.URL, 0).Albums(context.Background())
	var schemaErr *msr.SchemaError
	if !errors.As(err, &schemaErr) || schemaErr.Field != "data[1].coverUrl" {
		t.Fatalf("expected data[1].coverUrl schema error, got %v", err)
	}
}

func TestSongDetailValidate(t *testing.T) {
	good := msr.SongDetail{CID: "1", Name: "a", AlbumCID: "2", SourceURL: "https://x.example/a.mp3", Artists: []string{}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := good
	bad.SourceURL = "a.mp3"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected validation error for relative source url")
	}
}
