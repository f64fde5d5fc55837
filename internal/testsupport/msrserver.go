package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"siren/internal/msr"
)

// MSRServer is an in-process fake of the Monster Siren API plus the CDN
// serving song audio.
type MSRServer struct {
	*httptest.Server

	mu           sync.Mutex
	albums       []msr.Album
	albumDetails map[string]msr.AlbumDetail
	songs        []msr.Song
	songDetails  map[string]msr.SongDetail
	audio        map[string][]byte
	contentType  map[string]string
	failures     map[string][]int
	hits         map[string]int
}

// NewMSRServer starts a fake API and closes it when the test ends.
func NewMSRServer(t testing.TB) *MSRServer {
	t.Helper()

	s := &MSRServer{
		albumDetails: map[string]msr.AlbumDetail{},
		songDetails:  map[string]msr.SongDetail{},
		audio:        map[string][]byte{},
		contentType:  map[string]string{},
		failures:     map[string][]int{},
		hits:         map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/albums", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		data := append([]msr.Album(nil), s.albums...)
		s.mu.Unlock()
		writeEnvelope(w, data)
	})
	mux.HandleFunc("GET /api/album/{cid}/detail", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		detail, ok := s.albumDetails[r.PathValue("cid")]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, detail)
	})
	mux.HandleFunc("GET /api/songs", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		data := map[string]any{"list": append([]msr.Song(nil), s.songs...), "autoplay": nil}
		s.mu.Unlock()
		writeEnvelope(w, data)
	})
	mux.HandleFunc("GET /api/song/{cid}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		detail, ok := s.songDetails[r.PathValue("cid")]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, detail)
	})
	mux.HandleFunc("GET /audio/{name}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		name := r.PathValue("name")
		data, ok := s.audio[name]
		ctype := s.contentType[name]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if ctype == "" {
			ctype = "audio/mpeg"
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		var status int
		if queue := s.failures[r.URL.Path]; len(queue) > 0 {
			status = queue[0]
			s.failures[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// APIBase is the endpoint to configure clients with.
func (s *MSRServer) APIBase() string {
	return s.URL + "/api/"
}

// AudioURL is where the fake CDN serves name.
func (s *MSRServer) AudioURL(name string) string {
	return s.URL + "/audio/" + name
}

// AddSong registers a song in the list and detail endpoints and serves
// audio under <cid>.mp3. The detail's SourceURL is filled in when empty.
func (s *MSRServer) AddSong(detail msr.SongDetail, audio []byte) msr.SongDetail {
	if detail.SourceURL == "" {
		detail.SourceURL = s.AudioURL(detail.CID + ".mp3")
	}
	if detail.Artists == nil {
		detail.Artists = []string{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs = append(s.songs, detail.Summary())
	s.songDetails[detail.CID] = detail
	if audio != nil {
		s.audio[detail.CID+".mp3"] = audio
	}
	return detail
}

// AddAlbum registers an album in the list and detail endpoints.
func (s *MSRServer) AddAlbum(detail msr.AlbumDetail, artistes []string) {
	if artistes == nil {
		artistes = []string{}
	}
	if detail.Songs == nil {
		detail.Songs = []msr.AlbumSong{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums = append(s.albums, detail.Summary(artistes))
	s.albumDetails[detail.CID] = detail
}

// SetAudio replaces the bytes served for name.
func (s *MSRServer) SetAudio(name string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio[name] = data
	s.contentType[name] = contentType
}

// FailNext makes the next requests for path answer with statuses in order.
func (s *MSRServer) FailNext(path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], statuses...)
}

// Hits counts requests received for path.
func (s *MSRServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": 0,
		"msg":  "",
		"data": data,
	})
}
