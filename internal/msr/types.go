package msr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
)

// Album is an entry of the album list.
type Album struct {
	CID      string   `json:"cid"`
	Name     string   `json:"name"`
	CoverURL string   `json:"coverUrl"`
	Artistes []string `json:"artistes"`
}

// AlbumSong is a song as listed inside an album detail.
type AlbumSong struct {
	CID      string   `json:"cid"`
	Name     string   `json:"name"`
	Artistes []string `json:"artistes"`
}

// AlbumDetail is the full description of an album.
type AlbumDetail struct {
	CID        string      `json:"cid"`
	Name       string      `json:"name"`
	Intro      string      `json:"intro"`
	Belong     string      `json:"belong"`
	CoverURL   string      `json:"coverUrl"`
	CoverDeURL string      `json:"coverDeUrl"`
	Songs      []AlbumSong `json:"songs"`
}

// Song is an entry of the song list.
type Song struct {
	CID      string   `json:"cid"`
	Name     string   `json:"name"`
	AlbumCID string   `json:"albumCid"`
	Artists  []string `json:"artists"`
}

// SongDetail is the full description of a song. The lyric and MV links are
// nil when the API reports null.
type SongDetail struct {
	CID        string   `json:"cid"`
	Name       string   `json:"name"`
	AlbumCID   string   `json:"albumCid"`
	SourceURL  string   `json:"sourceUrl"`
	LyricURL   *string  `json:"lyricUrl"`
	MVURL      *string  `json:"mvUrl"`
	MVCoverURL *string  `json:"mvCoverUrl"`
	Artists    []string `json:"artists"`
}

// Summary reduces a detail to its list entry.
func (d SongDetail) Summary() Song {
	return Song{CID: d.CID, Name: d.Name, AlbumCID: d.AlbumCID, Artists: d.Artists}
}

// Summary reduces a detail to its list entry.
func (d AlbumDetail) Summary(artistes []string) Album {
	return Album{CID: d.CID, Name: d.Name, CoverURL: d.CoverURL, Artistes: artistes}
}

// Validate checks a song detail that did not come from the API, such as a
// cached copy.
func (d SongDetail) Validate() error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	var w wireSongDetail
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	_, err = w.convert(path("song"))
	return err
}

// fieldError is a validation failure before the URL is known.
type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + " " + e.reason }

type path string

func (p path) field(name string) path { return path(string(p) + "." + name) }

func (p path) index(i int) path { return path(fmt.Sprintf("%s[%d]", p, i)) }

func missing(p path) error { return &fieldError{field: string(p), reason: "is missing or null"} }

func requireString(p path, v *string) (string, error) {
	if v == nil {
		return "", missing(p)
	}
	return *v, nil
}

func requireStrings(p path, v *[]string) ([]string, error) {
	if v == nil {
		return nil, missing(p)
	}
	if *v == nil {
		return []string{}, nil
	}
	return *v, nil
}

func requireURL(p path, v *string) (string, error) {
	s, err := requireString(p, v)
	if err != nil {
		return "", err
	}
	if !isHTTPURL(s) {
		return "", &fieldError{field: string(p), reason: fmt.Sprintf("is not an absolute http(s) URL: %q", s)}
	}
	return s, nil
}

func nullableURL(p path, v nullable) (*string, error) {
	if !v.present {
		return nil, &fieldError{field: string(p), reason: "is missing"}
	}
	if v.value == nil {
		return nil, nil
	}
	if !isHTTPURL(*v.value) {
		return nil, &fieldError{field: string(p), reason: fmt.Sprintf("is not an absolute http(s) URL: %q", *v.value)}
	}
	s := *v.value
	return &s, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// nullable tells a missing key apart from an explicit null.
type nullable struct {
	present bool
	value   *string
}

func (n *nullable) UnmarshalJSON(b []byte) error {
	n.present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n.value = &s
	return nil
}

type envelope struct {
	Code *int            `json:"code"`
	Msg  *string         `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type wireAlbum struct {
	CID      *string   `json:"cid"`
	Name     *string   `json:"name"`
	CoverURL *string   `json:"coverUrl"`
	Artistes *[]string `json:"artistes"`
}

func (w wireAlbum) convert(p path) (Album, error) {
	var (
		out Album
		err error
	)
	if out.CID, err = requireString(p.field("cid"), w.CID); err != nil {
		return out, err
	}
	if out.Name, err = requireString(p.field("name"), w.Name); err != nil {
		return out, err
	}
	if out.CoverURL, err = requireURL(p.field("coverUrl"), w.CoverURL); err != nil {
		return out, err
	}
	out.Artistes, err = requireStrings(p.field("artistes"), w.Artistes)
	return out, err
}

type wireAlbumSong struct {
	CID      *string   `json:"cid"`
	Name     *string   `json:"name"`
	Artistes *[]string `json:"artistes"`
}

func (w wireAlbumSong) convert(p path) (AlbumSong, error) {
	var (
		out AlbumSong
		err error
	)
	if out.CID, err = requireString(p.field("cid"), w.CID); err != nil {
		return out, err
	}
	if out.Name, err = requireString(p.field("name"), w.Name); err != nil {
		return out, err
	}
	out.Artistes, err = requireStrings(p.field("artistes"), w.Artistes)
	return out, err
}

type wireAlbumDetail struct {
	CID        *string          `json:"cid"`
	Name       *string          `json:"name"`
	Intro      *string          `json:"intro"`
	Belong     *string          `json:"belong"`
	CoverURL   *string          `json:"coverUrl"`
	CoverDeURL *string          `json:"coverDeUrl"`
	Songs      *[]wireAlbumSong `json:"songs"`
}

func (w wireAlbumDetail) convert(p path) (AlbumDetail, error) {
	var (
		out AlbumDetail
		err error
	)
	if out.CID, err = requireString(p.field("cid"), w.CID); err != nil {
		return out, err
	}
	if out.Name, err = requireString(p.field("name"), w.Name); err != nil {
		return out, err
	}
	if out.Intro, err = requireString(p.field("intro"), w.Intro); err != nil {
		return out, err
	}
	if out.Belong, err = requireString(p.field("belong"), w.Belong); err != nil {
		return out, err
	}
	if out.CoverURL, err = requireURL(p.field("coverUrl"), w.CoverURL); err != nil {
		return out, err
	}
	if out.CoverDeURL, err = requireURL(p.field("coverDeUrl"), w.CoverDeURL); err != nil {
		return out, err
	}
	if w.Songs == nil {
		return out, missing(p.field("songs"))
	}
	out.Songs = make([]AlbumSong, 0, len(*w.Songs))
	for i, s := range *w.Songs {
		song, err := s.convert(p.field("songs").index(i))
		if err != nil {
			return out, err
		}
		out.Songs = append(out.Songs, song)
	}
	return out, nil
}

type wireSong struct {
	CID      *string   `json:"cid"`
	Name     *string   `json:"name"`
	AlbumCID *string   `json:"albumCid"`
	Artists  *[]string `json:"artists"`
}

func (w wireSong) convert(p path) (Song, error) {
	var (
		out Song
		err error
	)
	if out.CID, err = requireString(p.field("cid"), w.CID); err != nil {
		return out, err
	}
	if out.Name, err = requireString(p.field("name"), w.Name); err != nil {
		return out, err
	}
	if out.AlbumCID, err = requireString(p.field("albumCid"), w.AlbumCID); err != nil {
		return out, err
	}
	out.Artists, err = requireStrings(p.field("artists"), w.Artists)
	return out, err
}

type wireSongList struct {
	List *[]wireSong `json:"list"`
}

type wireSongDetail struct {
	CID        *string   `json:"cid"`
	Name       *string   `json:"name"`
	AlbumCID   *string   `json:"albumCid"`
	SourceURL  *string   `json:"sourceUrl"`
	LyricURL   nullable  `json:"lyricUrl"`
	MVURL      nullable  `json:"mvUrl"`
	MVCoverURL nullable  `json:"mvCoverUrl"`
	Artists    *[]string `json:"artists"`
}

func (w wireSongDetail) convert(p path) (SongDetail, error) {
	var (
		out SongDetail
		err error
	)
	if out.CID, err = requireString(p.field("cid"), w.CID); err != nil {
		return out, err
	}
	if out.Name, err = requireString(p.field("name"), w.Name); err != nil {
		return out, err
	}
	if out.AlbumCID, err = requireString(p.field("albumCid"), w.AlbumCID); err != nil {
		return out, err
	}
	if out.SourceURL, err = requireURL(p.field("sourceUrl"), w.SourceURL); err != nil {
		return out, err
	}
	if out.LyricURL, err = nullableURL(p.field("lyricUrl"), w.LyricURL); err != nil {
		return out, err
	}
	if out.MVURL, err = nullableURL(p.field("mvUrl"), w.MVURL); err != nil {
		return out, err
	}
	if out.MVCoverURL, err = nullableURL(p.field("mvCoverUrl"), w.MVCoverURL); err != nil {
		return out, err
	}
	out.Artists, err = requireStrings(p.field("artists"), w.Artists)
	return out, err
}
