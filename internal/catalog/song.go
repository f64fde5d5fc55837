package catalog

import (
	"context"

	"siren/internal/collapse"
	"siren/internal/msr"
)

type albumLoader func(ctx context.Context, cid string) (*Album, error)

// Song is a fully fetched song.
type Song struct {
	detail msr.SongDetail
	table  collapse.Table
}

// NewSong wraps a song detail record.
func NewSong(detail msr.SongDetail) *Song {
	return newSong(detail, nil)
}

func newSong(detail msr.SongDetail, albums albumLoader) *Song {
	s := &Song{detail: detail}
	s.table = collapse.Table{
		"cid":        collapse.Const(detail.CID),
		"name":       collapse.Const(detail.Name),
		"albumCid":   collapse.Const(detail.AlbumCID),
		"sourceUrl":  collapse.Const(detail.SourceURL),
		"lyricUrl":   collapse.Const(detail.LyricURL),
		"mvUrl":      collapse.Const(detail.MVURL),
		"mvCoverUrl": collapse.Const(detail.MVCoverURL),
		"artists": func(context.Context, ...any) (any, error) {
			return append([]string(nil), detail.Artists...), nil
		},
	}
	if albums != nil {
		s.table["album"] = func(ctx context.Context, _ ...any) (any, error) {
			return albums(ctx, detail.AlbumCID)
		}
	}
	return s
}

// Detail returns the underlying record.
func (s *Song) Detail() msr.SongDetail { return s.detail }

func (s *Song) CID() string       { return s.detail.CID }
func (s *Song) Name() string      { return s.detail.Name }
func (s *Song) AlbumCID() string  { return s.detail.AlbumCID }
func (s *Song) SourceURL() string { return s.detail.SourceURL }

// LyricURL is nil when the song has no lyrics.
func (s *Song) LyricURL() *string { return s.detail.LyricURL }

func (s *Song) MVURL() *string      { return s.detail.MVURL }
func (s *Song) MVCoverURL() *string { return s.detail.MVCoverURL }
func (s *Song) Artists() []string   { return append([]string(nil), s.detail.Artists...) }

func (s *Song) Lookup(name string) (collapse.Func, bool) { return s.table.Lookup(name) }
func (s *Song) Members() []string                        { return s.table.Members() }
