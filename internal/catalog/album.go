package catalog

import (
	"context"

	"siren/internal/collapse"
	"siren/internal/msr"
)

// AlbumEntry pairs a song cid with its album listing.
type AlbumEntry struct {
	CID  string
	Song msr.AlbumSong
}

// Album is a fully fetched album.
type Album struct {
	detail msr.AlbumDetail
	table  collapse.Table
}

// NewAlbum wraps an album detail record.
func NewAlbum(detail msr.AlbumDetail) *Album {
	a := &Album{detail: detail}
	a.table = collapse.Table{
		"cid":        collapse.Const(detail.CID),
		"name":       collapse.Const(detail.Name),
		"intro":      collapse.Const(detail.Intro),
		"belong":     collapse.Const(detail.Belong),
		"coverUrl":   collapse.Const(detail.CoverURL),
		"coverDeUrl": collapse.Const(detail.CoverDeURL),
		"songs": func(context.Context, ...any) (any, error) {
			return a.Values(), nil
		},
		"keys": func(context.Context, ...any) (any, error) {
			return a.Keys(), nil
		},
		"values": func(context.Context, ...any) (any, error) {
			return a.Values(), nil
		},
		"entries": func(context.Context, ...any) (any, error) {
			return a.Entries(), nil
		},
	}
	return a
}

// Detail returns the underlying record.
func (a *Album) Detail() msr.AlbumDetail { return a.detail }

func (a *Album) CID() string        { return a.detail.CID }
func (a *Album) Name() string       { return a.detail.Name }
func (a *Album) Intro() string      { return a.detail.Intro }
func (a *Album) Belong() string     { return a.detail.Belong }
func (a *Album) CoverURL() string   { return a.detail.CoverURL }
func (a *Album) CoverDeURL() string { return a.detail.CoverDeURL }

// Keys lists the cids of the album's songs in album order.
func (a *Album) Keys() []string {
	keys := make([]string, len(a.detail.Songs))
	for i, s := range a.detail.Songs {
		keys[i] = s.CID
	}
	return keys
}

// Values lists the album's songs. The slice is a copy.
func (a *Album) Values() []msr.AlbumSong {
	return append([]msr.AlbumSong(nil), a.detail.Songs...)
}

// Entries lists the album's songs keyed by cid.
func (a *Album) Entries() []AlbumEntry {
	entries := make([]AlbumEntry, len(a.detail.Songs))
	for i, s := range a.detail.Songs {
		entries[i] = AlbumEntry{CID: s.CID, Song: s}
	}
	return entries
}

func (a *Album) Lookup(name string) (collapse.Func, bool) { return a.table.Lookup(name) }
func (a *Album) Members() []string                        { return a.table.Members() }
