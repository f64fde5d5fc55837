package catalog

import (
	"context"

	"siren/internal/collapse"
	"siren/internal/msr"
)

// AlbumRef is an album list entry that fetches its detail on demand.
type AlbumRef struct {
	*collapse.Stub[msr.Album, *Album]
}

func (c *Catalog) albumRef(summary msr.Album) AlbumRef {
	methods := collapse.Methods[msr.Album, *Album]{
		"cid":      collapse.Field[msr.Album, *Album](func(a msr.Album) any { return a.CID }),
		"name":     collapse.Field[msr.Album, *Album](func(a msr.Album) any { return a.Name }),
		"coverUrl": collapse.Field[msr.Album, *Album](func(a msr.Album) any { return a.CoverURL }),
		"artistes": collapse.Field[msr.Album, *Album](func(a msr.Album) any {
			return append([]string(nil), a.Artistes...)
		}),
		"detail":     collapse.Identity[msr.Album, *Album](),
		"intro":      collapse.Project[msr.Album](func(a *Album) any { return a.Intro() }),
		"belong":     collapse.Project[msr.Album](func(a *Album) any { return a.Belong() }),
		"coverDeUrl": collapse.Project[msr.Album](func(a *Album) any { return a.CoverDeURL() }),
		"songs":      collapse.Project[msr.Album](func(a *Album) any { return a.Values() }),
	}
	materialize := func(ctx context.Context, a msr.Album) (*Album, error) {
		return c.fetchAlbum(ctx, a.CID)
	}
	return AlbumRef{collapse.New(summary.CID, summary, methods, materialize, collapse.WithLogger(c.logger))}
}

// CID is the album identity and never needs the detail.
func (r AlbumRef) CID() string { return r.Key() }

func (r AlbumRef) Name(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "name")
}

func (r AlbumRef) CoverURL(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "coverUrl")
}

// Artistes answers from the list entry; album details do not carry them.
func (r AlbumRef) Artistes(ctx context.Context) ([]string, error) {
	return collapse.Get[[]string](ctx, r, "artistes")
}

func (r AlbumRef) Intro(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "intro")
}

func (r AlbumRef) Belong(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "belong")
}

func (r AlbumRef) CoverDeURL(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "coverDeUrl")
}

func (r AlbumRef) Songs(ctx context.Context) ([]msr.AlbumSong, error) {
	return collapse.Get[[]msr.AlbumSong](ctx, r, "songs")
}

// Detail fetches the album detail once and shares it with every caller.
func (r AlbumRef) Detail(ctx context.Context) (*Album, error) {
	return collapse.Get[*Album](ctx, r, "detail")
}

// SongRef is a song list entry that fetches its detail on demand.
type SongRef struct {
	*collapse.Stub[msr.Song, *Song]
}

func (c *Catalog) songRef(summary msr.Song) SongRef {
	methods := collapse.Methods[msr.Song, *Song]{
		"cid":      collapse.Field[msr.Song, *Song](func(s msr.Song) any { return s.CID }),
		"name":     collapse.Field[msr.Song, *Song](func(s msr.Song) any { return s.Name }),
		"albumCid": collapse.Field[msr.Song, *Song](func(s msr.Song) any { return s.AlbumCID }),
		"artists": collapse.Field[msr.Song, *Song](func(s msr.Song) any {
			return append([]string(nil), s.Artists...)
		}),
		"detail":     collapse.Identity[msr.Song, *Song](),
		"sourceUrl":  collapse.Project[msr.Song](func(s *Song) any { return s.SourceURL() }),
		"lyricUrl":   collapse.Project[msr.Song](func(s *Song) any { return s.LyricURL() }),
		"mvUrl":      collapse.Project[msr.Song](func(s *Song) any { return s.MVURL() }),
		"mvCoverUrl": collapse.Project[msr.Song](func(s *Song) any { return s.MVCoverURL() }),
		// The parent album is not part of the song detail, so the call does
		// its own fetches and leaves the song detail behind for the cell.
		"album": func(context.Context, msr.Song, ...any) (collapse.Outcome[msr.Song, *Song], error) {
			return collapse.To(func(ctx context.Context, s msr.Song) (*Song, any, error) {
				song, err := c.fetchSong(ctx, s.CID)
				if err != nil {
					return nil, nil, err
				}
				album, err := c.fetchAlbum(ctx, song.AlbumCID())
				if err != nil {
					return nil, nil, err
				}
				return song, album, nil
			}), nil
		},
	}
	materialize := func(ctx context.Context, s msr.Song) (*Song, error) {
		return c.fetchSong(ctx, s.CID)
	}
	return SongRef{collapse.New(summary.CID, summary, methods, materialize, collapse.WithLogger(c.logger))}
}

// CID is the song identity and never needs the detail.
func (r SongRef) CID() string { return r.Key() }

func (r SongRef) Name(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "name")
}

func (r SongRef) AlbumCID(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "albumCid")
}

func (r SongRef) Artists(ctx context.Context) ([]string, error) {
	return collapse.Get[[]string](ctx, r, "artists")
}

func (r SongRef) SourceURL(ctx context.Context) (string, error) {
	return collapse.Get[string](ctx, r, "sourceUrl")
}

func (r SongRef) LyricURL(ctx context.Context) (*string, error) {
	return collapse.Get[*string](ctx, r, "lyricUrl")
}

func (r SongRef) MVURL(ctx context.Context) (*string, error) {
	return collapse.Get[*string](ctx, r, "mvUrl")
}

func (r SongRef) MVCoverURL(ctx context.Context) (*string, error) {
	return collapse.Get[*string](ctx, r, "mvCoverUrl")
}

// Detail fetches the song detail once and shares it with every caller.
func (r SongRef) Detail(ctx context.Context) (*Song, error) {
	return collapse.Get[*Song](ctx, r, "detail")
}

// Album fetches the album the song belongs to.
func (r SongRef) Album(ctx context.Context) (*Album, error) {
	return collapse.Get[*Album](ctx, r, "album")
}
