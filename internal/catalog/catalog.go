package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"siren/internal/logging"
	"siren/internal/msr"
	"siren/internal/services"
)

// ErrUnsupportedRef reports a value Album or Song cannot take a cid from.
var ErrUnsupportedRef = errors.New("unsupported catalog reference")

// Client is the subset of the API client the catalog uses.
type Client interface {
	Albums(ctx context.Context) ([]msr.Album, error)
	AlbumDetail(ctx context.Context, cid string) (msr.AlbumDetail, error)
	Songs(ctx context.Context) ([]msr.Song, error)
	Song(ctx context.Context, cid string) (msr.SongDetail, error)
}

// Option customizes a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger passed to every reference.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// Catalog builds album and song references backed by client.
type Catalog struct {
	client Client
	logger *slog.Logger
}

// New returns a catalog reading from client.
func New(client Client, opts ...Option) *Catalog {
	c := &Catalog{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = logging.NewComponentLogger(c.logger, "catalog")
	return c
}

// Albums lists every album as an unfetched reference.
func (c *Catalog) Albums(ctx context.Context) ([]AlbumRef, error) {
	list, err := c.client.Albums(ctx)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	refs := make([]AlbumRef, len(list))
	for i, a := range list {
		refs[i] = c.albumRef(a)
	}
	c.logger.DebugContext(ctx, "albums listed", logging.Int("count", len(refs)))
	return refs, nil
}

// Songs lists every song as an unfetched reference.
func (c *Catalog) Songs(ctx context.Context) ([]SongRef, error) {
	list, err := c.client.Songs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	refs := make([]SongRef, len(list))
	for i, s := range list {
		refs[i] = c.songRef(s)
	}
	c.logger.DebugContext(ctx, "songs listed", logging.Int("count", len(refs)))
	return refs, nil
}

// AlbumRef wraps a known summary without fetching anything.
func (c *Catalog) AlbumRef(summary msr.Album) AlbumRef { return c.albumRef(summary) }

// SongRef wraps a known summary without fetching anything.
func (c *Catalog) SongRef(summary msr.Song) SongRef { return c.songRef(summary) }

// Album fetches an album. ref is a cid (string or integer), an API record
// carrying a cid, an AlbumRef, or any value with a CID method.
func (c *Catalog) Album(ctx context.Context, ref any) (*Album, error) {
	if r, ok := ref.(AlbumRef); ok && r.Stub != nil {
		return r.Detail(ctx)
	}
	cid, err := CIDOf(ref)
	if err != nil {
		return nil, err
	}
	return c.fetchAlbum(ctx, cid)
}

// Song fetches a song. ref is a cid (string or integer), an API record
// carrying a cid, a SongRef, or any value with a CID method.
func (c *Catalog) Song(ctx context.Context, ref any) (*Song, error) {
	if r, ok := ref.(SongRef); ok && r.Stub != nil {
		return r.Detail(ctx)
	}
	cid, err := CIDOf(ref)
	if err != nil {
		return nil, err
	}
	return c.fetchSong(ctx, cid)
}

// CIDOf extracts the cid a reference points at.
func CIDOf(ref any) (string, error) {
	var cid string
	switch v := ref.(type) {
	case string:
		cid = v
	case int:
		cid = strconv.Itoa(v)
	case int64:
		cid = strconv.FormatInt(v, 10)
	case uint64:
		cid = strconv.FormatUint(v, 10)
	case msr.Album:
		cid = v.CID
	case msr.AlbumSong:
		cid = v.CID
	case msr.AlbumDetail:
		cid = v.CID
	case msr.Song:
		cid = v.CID
	case msr.SongDetail:
		cid = v.CID
	case interface{ CID() string }:
		cid = v.CID()
	default:
		return "", services.Wrap(services.ErrValidation, "catalog", "resolve reference", fmt.Sprintf("%T", ref), ErrUnsupportedRef)
	}
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return "", services.Wrap(services.ErrValidation, "catalog", "resolve reference", "empty cid", ErrUnsupportedRef)
	}
	return cid, nil
}

func (c *Catalog) fetchAlbum(ctx context.Context, cid string) (*Album, error) {
	detail, err := c.client.AlbumDetail(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("fetch album %s: %w", cid, err)
	}
	c.logger.DebugContext(ctx, "album fetched",
		logging.String("album_id", cid),
		logging.Int("songs", len(detail.Songs)),
	)
	return NewAlbum(detail), nil
}

func (c *Catalog) fetchSong(ctx context.Context, cid string) (*Song, error) {
	detail, err := c.client.Song(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("fetch song %s: %w", cid, err)
	}
	c.logger.DebugContext(ctx, "song fetched", logging.String(logging.FieldSongID, cid))
	return newSong(detail, c.fetchAlbum), nil
}
