package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siren/internal/catalog"
	"siren/internal/collapse"
	"siren/internal/msr"
	"siren/internal/services"
	"siren/internal/testsupport"
)

const (
	albumPath = "/api/album/1010/detail"
	songPath  = "/api/song/697699"
)

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) (*catalog.Catalog, *testsupport.MSRServer) {
	t.Helper()
	srv := testsupport.NewMSRServer(t)
	srv.AddAlbum(msr.AlbumDetail{
		CID:        "1010",
		Name:       "Grow on My Time",
		Intro:      "傍晚的风送来远空的呢喃",
		Belong:     "arknights",
		CoverURL:   "https://web.hycdn.cn/siren/pic/cover.jpg",
		CoverDeURL: "https://web.hycdn.cn/siren/pic/cover-de.jpg",
		Songs: []msr.AlbumSong{
			{CID: "697699", Name: "Grow on My Time", Artistes: []string{"塞壬唱片-MSR"}},
			{CID: "232234", Name: "Grow on My Time (Instrumental)", Artistes: []string{"塞壬唱片-MSR"}},
		},
	}, []string{"塞壬唱片-MSR"})
	srv.AddSong(msr.SongDetail{
		CID:      "697699",
		Name:     "Grow on My Time",
		AlbumCID: "1010",
		LyricURL: strPtr("https://web.hycdn.cn/siren/lyric/697699.lrc"),
		Artists:  []string{"塞壬唱片-MSR"},
	}, []byte("audio"))

	client, err := msr.NewClient(msr.Config{BaseURL: srv.APIBase(), RetryDelay: time.Millisecond})
	require.NoError(t, err)
	return catalog.New(client), srv
}

func TestAlbumRefSummaryFieldsDoNotFetch(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()

	refs, err := cat.Albums(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	ref := refs[0]

	name, err := ref.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grow on My Time", name)
	artistes, err := ref.Artistes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"塞壬唱片-MSR"}, artistes)
	assert.Equal(t, "1010", ref.CID())

	assert.Equal(t, 0, srv.Hits(albumPath))
	assert.Equal(t, collapse.StateEmpty, ref.State())
}

func TestAlbumRefProjectionsShareOneFetch(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()
	refs, err := cat.Albums(ctx)
	require.NoError(t, err)
	ref := refs[0]

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			intro, err := ref.Intro(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "傍晚的风送来远空的呢喃", intro)
		}()
	}
	wg.Wait()

	songs, err := ref.Songs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "232234", songs[1].CID)

	detail, err := ref.Detail(ctx)
	require.NoError(t, err)
	again, err := ref.Detail(ctx)
	require.NoError(t, err)
	assert.Same(t, detail, again)
	assert.Equal(t, []string{"697699", "232234"}, detail.Keys())
	assert.Equal(t, 1, srv.Hits(albumPath))
	assert.Equal(t, collapse.StateMaterialized, ref.State())
}

func TestAlbumRefMembersAfterMaterialization(t *testing.T) {
	cat, _ := newFixture(t)
	ctx := context.Background()
	refs, err := cat.Albums(ctx)
	require.NoError(t, err)
	ref := refs[0]

	before := ref.MemberNames()
	assert.NotContains(t, before, "entries")
	assert.Contains(t, before, "artistes")

	_, err = ref.Detail(ctx)
	require.NoError(t, err)

	after := ref.MemberNames()
	assert.Contains(t, after, "entries")
	assert.Contains(t, after, "artistes")

	entries, err := collapse.Get[[]catalog.AlbumEntry](ctx, ref, "entries")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "697699", entries[0].CID)
	assert.Equal(t, "Grow on My Time", entries[0].Song.Name)

	for _, m := range ref.Members() {
		if m.Name == "name" {
			assert.Equal(t, collapse.OwnerFull, m.Owner)
		}
		if m.Name == "artistes" {
			assert.Equal(t, collapse.OwnerStub, m.Owner)
		}
	}
}

func TestSongRefFetchFailureIsRetried(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()
	refs, err := cat.Songs(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	ref := refs[0]

	srv.FailNext(songPath, http.StatusNotFound)
	_, err = ref.SourceURL(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, collapse.ErrMaterialization)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.Equal(t, collapse.StateEmpty, ref.State())

	source, err := ref.SourceURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.AudioURL("697699.mp3"), source)

	lyric, err := ref.LyricURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, lyric)
	assert.Equal(t, "https://web.hycdn.cn/siren/lyric/697699.lrc", *lyric)

	mv, err := ref.MVURL(ctx)
	require.NoError(t, err)
	assert.Nil(t, mv)
	assert.Equal(t, 2, srv.Hits(songPath))
}

func TestSongRefAlbumLeavesDetailBehind(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()
	refs, err := cat.Songs(ctx)
	require.NoError(t, err)
	ref := refs[0]

	album, err := ref.Album(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1010", album.CID())
	assert.Equal(t, collapse.StateMaterialized, ref.State())

	song, ok := ref.Peek()
	require.True(t, ok)
	assert.Equal(t, "697699", song.CID())

	detail, err := ref.Detail(ctx)
	require.NoError(t, err)
	assert.Same(t, song, detail)
	assert.Equal(t, 1, srv.Hits(songPath))

	// The detail now answers album itself.
	_, err = ref.Album(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits(songPath))
	assert.Equal(t, 2, srv.Hits(albumPath))
}

func TestCollapseOnRefs(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()
	refs, err := cat.Songs(ctx)
	require.NoError(t, err)

	fut, ok := collapse.Collapse[*catalog.Song](ctx, refs[0])
	require.True(t, ok)
	song, err := fut.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Grow on My Time", song.Name())

	_, ok = collapse.Collapse[*catalog.Song](ctx, song)
	assert.False(t, ok)
	assert.Equal(t, 1, srv.Hits(songPath))
}

func TestCatalogResolvesReferences(t *testing.T) {
	cat, srv := newFixture(t)
	ctx := context.Background()

	album, err := cat.Album(ctx, "1010")
	require.NoError(t, err)
	assert.Equal(t, "Grow on My Time", album.Name())

	album, err = cat.Album(ctx, 1010)
	require.NoError(t, err)
	assert.Equal(t, "arknights", album.Belong())

	song, err := cat.Song(ctx, album.Values()[0])
	require.NoError(t, err)
	assert.Equal(t, "1010", song.AlbumCID())

	song, err = cat.Song(ctx, song)
	require.NoError(t, err)
	assert.Equal(t, "697699", song.CID())

	ref := cat.SongRef(msr.Song{CID: "697699", Name: "Grow on My Time", AlbumCID: "1010"})
	fromRef, err := cat.Song(ctx, ref)
	require.NoError(t, err)
	cached, ok := ref.Peek()
	require.True(t, ok)
	assert.Same(t, cached, fromRef)
	assert.Equal(t, 3, srv.Hits(songPath))
}

func TestCIDOfRejectsUnsupportedValues(t *testing.T) {
	for _, ref := range []any{nil, 1.5, struct{}{}, "  "} {
		_, err := catalog.CIDOf(ref)
		assert.ErrorIs(t, err, catalog.ErrUnsupportedRef)
		assert.True(t, errors.Is(err, services.ErrValidation))
	}
}

func TestSongObjectMembers(t *testing.T) {
	song := catalog.NewSong(msr.SongDetail{
		CID:       "1",
		Name:      "a",
		AlbumCID:  "2",
		SourceURL: "https://cdn.example/a.mp3",
		Artists:   []string{"x"},
	})
	assert.Equal(t, []string{"albumCid", "artists", "cid", "lyricUrl", "mvCoverUrl", "mvUrl", "name", "sourceUrl"}, song.Members())
	_, ok := song.Lookup("album")
	assert.False(t, ok)
}
