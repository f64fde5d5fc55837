package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"siren/internal/catalog"
	"siren/internal/msr"
)

func newAlbumsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "albums",
		Short: "List every album",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			refs, err := cat.Albums(cmd.Context())
			if err != nil {
				return err
			}
			albums := make([]msr.Album, 0, len(refs))
			for _, ref := range refs {
				album, err := albumSummary(cmd, ref)
				if err != nil {
					return err
				}
				albums = append(albums, album)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, albums)
			}
			rows := make([][]string, 0, len(albums))
			for _, a := range albums {
				rows = append(rows, []string{a.CID, a.Name, joinNames(a.Artistes)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"CID", "Name", "Artists"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
}

// albumSummary reads the list fields of ref; none of them fetch.
func albumSummary(cmd *cobra.Command, ref catalog.AlbumRef) (msr.Album, error) {
	out := msr.Album{CID: ref.CID()}
	var err error
	if out.Name, err = ref.Name(cmd.Context()); err != nil {
		return out, err
	}
	if out.CoverURL, err = ref.CoverURL(cmd.Context()); err != nil {
		return out, err
	}
	out.Artistes, err = ref.Artistes(cmd.Context())
	return out, err
}

func newSongsCommand(ctx *commandContext) *cobra.Command {
	var albumFilter string

	cmd := &cobra.Command{
		Use:   "songs",
		Short: "List every song",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			refs, err := cat.Songs(cmd.Context())
			if err != nil {
				return err
			}
			songs := make([]msr.Song, 0, len(refs))
			for _, ref := range refs {
				song, err := songSummary(cmd, ref)
				if err != nil {
					return err
				}
				if albumFilter != "" && song.AlbumCID != albumFilter {
					continue
				}
				songs = append(songs, song)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, songs)
			}
			rows := make([][]string, 0, len(songs))
			for _, s := range songs {
				rows = append(rows, []string{s.CID, s.Name, s.AlbumCID, joinNames(s.Artists)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"CID", "Name", "Album", "Artists"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVar(&albumFilter, "album", "", "Only list songs of this album cid")
	return cmd
}

func songSummary(cmd *cobra.Command, ref catalog.SongRef) (msr.Song, error) {
	out := msr.Song{CID: ref.CID()}
	var err error
	if out.Name, err = ref.Name(cmd.Context()); err != nil {
		return out, err
	}
	if out.AlbumCID, err = ref.AlbumCID(cmd.Context()); err != nil {
		return out, err
	}
	out.Artists, err = ref.Artists(cmd.Context())
	return out, err
}

func newAlbumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "album CID",
		Short: "Show an album and its songs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cid, err := catalog.CIDOf(args[0])
			if err != nil {
				return err
			}
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			album, err := cat.Album(cmd.Context(), cid)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, album.Detail())
			}
			out := cmd.OutOrStdout()
			printField(out, "CID", album.CID())
			printField(out, "Name", album.Name())
			printField(out, "Belong", album.Belong())
			printField(out, "Cover", album.CoverURL())
			printField(out, "Intro", album.Intro())
			rows := make([][]string, 0, len(album.Keys()))
			for i, entry := range album.Entries() {
				rows = append(rows, []string{strconv.Itoa(i + 1), entry.CID, entry.Song.Name, joinNames(entry.Song.Artistes)})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "CID", "Name", "Artists"}, rows, []columnAlignment{alignRight, alignRight}))
			return nil
		},
	}
}

type songView struct {
	msr.SongDetail
	Album *msr.AlbumDetail `json:"album,omitempty"`
}

func newSongCommand(ctx *commandContext) *cobra.Command {
	var withAlbum bool

	cmd := &cobra.Command{
		Use:   "song CID",
		Short: "Show a song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cid, err := catalog.CIDOf(args[0])
			if err != nil {
				return err
			}
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			ref := cat.SongRef(msr.Song{CID: cid})
			song, err := ref.Detail(cmd.Context())
			if err != nil {
				return err
			}
			view := songView{SongDetail: song.Detail()}
			if withAlbum {
				album, err := ref.Album(cmd.Context())
				if err != nil {
					return err
				}
				detail := album.Detail()
				view.Album = &detail
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, view)
			}
			out := cmd.OutOrStdout()
			printField(out, "CID", song.CID())
			printField(out, "Name", song.Name())
			printField(out, "Artists", joinNames(song.Artists()))
			printField(out, "Album", song.AlbumCID())
			if view.Album != nil {
				printField(out, "Album name", view.Album.Name)
			}
			printField(out, "Source", song.SourceURL())
			printField(out, "Lyrics", orDash(song.LyricURL()))
			printField(out, "MV", orDash(song.MVURL()))
			printField(out, "MV cover", orDash(song.MVCoverURL()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withAlbum, "album", false, "Also fetch the album the song belongs to")
	return cmd
}

func printField(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%-12s %s\n", label+":", value)
}
