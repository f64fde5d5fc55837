package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"siren/internal/metacache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the metadata cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

type cacheEntryView struct {
	CID   string `json:"cid"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	B3Sum string `json:"b3sum"`
	Size  int64  `json:"size"`
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(cmd.Context(), func(cache *metacache.Cache) error {
				entries := cache.List()
				views := make([]cacheEntryView, 0, len(entries))
				for _, entry := range entries {
					view := cacheEntryView{CID: entry.CID, Name: entry.Data.Name, Path: entry.Path, B3Sum: entry.B3Sum, Size: -1}
					if entry.Path != "" {
						if info, err := os.Stat(entry.Path); err == nil {
							view.Size = info.Size()
						}
					}
					views = append(views, view)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "Cached songs: none")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.CID, v.Name, fileState(v), yesNo(v.B3Sum != "")})
				}
				fmt.Fprintln(out, renderTable([]string{"CID", "Name", "File", "Checksum"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func fileState(v cacheEntryView) string {
	switch {
	case v.Path == "":
		return "not downloaded"
	case v.Size < 0:
		return "missing"
	default:
		return humanize.IBytes(uint64(v.Size))
	}
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	var deleteFile bool

	cmd := &cobra.Command{
		Use:   "remove CID...",
		Short: "Forget cached songs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(cmd.Context(), func(cache *metacache.Cache) error {
				out := cmd.OutOrStdout()
				var errs []error
				for _, cid := range args {
					entry, ok := cache.Lookup(cid)
					if err := cache.Remove(cid); err != nil {
						errs = append(errs, err)
						continue
					}
					if deleteFile && ok && entry.Path != "" {
						if err := os.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
							errs = append(errs, fmt.Errorf("delete %s: %w", entry.Path, err))
						}
					}
					fmt.Fprintf(out, "Removed %s\n", cid)
				}
				if err := cache.Flush(cmd.Context()); err != nil {
					errs = append(errs, err)
				}
				return errors.Join(errs...)
			})
		},
	}

	cmd.Flags().BoolVar(&deleteFile, "delete-file", false, "Also delete the downloaded audio file")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget every cached song (audio files are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withCache(cmd.Context(), func(cache *metacache.Cache) error {
				count := cache.Len()
				cache.Clear()
				if err := cache.Flush(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached songs\n", count)
				return nil
			})
		},
	}
}
