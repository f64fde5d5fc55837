package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"siren/internal/metacache"
	"siren/internal/player"
	"siren/internal/workflow"
)

func newGetCommand(ctx *commandContext) *cobra.Command {
	var noPlay bool

	cmd := &cobra.Command{
		Use:   "get [play:]CID...",
		Short: "Download songs, then play the ones prefixed with play:",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requests, err := workflow.ParseRequests(args)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			cat, err := ctx.catalog()
			if err != nil {
				return err
			}
			downloader, err := ctx.downloader()
			if err != nil {
				return err
			}

			return ctx.withCache(cmd.Context(), func(cache *metacache.Cache) error {
				reporter := newReporter(cmd.ErrOrStderr(), ctx.jsonOutput(), len(requests), logger)
				manager := workflow.NewManager(cfg, cat, cache, downloader, logger, workflow.WithReporter(reporter))
				results, runErr := manager.Run(cmd.Context(), requests)
				if bar, ok := reporter.(*barReporter); ok {
					bar.Close()
				}
				if err := printResults(cmd, ctx.jsonOutput(), results); err != nil {
					return errors.Join(runErr, err)
				}
				if noPlay {
					return runErr
				}

				var paths []string
				for _, res := range results {
					if res.Play {
						paths = append(paths, res.Entry.Path)
					}
				}
				if len(paths) == 0 {
					return runErr
				}
				p := player.FromConfig(cfg, player.WithLogger(logger))
				return errors.Join(runErr, p.PlayAll(cmd.Context(), paths))
			})
		},
	}

	cmd.Flags().BoolVar(&noPlay, "no-play", false, "Download play: requests without starting the player")
	return cmd
}

type resultView struct {
	CID          string `json:"cid"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	B3Sum        string `json:"b3sum"`
	Cached       bool   `json:"cached"`
	Downloaded   bool   `json:"downloaded"`
	Redownloaded bool   `json:"redownloaded"`
	Play         bool   `json:"play"`
}

func printResults(cmd *cobra.Command, jsonOutput bool, results []workflow.Result) error {
	if jsonOutput {
		views := make([]resultView, 0, len(results))
		for _, res := range results {
			views = append(views, resultView{
				CID:          res.Entry.CID,
				Name:         res.Entry.Data.Name,
				Path:         res.Entry.Path,
				B3Sum:        res.Entry.B3Sum,
				Cached:       res.Cached,
				Downloaded:   res.Downloaded,
				Redownloaded: res.Redownloaded,
				Play:         res.Play,
			})
		}
		return writeJSON(cmd, views)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, res := range results {
		fmt.Fprintln(out, renderStatusLine(res.Entry.CID, resultKind(res), resultMessage(res), colorize))
	}
	return nil
}

func resultKind(res workflow.Result) statusKind {
	switch {
	case res.Redownloaded:
		return statusWarn
	case res.Downloaded:
		return statusOK
	default:
		return statusInfo
	}
}

func resultMessage(res workflow.Result) string {
	state := "up to date"
	switch {
	case res.Redownloaded:
		state = "checksum mismatch, downloaded again"
	case res.Downloaded:
		state = "downloaded"
	}
	if res.Cached {
		state += " (cached metadata)"
	}
	return fmt.Sprintf("%s: %s -> %s", res.Entry.Data.Name, state, filepath.Base(res.Entry.Path))
}

func printSummary(out io.Writer, verb string, results []workflow.Result, err error) {
	failed := 0
	if err != nil {
		failed = len(unwrapJoined(err))
	}
	fmt.Fprintf(out, "%s %d songs", verb, len(results))
	if failed > 0 {
		fmt.Fprintf(out, ", %d failed", failed)
	}
	fmt.Fprintln(out)
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
