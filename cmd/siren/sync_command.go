package main

import (
	"errors"

	"github.com/spf13/cobra"

	"siren/internal/metacache"
	"siren/internal/workflow"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download every song of the catalog and record its checksum",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
				reporter := newReporter(cmd.ErrOrStderr(), ctx.jsonOutput(), 0, logger)
				manager := workflow.NewManager(cfg, cat, cache, downloader, logger, workflow.WithReporter(reporter))
				results, runErr := manager.SyncAll(cmd.Context())
				if bar, ok := reporter.(*barReporter); ok {
					bar.Close()
				}
				if ctx.jsonOutput() {
					return errors.Join(runErr, printResults(cmd, true, results))
				}
				printSummary(cmd.OutOrStdout(), "Synced", results, runErr)
				return runErr
			})
		},
	}
}
