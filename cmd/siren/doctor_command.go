package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"siren/internal/deps"
	"siren/internal/preflight"
)

type doctorReport struct {
	Checks []preflight.Result `json:"checks"`
	Deps   []deps.Status      `json:"dependencies"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, free space, the API and the player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := doctorReport{
				Checks: preflight.RunAll(cmd.Context(), cfg),
				Deps:   preflight.CheckSystemDeps(cfg),
			}

			failed := 0
			for _, r := range report.Checks {
				if !r.Passed {
					failed++
				}
			}
			failed += len(deps.Missing(report.Deps))

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printDoctorReport(cmd, report)
			}
			if failed > 0 {
				return errors.New(pluralize(failed, "check failed", "checks failed"))
			}
			return nil
		},
	}
}

func printDoctorReport(cmd *cobra.Command, report doctorReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range report.Checks {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, s := range report.Deps {
		kind, message := statusOK, s.Path
		switch {
		case !s.Available && s.Optional:
			kind, message = statusWarn, fmt.Sprintf("%s; %s unavailable", s.Detail, s.Description)
		case !s.Available:
			kind, message = statusError, s.Detail
		}
		fmt.Fprintln(out, renderStatusLine(s.Name, kind, message, colorize))
	}
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
