package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/misty-step/rootstock/internal/preflight"
)

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Validate this host without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			svc := preflight.NewService(logger, nil)

			report, err := svc.Check(cmd.Context())
			renderReport(cmd.OutOrStdout(), report)
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "preflight failed: %v\n", err)
				return &exitError{Code: 1}
			}
			return nil
		},
	}
}

func renderReport(out io.Writer, report preflight.Report) {
	for _, check := range report.Checks {
		_, _ = fmt.Fprintf(out, "%-4s %-12s %s\n", check.Status, check.Name, check.Message)
	}
	if report.Failures > 0 {
		_, _ = fmt.Fprintf(out, "%d of %d checks failed\n", report.Failures, len(report.Checks))
	}
}
