package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/boardwatch/internal/app"
	"github.com/JakeFAU/boardwatch/internal/watch"
)

func newOnceCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Runs a single cycle and prints the report",
		Long: `Runs one fetch, extract, match and notify cycle. With --dry-run alerts
are only logged and the seen state is neither read nor written, which makes
it a safe way to check the extraction against the live page.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), e.cfg, e.logger, app.Options{DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer func() { _ = a.Close() }()

			report, err := a.Pipeline().RunCycle(cmd.Context())
			printReport(cmd.OutOrStdout(), report)
			if err != nil && !errors.Is(err, watch.ErrExtractionEmpty) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log alerts instead of sending them and leave state untouched")
	return cmd
}

func printReport(w io.Writer, r watch.CycleReport) {
	fmt.Fprintf(w, "cycle %s outcome=%s strategy=%s extracted=%d matched=%d new=%d sent=%d failed=%d duration=%s\n",
		r.CycleID, r.Outcome, valueOr(r.Strategy, "none"), r.Extracted, r.Matched, r.New, r.Sent, r.Failed, r.Duration)
	if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
	}
	for _, item := range r.Hits {
		fmt.Fprintf(w, "  %s\t%s\n", item.Title, item.URL)
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
