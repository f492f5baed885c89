// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/digesto/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the ledger",
	Long: `History lists the most recent pipeline runs with their per-stage counts.
With --export RUN_ID the run and every per-document row are written as YAML.`,
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig()
	if cfg.Ledger.Dir == "" {
		return errors.New("no ledger directory configured")
	}
	lg, err := ledger.Open(cfg.Ledger)
	if err != nil {
		return err
	}
	defer lg.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if runID, _ := cmd.Flags().GetInt64("export"); runID > 0 {
		out, _ := cmd.Flags().GetString("output")
		path, err := lg.ExportYAML(ctx, runID, out)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Exported run %d to %s\n", runID, path)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := lg.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		switch {
		case r.FinishedAt.IsZero():
			status = "incomplete"
		case r.Error != "":
			status = "error: " + r.Error
		case r.Failed > 0:
			status = fmt.Sprintf("%d failed", r.Failed)
		}
		fmt.Fprintf(w, "#%d  %-11s  %s  indexed=%d selected=%d converted=%d uploaded=%d  %s\n",
			r.ID, r.Flow, r.StartedAt.Local().Format(time.DateTime),
			r.Indexed, r.Selected, r.Converted, r.Uploaded, status)
	}
	return nil
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to show")
	historyCmd.Flags().Int64("export", 0, "export the run with this ID as YAML")
	historyCmd.Flags().String("output", "", "export file (default: run-<id>.yaml in the ledger dir)")

	rootCmd.AddCommand(historyCmd)
}
