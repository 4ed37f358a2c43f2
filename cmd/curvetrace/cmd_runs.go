package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp-metrics/curvetrace/internal/archive"
)

func newRunsCmd() *cobra.Command {
	var (
		limit       int
		archivePath string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived batch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("archive") {
				cfg.Archive.Path = archivePath
			}
			if cfg.Archive.Path == "" {
				return fmt.Errorf("no archive configured: set archive.path or pass --archive")
			}

			a, err := archive.Open(cfg.Archive.Path)
			if err != nil {
				return fmt.Errorf("opening archive: %w", err)
			}
			defer a.Close()

			runs, err := a.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tCREATED\tRECORDS\tFAILURES\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.Kind, r.CreatedAt.Format(time.RFC3339), r.Records, r.Failures, r.OutputPath)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive database (overrides config)")

	return cmd
}
