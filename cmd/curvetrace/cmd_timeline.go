package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp-metrics/curvetrace/internal/archive"
	"github.com/warp-metrics/curvetrace/internal/asciimath"
	"github.com/warp-metrics/curvetrace/internal/detect"
	"github.com/warp-metrics/curvetrace/internal/models"
	"github.com/warp-metrics/curvetrace/internal/ndjson"
	"github.com/warp-metrics/curvetrace/internal/timeline"
)

func newTimelineCmd() *cobra.Command {
	var (
		inputJSON          string
		inputAM            string
		outputJSON         string
		outputAM           string
		curvatureThreshold float64
		violationThreshold float64
		archivePath        string
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Derive an ordered event timeline from curvature diagnostics",
		Long: `Timeline reads curvature diagnostic records, applies the detection
thresholds to each record independently, and writes one chronologically
ordered event stream for the whole batch.

Events at equal times keep the diagnostics' input order; within one record,
constraint violations sort ahead of the curvature peak. Re-running over the
same inputs and thresholds reproduces the timeline byte for byte.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("curvature-threshold") {
				cfg.Thresholds.Curvature = curvatureThreshold
			}
			if cmd.Flags().Changed("violation-threshold") {
				cfg.Thresholds.Violation = violationThreshold
			}
			if cmd.Flags().Changed("archive") {
				cfg.Archive.Path = archivePath
			}

			in, err := os.Open(inputJSON)
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer in.Close()

			diagnostics, skipped, err := ndjson.ReadDiagnostics(in)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				logger.Warn("skipping malformed diagnostic line", "line", s.Line, "reason", s.Message)
			}

			// Companion ascii-math input is read but never parsed for data.
			if inputAM != "" {
				am, err := os.ReadFile(inputAM)
				if err != nil {
					return fmt.Errorf("reading ascii-math input: %w", err)
				}
				logger.Debug("ascii-math companion read", "path", inputAM, "bytes", len(am))
			}

			th := detect.Thresholds{
				Curvature: cfg.Thresholds.Curvature,
				Violation: cfg.Thresholds.Violation,
			}
			eventLists := make([][]models.Event, len(diagnostics))
			for i, diag := range diagnostics {
				eventLists[i] = detect.Detect(diag, th)
			}
			tl := timeline.Assemble(eventLists)

			logger.Info("timeline assembled",
				"diagnostics", len(diagnostics), "skipped", len(skipped), "events", len(tl),
				"curvature_threshold", th.Curvature, "violation_threshold", th.Violation)

			out, err := os.Create(outputJSON)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			if err := ndjson.WriteEvents(out, tl); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing output: %w", err)
			}

			if outputAM != "" {
				if err := os.WriteFile(outputAM, []byte(asciimath.RenderTimeline(tl)), 0644); err != nil {
					return fmt.Errorf("writing ascii-math output: %w", err)
				}
			}

			if cfg.Archive.Path != "" {
				a, err := archive.Open(cfg.Archive.Path)
				if err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer a.Close()
				runID, err := a.RecordTimeline(cmd.Context(), inputJSON, outputJSON, tl)
				if err != nil {
					return fmt.Errorf("archiving run: %w", err)
				}
				logger.Info("run archived", "run_id", runID, "archive", cfg.Archive.Path)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input-json", "", "Input diagnostics NDJSON file (required)")
	cmd.Flags().StringVar(&inputAM, "input-am", "", "Optional ascii-math companion of the input")
	cmd.Flags().StringVar(&outputJSON, "output-json", "", "Output event NDJSON file (required)")
	cmd.Flags().StringVar(&outputAM, "output-am", "", "Optional ascii-math rendering of the timeline")
	cmd.Flags().Float64Var(&curvatureThreshold, "curvature-threshold", detect.DefaultCurvatureThreshold, "max_R threshold for curvature_peak events (strict >)")
	cmd.Flags().Float64Var(&violationThreshold, "violation-threshold", detect.DefaultViolationThreshold, "Magnitude threshold for constraint_violation events (strict >)")
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive database (overrides config)")
	cmd.MarkFlagRequired("input-json")
	cmd.MarkFlagRequired("output-json")

	return cmd
}
