package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp-metrics/curvetrace/internal/archive"
	"github.com/warp-metrics/curvetrace/internal/asciimath"
	"github.com/warp-metrics/curvetrace/internal/config"
	"github.com/warp-metrics/curvetrace/internal/extract"
	"github.com/warp-metrics/curvetrace/internal/ndjson"
	"github.com/warp-metrics/curvetrace/internal/solver"
)

func newExtractCmd() *cobra.Command {
	var (
		inputPath    string
		inputAM      string
		outputJSON   string
		outputAM     string
		failuresPath string
		solverCmd    string
		solverArgs   []string
		timeout      time.Duration
		workers      int
		archivePath  string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run the solver over a parameter batch and extract curvature diagnostics",
		Long: `Extract reads validated parameter records from an NDJSON convergence file,
invokes the external solver once per record, and writes one curvature
diagnostic record per successful invocation.

A record that fails (solver crash, timeout, or malformed output) is reported
and skipped; the rest of the batch still completes. Partial failures exit 0;
only setup errors (unreadable input, bad configuration) exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("solver-cmd") {
				cfg.Solver.Command = solverCmd
			}
			if cmd.Flags().Changed("solver-arg") {
				cfg.Solver.Args = solverArgs
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Solver.Timeout = config.Duration(timeout)
			}
			if cmd.Flags().Changed("workers") {
				cfg.Solver.Workers = workers
			}
			if cmd.Flags().Changed("archive") {
				cfg.Archive.Path = archivePath
			}

			in, err := os.Open(inputPath)
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer in.Close()

			records, skipped, err := ndjson.ReadParameterRecords(in)
			if err != nil {
				return err
			}
			for _, s := range skipped {
				logger.Warn("skipping malformed input line", "line", s.Line, "reason", s.Message)
			}
			logger.Info("parameter batch loaded",
				"input", inputPath, "records", len(records), "skipped", len(skipped))

			// The companion ascii-math file carries no data the pipeline
			// consumes; it is only checked for readability.
			if inputAM != "" {
				am, err := os.ReadFile(inputAM)
				if err != nil {
					return fmt.Errorf("reading ascii-math input: %w", err)
				}
				logger.Debug("ascii-math companion read", "path", inputAM, "bytes", len(am))
			}

			gateway := solver.NewGateway(solver.Config{
				Command: cfg.Solver.Command,
				Args:    cfg.Solver.Args,
				Timeout: time.Duration(cfg.Solver.Timeout),
			}, logger)
			extractor := extract.New(gateway, cfg.Solver.Workers, logger)

			diagnostics, failures := extractor.Extract(cmd.Context(), records)

			out, err := os.Create(outputJSON)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			if err := ndjson.WriteDiagnostics(out, diagnostics); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("closing output: %w", err)
			}

			if outputAM != "" {
				if err := os.WriteFile(outputAM, []byte(asciimath.RenderDiagnostics(diagnostics)), 0644); err != nil {
					return fmt.Errorf("writing ascii-math output: %w", err)
				}
			}

			if failuresPath != "" {
				f, err := os.Create(failuresPath)
				if err != nil {
					return fmt.Errorf("creating failures file: %w", err)
				}
				if err := ndjson.WriteFailures(f, failures); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("closing failures file: %w", err)
				}
			}

			if cfg.Archive.Path != "" {
				a, err := archive.Open(cfg.Archive.Path)
				if err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer a.Close()
				runID, err := a.RecordExtraction(cmd.Context(), inputPath, outputJSON, diagnostics, failures)
				if err != nil {
					return fmt.Errorf("archiving run: %w", err)
				}
				logger.Info("run archived", "run_id", runID, "archive", cfg.Archive.Path)
			}

			// Per-record failures are results, not errors: the batch completed.
			return nil
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Input convergence NDJSON file (required)")
	cmd.Flags().StringVar(&inputAM, "input-am", "", "Optional ascii-math companion of the input")
	cmd.Flags().StringVar(&outputJSON, "output-json", "", "Output diagnostics NDJSON file (required)")
	cmd.Flags().StringVar(&outputAM, "output-am", "", "Optional ascii-math rendering of the diagnostics")
	cmd.Flags().StringVar(&failuresPath, "failures", "", "Optional NDJSON file for per-record failures")
	cmd.Flags().StringVar(&solverCmd, "solver-cmd", "", "Solver executable (overrides config)")
	cmd.Flags().StringArrayVar(&solverArgs, "solver-arg", nil, "Solver argument, repeatable (overrides config)")
	cmd.Flags().DurationVar(&timeout, "timeout", solver.DefaultTimeout, "Per-invocation solver timeout")
	cmd.Flags().IntVar(&workers, "workers", extract.DefaultWorkers, "Concurrent solver processes")
	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive database (overrides config)")
	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("output-json")

	return cmd
}
