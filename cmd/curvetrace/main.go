package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp-metrics/curvetrace/internal/config"
	"github.com/warp-metrics/curvetrace/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	// Cancelling the batch must terminate in-flight solver processes; their
	// records surface as process-error failures rather than vanishing.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "curvetrace",
		Short: "Curvature diagnostics and event timelines for warp-bubble solver runs",
		Long: `curvetrace drives an external time-integration solver over batches of
validated simulation parameter sets, extracts strong-field curvature
diagnostics, and assembles chronologically ordered event timelines for
downstream visualization.

The solver is an opaque child process speaking JSON on stdin/stdout;
curvetrace computes no physics itself.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.curvetrace/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log verbosity: info, debug, or trace")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for machine consumption)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newExtractCmd(),
		newTimelineCmd(),
		newRunsCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "curvetrace version %s\n", version)
			}
		},
	}
}

// setup loads configuration and builds the operational logger shared by all
// pipeline commands. Configuration problems are setup errors: they abort the
// command with a non-zero exit before any record is processed.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	return cfg, logger, nil
}
