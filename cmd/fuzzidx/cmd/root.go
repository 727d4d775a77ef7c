// Package cmd provides the CLI commands for fuzzidx.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	fzerrors "github.com/Aman-CERP/fuzzidx/internal/errors"
	"github.com/Aman-CERP/fuzzidx/internal/logging"
	"github.com/Aman-CERP/fuzzidx/internal/profiling"
	"github.com/Aman-CERP/fuzzidx/pkg/version"
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Session
)

// Logging and project flags
var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the fuzzidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuzzidx",
		Short: "Trigram fuzzy matching for owner fields",
		Long: `fuzzidx indexes text fields of your records as trigrams and ranks
records by how many trigrams they share with a query, so typos, accents
and word order differences still find the right record.

Declare searchable fields and their JSON Lines sources in .fuzzidx.yaml,
run 'fuzzidx index', then query with 'fuzzidx search' or serve the index
to AI assistants with 'fuzzidx serve'.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.SetVersionTemplate("fuzzidx version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "Project root holding .fuzzidx.yaml")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.fuzzidx/logs/")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newForgetCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newLogsCmd())

	return cmd
}

func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	cleanup, err := logging.SetupCLI(debugMode)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		profiler, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints a failure in CLI form.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), fzerrors.FormatForCLI(err))
	}
	return err
}
