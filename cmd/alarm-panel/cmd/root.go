package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc/grpclog"

	"github.com/oshokin/alarm-panel/internal/config"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/repository/journal"
	"github.com/oshokin/alarm-panel/internal/service/panel"
	"github.com/oshokin/alarm-panel/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile overrides the path where the arm intent is persisted.
	stateFile string
	// journalFile overrides the path of the event journal.
	journalFile string
	// monitor prints mock output changes to stderr.
	monitor bool
	// limit is the number of journal entries printed by `events`.
	limit int

	// rootCmd represents the base command for running the panel daemon.
	rootCmd = &cobra.Command{
		Use:   "alarm-panel [control-address]",
		Short: "Run the alarm panel daemon.",
		Long: `Polls the configured inputs, runs the alarm state machine and drives the outputs.

The daemon serves the control API on a unix socket (or host:port) taken from the
configuration file; the address can be provided as argument to override it.
The arm intent is persisted so an armed panel re-arms after a restart, and every
state change is recorded in the event journal.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			opts := options(args)
			if monitor {
				opts.Monitor = os.Stderr
			}

			return panel.Run(ctx, opts)
		},
	}

	// eventsCmd prints the event journal.
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "Print the latest state changes from the event journal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return panel.Events(cmd.Context(), options(nil), limit, cmd.OutOrStdout())
		},
	}
)

func options(args []string) *panel.Options {
	opts := &panel.Options{
		ConfigPath:  configPath,
		StateFile:   stateFile,
		JournalFile: journalFile,
	}

	if len(args) > 0 {
		opts.ControlAddress = args[0]
	}

	return opts
}

// Execute runs the alarm-panel CLI and exits with non-zero status on error.
func Execute() {
	grpclog.SetLoggerV2(logger.GRPC(zapcore.WarnLevel))

	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(eventsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&stateFile, "state-file", "s", "", "override the arm intent file")
	rootCmd.PersistentFlags().StringVarP(&journalFile, "journal-file", "j", "", "override the event journal database")
	rootCmd.Flags().BoolVarP(&monitor, "monitor", "m", false, "print mock driver output changes to stderr")

	eventsCmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultLimit, "number of events to print")
}
