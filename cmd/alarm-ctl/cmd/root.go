package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-panel/internal/config"
	"github.com/oshokin/alarm-panel/internal/machine"
	"github.com/oshokin/alarm-panel/internal/service/client"
	"github.com/oshokin/alarm-panel/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// address overrides the control address from the configuration.
	address string
	// ignore lists the inputs to bypass for this arm period.
	ignore []string
	// interval is the polling interval of `watch`.
	interval time.Duration
	// retry keeps retrying arm and disarm while the daemon is unreachable.
	retry bool

	// rootCmd represents the base command for controlling the panel.
	rootCmd = &cobra.Command{
		Use:   "alarm-ctl",
		Short: "Control the alarm panel daemon.",
		Long: `Arms, disarms and triggers the alarm panel and reports its status.

Commands are sent to the daemon over its control socket, taken from the
configuration file unless --address is given. The caller's user and host are
recorded as the actor of every state change.`,
		SilenceUsage: true,
	}

	armCmd = &cobra.Command{
		Use:   "arm",
		Short: "Arm the panel.",
		Long: `Arms the panel. Without --ignore the configured default ignored inputs are bypassed;
--ignore replaces that list for this arm period ("--ignore=" bypasses nothing).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := options(client.ActionArm)

			if cmd.Flags().Changed("ignore") {
				pins, err := client.ParsePins(ignore)
				if err != nil {
					return err
				}

				opts.Ignored = pins
			}

			return run(opts)
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the panel and silence the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(options(client.ActionDisarm))
		},
	}

	panicCmd = &cobra.Command{
		Use:   "panic",
		Short: "Trigger the alarm immediately.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(options(client.ActionPanic))
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Print the panel status.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(options(client.ActionStatus))
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print every status change until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			opts := options(client.ActionWatch)
			opts.WatchInterval = interval

			return run(opts)
		},
	}

	virtualCmd = &cobra.Command{
		Use:       "virtual on|off",
		Short:     "Close (on) or open (off) the virtual input contact.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(_ *cobra.Command, args []string) error {
			opts := options(client.ActionVirtual)
			opts.VirtualClosed = args[0] == "on"

			return run(opts)
		},
	}

	testCmd = &cobra.Command{
		Use:   "test sounder|strobe",
		Short: "Drive the sounder or the strobe for a few seconds.",
		Long: `Drives the sounder or the strobe for its configured test length to confirm the wiring.
The panel refuses the test unless it is DISARMED.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{machine.RoleSounder.String(), machine.RoleStrobe.String()},
		RunE: func(_ *cobra.Command, args []string) error {
			role, _ := machine.ParseRole(args[0])

			opts := options(client.ActionTest)
			opts.TestRole = role

			return run(opts)
		},
	}
)

func options(action client.Action) *client.Options {
	return &client.Options{
		ConfigPath: cfgPath,
		Address:    address,
		Action:     action,
		Retry:      retry,
		Output:     os.Stdout,
	}
}

func run(opts *client.Options) error {
	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	return client.Run(ctx, opts)
}

// Execute runs the alarm-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(armCmd, disarmCmd, panicCmd, statusCmd, watchCmd, virtualCmd, testCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&address, "address", "a", "", "override the control address")

	armCmd.Flags().StringSliceVarP(&ignore, "ignore", "i", nil, "inputs to bypass, e.g. 2,virtual")

	watchCmd.Flags().DurationVarP(&interval, "interval", "n", client.DefaultWatchInterval, "status polling interval")

	for _, c := range []*cobra.Command{armCmd, disarmCmd} {
		c.Flags().BoolVarP(&retry, "retry", "r", false, "retry until the daemon answers")
	}
}
