package panel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-panel/internal/api/grpc/panel"
	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	"github.com/oshokin/alarm-panel/internal/logger"
	core "github.com/oshokin/alarm-panel/internal/panel"
	"github.com/oshokin/alarm-panel/internal/repository/journal"
	"github.com/oshokin/alarm-panel/internal/repository/state"
	"github.com/oshokin/alarm-panel/internal/schedule"
	"github.com/oshokin/alarm-panel/internal/tracer"
)

// Options controls the alarm-panel process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ControlAddress overrides the control server address from the settings.
	ControlAddress string
	// StateFile overrides the arm intent file from the settings.
	StateFile string
	// JournalFile overrides the event journal database from the settings.
	JournalFile string
	// Monitor receives mock driver output changes; nil disables the monitor.
	Monitor io.Writer
	// Ready is called with the panel once the control server is listening.
	Ready func(p *core.Panel)
}

// Run starts the poll loop, the schedule and the control server and blocks
// until ctx is canceled or one of them fails. Every output is released on exit.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-panel")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(settings.LogLevel, settings.LogFormat); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	override(settings, opts)

	shutdownTracer, err := tracer.Setup(ctx, settings.Tracing, nil)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}

	defer func() {
		if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
			logger.WarnKV(ctx, "Failed to shut down tracing", "error", err)
		}
	}()

	drv, err := openDriver(ctx, settings, opts.Monitor)
	if err != nil {
		return err
	}

	defer func() {
		if err := drv.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close pin driver", "driver", drv.String(), "error", err)
		}
	}()

	outputs := make([]board.ID, 0, len(settings.Outputs.ByRole()))
	for _, pin := range settings.Outputs.ByRole() {
		outputs = append(outputs, pin)
	}

	b, err := board.New(drv, inputPolarities(settings), outputs)
	if err != nil {
		return fmt.Errorf("create board: %w", err)
	}

	events, err := journal.Open(ctx, settings.JournalFile)
	if err != nil {
		return err
	}

	defer func() {
		if err := events.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close journal", "error", err)
		}
	}()

	repo := state.NewFileRepository(settings.StateFile)

	p, err := core.New(panelOptions(settings, b, events, &intentRecorder{repo: repo}))
	if err != nil {
		return fmt.Errorf("create panel: %w", err)
	}

	if err = restore(ctx, p, repo); err != nil {
		return err
	}

	scheduler, err := schedule.New(p, settings.Schedule)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}

	lis, err := api.Listen(ctx, settings.Control.Address)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(api.UnaryInterceptor(ctx)))
	api.RegisterPanelServer(grpcServer, api.NewServer(p))

	logger.InfoKV(ctx, "Alarm panel started",
		"driver", drv.String(),
		"control_address", settings.Control.Address,
		"state_file", settings.StateFile,
		"journal_file", settings.JournalFile,
		"scheduled_entries", scheduler.Len(),
	)

	if opts.Ready != nil {
		opts.Ready(p)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down control server")
		grpcServer.GracefulStop()

		return nil
	})

	g.Go(func() error {
		return p.Run(gctx)
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	err = g.Wait()

	logger.Info(ctx, "Alarm panel stopped")

	return err
}

// Events prints the latest journal entries, oldest first.
func Events(ctx context.Context, opts *Options, limit int, w io.Writer) error {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	override(settings, opts)

	if _, err = os.Stat(settings.JournalFile); err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	events, err := journal.Open(ctx, settings.JournalFile)
	if err != nil {
		return err
	}

	defer func() { _ = events.Close() }()

	recent, err := events.Recent(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tFROM\tTO\tCAUSE\tACTOR")

	for _, e := range recent {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.At.Local().Format(time.DateTime), e.From, e.To, e.Cause, e.Actor)
	}

	return tw.Flush()
}

// override applies the command line overrides to the settings.
func override(settings *config.Config, opts *Options) {
	if opts.ControlAddress != "" {
		settings.Control.Address = opts.ControlAddress
	}

	if opts.StateFile != "" {
		settings.StateFile = opts.StateFile
	}

	if opts.JournalFile != "" {
		settings.JournalFile = opts.JournalFile
	}
}
