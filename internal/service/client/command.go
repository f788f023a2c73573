package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/machine"
	"github.com/oshokin/alarm-panel/internal/service/common"
)

// Action is a control command.
type Action string

// Supported actions.
const (
	ActionArm     Action = "arm"
	ActionDisarm  Action = "disarm"
	ActionPanic   Action = "panic"
	ActionStatus  Action = "status"
	ActionVirtual Action = "virtual"
	ActionWatch   Action = "watch"
	ActionTest    Action = "test"
)

// Options configures one alarm-ctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// Address overrides the control address from config when specified.
	Address string
	// Action is the command to run.
	Action Action
	// Ignored overrides the default ignored inputs of an arm command when not nil.
	Ignored []board.ID
	// VirtualClosed closes the virtual contact; false opens it.
	VirtualClosed bool
	// TestRole is the output driven by the test action.
	TestRole machine.Role
	// WatchInterval is the polling interval of the watch action.
	WatchInterval time.Duration
	// Retry keeps retrying arm and disarm until the daemon answers or ctx is done.
	Retry bool
	// Output receives the printed status.
	Output io.Writer
}

// defaultRetryInterval is the delay between attempts of a retried command.
const defaultRetryInterval = 1 * time.Second

var errUnknownAction = errors.New("unknown action")

// Run executes the requested action against the panel daemon.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-ctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	address := cfg.Control.Address
	if opts.Address != "" {
		address = opts.Address
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(cfg.Control.Timeout))
	if err != nil {
		return err
	}

	defer func() {
		_ = client.Close()
	}()

	return execute(ctx, client, opts)
}

// execute runs the action on an open client.
func execute(ctx context.Context, client *common.Client, opts *Options) error {
	switch opts.Action {
	case ActionStatus:
		current, err := client.Status(ctx)
		if err != nil {
			return err
		}

		printStatus(opts.Output, current)

		return nil
	case ActionVirtual:
		if err := client.SetVirtualInput(ctx, opts.VirtualClosed); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Virtual input updated", "closed", opts.VirtualClosed)

		return nil
	case ActionWatch:
		return watch(ctx, client, opts)
	case ActionTest:
		return testOutput(ctx, client, opts)
	case ActionArm, ActionDisarm, ActionPanic:
		return command(ctx, client, opts)
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// testOutput starts a sounder or strobe test.
func testOutput(ctx context.Context, client *common.Client, opts *Options) error {
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	length, err := client.TestOutput(ctx, actor, opts.TestRole)
	if err != nil {
		if status.Code(err) == codes.FailedPrecondition {
			return fmt.Errorf("%s test refused: %s", opts.TestRole, status.Convert(err).Message())
		}

		return err
	}

	logger.InfoKV(ctx, "Output test started", "output", opts.TestRole.String(), "length", length)

	if opts.Output != nil {
		_, _ = fmt.Fprintf(opts.Output, "Testing %s for %s\n", opts.TestRole, length)
	}

	return nil
}

// command issues arm, disarm or panic, retrying while the daemon is unavailable.
func command(ctx context.Context, client *common.Client, opts *Options) error {
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	attempt := func() (*domain.Status, bool, error) {
		switch opts.Action {
		case ActionArm:
			return client.Arm(ctx, actor, opts.Ignored)
		case ActionDisarm:
			return client.Disarm(ctx, actor)
		default:
			return client.Panic(ctx, actor)
		}
	}

	// Panic is never retried: a delayed alarm is worse than a failed one.
	retry := opts.Retry && opts.Action != ActionPanic

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		current, changed, err := attempt()

		switch {
		case err == nil:
			if !changed {
				logger.InfoKV(ctx, "Panel state unchanged", "action", opts.Action, "state", current.State.String())
			}

			printStatus(opts.Output, current)

			return nil
		case !retry || status.Code(err) != codes.Unavailable:
			return err
		}

		logger.WarnKV(ctx, "Panel daemon unavailable, retrying", "action", opts.Action, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// printStatus writes a readable status report.
func printStatus(w io.Writer, current *domain.Status) {
	if w == nil || current == nil {
		return
	}

	_, _ = fmt.Fprintf(w, "State:     %s (since %s)\n", current.State, current.Since.Local().Format(time.DateTime))
	_, _ = fmt.Fprintf(w, "Active:    %s\n", formatPins(current.ActiveInputs))
	_, _ = fmt.Fprintf(w, "Ignored:   %s\n", formatPins(current.IgnoredInputs))

	if len(current.TriggerCauses) > 0 {
		causes := make([]string, 0, len(current.TriggerCauses))
		for _, cause := range current.TriggerCauses {
			causes = append(causes, cause.String())
		}

		_, _ = fmt.Fprintf(w, "Causes:    %s\n", strings.Join(causes, ", "))
	}

	if current.LastTriggerCause != nil {
		_, _ = fmt.Fprintf(w, "Last:      %s at %s\n",
			current.LastTriggerCause, current.LastTriggerCause.At.Local().Format(time.DateTime))
	}

	if current.LastActor != nil {
		_, _ = fmt.Fprintf(w, "Actor:     %s\n", current.LastActor)
	}

	if current.Fault != "" {
		_, _ = fmt.Fprintf(w, "Fault:     %s\n", current.Fault)
	}
}

// formatPins renders a pin list, or "none".
func formatPins(pins []board.ID) string {
	if len(pins) == 0 {
		return "none"
	}

	names := make([]string, 0, len(pins))
	for _, pin := range pins {
		names = append(names, pin.String())
	}

	return strings.Join(names, ", ")
}

// ParsePins converts command line pin names ("3", "virtual") into ids.
func ParsePins(values []string) ([]board.ID, error) {
	pins := make([]board.ID, 0, len(values))

	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			id, err := board.ParseID(part)
			if err != nil {
				return nil, err
			}

			pins = append(pins, id)
		}
	}

	return pins, nil
}
