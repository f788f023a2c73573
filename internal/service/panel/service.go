package panel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/driver"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/machine"
	core "github.com/oshokin/alarm-panel/internal/panel"
	"github.com/oshokin/alarm-panel/internal/repository/state"
)

// intentRecorder persists the arm intent on every arm or disarm decision.
type intentRecorder struct {
	// repo stores the intent.
	repo state.Repository
}

// OnTransition implements core.Listener.
func (r *intentRecorder) OnTransition(ctx context.Context, tr domain.Transition, status *domain.Status) error {
	intent, ok := domain.IntentOf(tr, status)
	if !ok {
		return nil
	}

	if err := r.repo.Save(ctx, intent); err != nil {
		return fmt.Errorf("persist arm intent: %w", err)
	}

	return nil
}

// openDriver creates and sets up the pin driver for the configured pins.
// A mock driver reports output changes to monitor when it is set.
func openDriver(ctx context.Context, settings *config.Config, monitor io.Writer) (driver.Driver, error) {
	opts := driver.Options{
		GPIOInputs:  make(map[int]int, len(settings.Board.RPIO.Inputs)),
		GPIOOutputs: make(map[int]int, len(settings.Board.RPIO.Outputs)),
		Bus:         settings.Board.MCP23017.Bus,
		Device:      settings.Board.MCP23017.Device,
	}

	for pin, bcm := range settings.Board.RPIO.Inputs {
		opts.GPIOInputs[int(pin)] = bcm
	}

	for pin, bcm := range settings.Board.RPIO.Outputs {
		opts.GPIOOutputs[int(pin)] = bcm
	}

	drv, err := driver.New(settings.Board.Driver, opts)
	if err != nil {
		return nil, err
	}

	if err = setupDriver(ctx, drv, settings, monitor); err != nil {
		return nil, err
	}

	return drv, nil
}

// setupDriver configures the pins of drv. A driver that fails to set up is
// closed, since Setup may have opened the device before failing.
func setupDriver(ctx context.Context, drv driver.Driver, settings *config.Config, monitor io.Writer) error {
	var inputs, outputs []int

	for pin := range inputPolarities(settings) {
		if !pin.IsVirtual() {
			inputs = append(inputs, int(pin))
		}
	}

	for _, pin := range settings.Outputs.ByRole() {
		outputs = append(outputs, int(pin))
	}

	if err := drv.Setup(inputs, outputs); err != nil {
		if closeErr := drv.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close pin driver", "driver", drv.String(), "error", closeErr)
		}

		return fmt.Errorf("set up %s driver: %w", drv, err)
	}

	if mock, ok := drv.(*driver.Mock); ok {
		logger.Warn(ctx, "Using the mock driver, no hardware is accessed")

		if monitor != nil {
			mock.MonitorStateChanges(monitor)
		}
	}

	return nil
}

// inputPolarities returns every configured input, the arm input included.
func inputPolarities(settings *config.Config) map[board.ID]board.Polarity {
	inputs := make(map[board.ID]board.Polarity, len(settings.Inputs)+1)

	for _, in := range settings.Inputs {
		inputs[in.Pin] = in.Polarity
	}

	if settings.ArmInput != nil {
		inputs[settings.ArmInput.Pin] = settings.ArmInput.Polarity
	}

	return inputs
}

// panelOptions translates the settings into panel options.
func panelOptions(settings *config.Config, b *board.Board, listeners ...core.Listener) core.Options {
	names := make(map[board.ID]string, len(settings.Inputs)+1)
	for _, in := range settings.Inputs {
		names[in.Pin] = in.Name
	}

	machineConfig := machine.Config{
		ExitDelay:     settings.Timing.ExitDelay,
		EntryDelay:    settings.Timing.EntryDelay,
		AlarmDuration: settings.Timing.AlarmDuration,
		BeepDuration:  settings.Timing.BeepDuration,
		SounderTest:   settings.Timing.SounderTest,
		StrobeTest:    settings.Timing.StrobeTest,
		Ignored:       settings.IgnoredInputs,
	}

	if settings.ArmInput != nil {
		pin := settings.ArmInput.Pin
		machineConfig.ArmInput = &pin
		names[pin] = settings.ArmInput.Name
	}

	return core.Options{
		Board:                b,
		Machine:              machineConfig,
		Outputs:              settings.Outputs.ByRole(),
		Names:                names,
		PollPeriod:           settings.Timing.PollPeriod,
		Debounce:             settings.Timing.DebounceInterval(),
		MaxConsecutiveErrors: settings.Faults.MaxConsecutiveErrors,
		RetryAfter:           settings.Faults.RetryAfter,
		Listeners:            listeners,
	}
}

// restore re-arms the panel when the persisted intent says it was armed.
// Persisted ignored inputs that are no longer configured fall back to the default.
func restore(ctx context.Context, p *core.Panel, repo state.Repository) error {
	intent, err := repo.Load(ctx)

	switch {
	case errors.Is(err, state.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("load state: %w", err)
	case !intent.Armed:
		return nil
	}

	logger.InfoKV(ctx, "Restoring armed state", "actor", intent.LastActor.String(), "since", intent.Timestamp)

	_, err = p.Arm(ctx, intent.LastActor, intent.IgnoredInputs)

	var pinErr *board.InvalidPinError
	if errors.As(err, &pinErr) {
		logger.WarnKV(ctx, "Persisted ignored inputs are not configured, using the default", "error", err)

		_, err = p.Arm(ctx, intent.LastActor, nil)
	}

	if err != nil {
		return fmt.Errorf("restore armed state: %w", err)
	}

	return nil
}
