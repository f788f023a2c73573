package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/machine"
)

// Config holds the settings of the alarm panel daemon and its control client.
type Config struct {
	// LogLevel is the minimum level of emitted log messages.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" (default) or "json".
	LogFormat string `yaml:"log_format,omitempty"`
	// Board selects and configures the pin driver.
	Board Board `yaml:"board"`
	// Inputs lists the sensor inputs.
	Inputs []Input `yaml:"inputs"`
	// ArmInput is the optional key-switch input.
	ArmInput *Input `yaml:"arm_input,omitempty"`
	// IgnoredInputs is the default set of bypassed inputs.
	IgnoredInputs []board.ID `yaml:"ignored_inputs,omitempty"`
	// Outputs assigns output pins to roles.
	Outputs Outputs `yaml:"outputs"`
	// Timing holds poll, debounce and delay durations.
	Timing Timing `yaml:"timing"`
	// Faults controls the hardware fault threshold.
	Faults Faults `yaml:"faults"`
	// Control configures the control socket.
	Control Control `yaml:"control"`
	// StateFile is where the arm intent is persisted.
	StateFile string `yaml:"state_file"`
	// JournalFile is the SQLite event journal.
	JournalFile string `yaml:"journal_file"`
	// Schedule lists automatic arm and disarm times.
	Schedule []ScheduleEntry `yaml:"schedule,omitempty"`
	// Tracing configures OpenTelemetry spans for control commands.
	Tracing Tracing `yaml:"tracing"`
}

// Board selects the pin driver.
type Board struct {
	// Driver is one of "mock", "rpio" or "mcp23017".
	Driver string `yaml:"driver"`
	// RPIO maps logical pins to BCM pins for the rpio driver.
	RPIO RPIO `yaml:"rpio,omitempty"`
	// MCP23017 addresses the expander for the mcp23017 driver.
	MCP23017 MCP23017 `yaml:"mcp23017,omitempty"`
}

// RPIO maps logical pins to BCM pins.
type RPIO struct {
	// Inputs maps logical inputs to BCM pins.
	Inputs map[board.ID]int `yaml:"inputs,omitempty"`
	// Outputs maps logical outputs to BCM pins.
	Outputs map[board.ID]int `yaml:"outputs,omitempty"`
}

// MCP23017 addresses an I2C expander.
type MCP23017 struct {
	// Bus is the I2C bus number.
	Bus uint8 `yaml:"bus"`
	// Device is the address offset (A2..A0).
	Device uint8 `yaml:"device"`
}

// Input describes one input pin.
type Input struct {
	// Pin is the logical input id; 8 is the virtual input.
	Pin board.ID `yaml:"pin"`
	// Name is a free-form label used in logs.
	Name string `yaml:"name,omitempty"`
	// Polarity is "normally_open" (default) or "normally_closed".
	Polarity board.Polarity `yaml:"polarity"`
}

// Outputs assigns output pins to roles; every role is optional.
type Outputs struct {
	// Armed is active whenever the panel is not disarmed.
	Armed *board.ID `yaml:"armed,omitempty"`
	// Active is active while the alarm is triggered.
	Active *board.ID `yaml:"active,omitempty"`
	// Sounder drives the external siren.
	Sounder *board.ID `yaml:"sounder,omitempty"`
	// Strobe drives the strobe light.
	Strobe *board.ID `yaml:"strobe,omitempty"`
	// Buzzer drives the panel buzzer.
	Buzzer *board.ID `yaml:"buzzer,omitempty"`
}

// ByRole returns the configured output pin of every assigned role.
func (o Outputs) ByRole() map[machine.Role]board.ID {
	assigned := make(map[machine.Role]board.ID)

	for role, pin := range map[machine.Role]*board.ID{
		machine.RoleArmed:   o.Armed,
		machine.RoleActive:  o.Active,
		machine.RoleSounder: o.Sounder,
		machine.RoleStrobe:  o.Strobe,
		machine.RoleBuzzer:  o.Buzzer,
	} {
		if pin != nil {
			assigned[role] = *pin
		}
	}

	return assigned
}

// Timing holds the durations of the poll loop and the state machine.
type Timing struct {
	// PollPeriod is the poll loop cadence.
	PollPeriod time.Duration `yaml:"poll_period"`
	// Debounce is the input stabilization interval. Unset selects
	// DefaultDebounce; zero turns debouncing off.
	Debounce *time.Duration `yaml:"debounce,omitempty"`
	// ExitDelay is spent arming; zero arms immediately.
	ExitDelay time.Duration `yaml:"exit_delay"`
	// EntryDelay is spent before triggering; zero triggers immediately.
	EntryDelay time.Duration `yaml:"entry_delay"`
	// AlarmDuration limits the triggered state; zero sounds until disarm.
	AlarmDuration time.Duration `yaml:"alarm_duration"`
	// BeepDuration is the buzzer pulse length during delays.
	BeepDuration time.Duration `yaml:"beep_duration"`
	// SounderTest is how long an output test drives the sounder.
	SounderTest time.Duration `yaml:"sounder_test"`
	// StrobeTest is how long an output test drives the strobe.
	StrobeTest time.Duration `yaml:"strobe_test"`
}

// DebounceInterval returns the configured debounce interval or the default.
func (t Timing) DebounceInterval() time.Duration {
	if t.Debounce == nil {
		return DefaultDebounce
	}

	return *t.Debounce
}

// Faults controls how repeated hardware errors are handled.
type Faults struct {
	// MaxConsecutiveErrors trips the safe state.
	MaxConsecutiveErrors uint32 `yaml:"max_consecutive_errors"`
	// RetryAfter is how long the hardware is left alone before a trial tick.
	RetryAfter time.Duration `yaml:"retry_after"`
}

// Control configures the control socket.
type Control struct {
	// Address is "unix:///path" or "host:port".
	Address string `yaml:"address"`
	// Timeout bounds every control call made by the client.
	Timeout time.Duration `yaml:"timeout"`
}

// ScheduleEntry arms or disarms the panel on a cron schedule.
type ScheduleEntry struct {
	// Cron is a standard five-field cron expression.
	Cron string `yaml:"cron"`
	// Action is "arm" or "disarm".
	Action string `yaml:"action"`
}

// Tracing configures OpenTelemetry.
type Tracing struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled"`
	// Exporter is "stdout" or "noop".
	Exporter string `yaml:"exporter,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for panel settings.
	DefaultConfigFilename = "alarm-panel-settings.yaml"

	// DefaultStateFilename is the default filename for the persisted arm intent.
	DefaultStateFilename = "alarm-panel-state.json"

	// DefaultJournalFilename is the default filename for the event journal.
	DefaultJournalFilename = "alarm-panel-journal.db"

	// DefaultControlAddress is the default control socket.
	DefaultControlAddress = "unix:///tmp/alarm-panel.sock"

	// DefaultTimeout is the default duration for control calls.
	DefaultTimeout = 5 * time.Second

	// DefaultPollPeriod is the default poll loop cadence.
	DefaultPollPeriod = 100 * time.Millisecond

	// DefaultDebounce is the default input stabilization interval.
	DefaultDebounce = 30 * time.Millisecond

	// DefaultBeepDuration is the default buzzer pulse.
	DefaultBeepDuration = 150 * time.Millisecond

	// DefaultSounderTest is the default sounder test length.
	DefaultSounderTest = machine.DefaultSounderTest

	// DefaultStrobeTest is the default strobe test length.
	DefaultStrobeTest = machine.DefaultStrobeTest

	// DefaultMaxConsecutiveErrors is the default hardware fault threshold.
	DefaultMaxConsecutiveErrors = 5

	// DefaultRetryAfter is the default pause before retrying faulted hardware.
	DefaultRetryAfter = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// Schedule actions.
const (
	ActionArm    = "arm"
	ActionDisarm = "disarm"
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// ConfigurationError reports an invalid or conflicting setting.
type ConfigurationError struct {
	// Field is the YAML path of the setting.
	Field string
	// Reason explains what is wrong.
	Reason string
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Field, e.Reason)
}

// newError builds a ConfigurationError with a formatted reason.
func newError(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings. It returns a
// *ConfigurationError or a *board.InvalidPinError.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
			return newError("log_level", "unknown level %q", settings.LogLevel)
		}
	}

	if !logger.ValidFormat(settings.LogFormat) {
		return newError("log_format", "unknown format %q", settings.LogFormat)
	}

	setDefaults(settings)

	validators := []func(*Config) error{
		validateInputs,
		validateOutputs,
		validateBoard,
		validateTiming,
		validateSchedule,
		validateTracing,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			return err
		}
	}

	return nil
}

// setDefaults fills zero values with defaults.
func setDefaults(settings *Config) {
	if settings.Board.Driver == "" {
		settings.Board.Driver = "mock"
	}

	if settings.Timing.PollPeriod <= 0 {
		settings.Timing.PollPeriod = DefaultPollPeriod
	}

	if settings.Timing.Debounce == nil {
		debounce := DefaultDebounce
		settings.Timing.Debounce = &debounce
	}

	if settings.Timing.BeepDuration == 0 {
		settings.Timing.BeepDuration = DefaultBeepDuration
	}

	if settings.Timing.SounderTest <= 0 {
		settings.Timing.SounderTest = DefaultSounderTest
	}

	if settings.Timing.StrobeTest <= 0 {
		settings.Timing.StrobeTest = DefaultStrobeTest
	}

	if settings.Faults.MaxConsecutiveErrors == 0 {
		settings.Faults.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}

	if settings.Faults.RetryAfter <= 0 {
		settings.Faults.RetryAfter = DefaultRetryAfter
	}

	if settings.Control.Address == "" {
		settings.Control.Address = DefaultControlAddress
	}

	// Set default timeout if not specified
	if settings.Control.Timeout <= 0 {
		settings.Control.Timeout = DefaultTimeout
	}

	// Set default state file if not specified
	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.JournalFile == "" {
		settings.JournalFile = DefaultJournalFilename
	}
}

// validateInputs checks sensor inputs, the arm input and ignored inputs.
func validateInputs(settings *Config) error {
	if len(settings.Inputs) == 0 {
		return newError("inputs", "at least one input must be configured")
	}

	seen := make(map[board.ID]bool, len(settings.Inputs))

	for _, in := range settings.Inputs {
		if err := board.ValidateInput(in.Pin); err != nil {
			return err
		}

		if seen[in.Pin] {
			return newError("inputs", "input %s is configured twice", in.Pin)
		}

		seen[in.Pin] = true
	}

	if arm := settings.ArmInput; arm != nil {
		if err := board.ValidateInput(arm.Pin); err != nil {
			return err
		}

		if arm.Pin.IsVirtual() {
			return newError("arm_input", "the virtual input cannot be the arm input")
		}

		if seen[arm.Pin] {
			return newError("arm_input", "input %s is also a sensor input", arm.Pin)
		}
	}

	for _, pin := range settings.IgnoredInputs {
		if !seen[pin] {
			return newError("ignored_inputs", "input %s is not a configured sensor input", pin)
		}
	}

	return nil
}

// validateOutputs checks that every role has a distinct, valid output pin.
func validateOutputs(settings *Config) error {
	owner := make(map[board.ID]machine.Role)

	for _, role := range machine.Roles {
		pin, ok := settings.Outputs.ByRole()[role]
		if !ok {
			continue
		}

		if err := board.ValidateOutput(pin); err != nil {
			return err
		}

		if other, taken := owner[pin]; taken {
			return newError("outputs."+role.String(), "output %s is already assigned to %s", pin, other)
		}

		owner[pin] = role
	}

	return nil
}

// validateBoard checks driver-specific settings.
func validateBoard(settings *Config) error {
	switch settings.Board.Driver {
	case "mock", "mcp23017":
		return nil
	case "rpio":
		return validateRPIO(settings)
	default:
		return newError("board.driver", "unknown driver %q", settings.Board.Driver)
	}
}

// validateRPIO checks that every pin has a BCM mapping and that no BCM pin is
// used twice, in particular as both an input and an output.
func validateRPIO(settings *Config) error {
	mapping := settings.Board.RPIO
	usedBy := make(map[int]string)

	claim := func(field string, pin board.ID, table map[board.ID]int) error {
		bcm, ok := table[pin]
		if !ok {
			return newError(field, "pin %s has no BCM mapping", pin)
		}

		name := fmt.Sprintf("%s %s", field, pin)
		if other, taken := usedBy[bcm]; taken {
			return newError(field, "BCM pin %d used by %s and %s", bcm, other, name)
		}

		usedBy[bcm] = name

		return nil
	}

	inputs := make([]board.ID, 0, len(settings.Inputs)+1)
	for _, in := range settings.Inputs {
		inputs = append(inputs, in.Pin)
	}

	if settings.ArmInput != nil {
		inputs = append(inputs, settings.ArmInput.Pin)
	}

	for _, pin := range inputs {
		if pin.IsVirtual() {
			continue
		}

		if err := claim("board.rpio.inputs", pin, mapping.Inputs); err != nil {
			return err
		}
	}

	outputs := make([]board.ID, 0, len(machine.Roles))
	for _, pin := range settings.Outputs.ByRole() {
		outputs = append(outputs, pin)
	}

	slices.Sort(outputs)

	for _, pin := range outputs {
		if err := claim("board.rpio.outputs", pin, mapping.Outputs); err != nil {
			return err
		}
	}

	return nil
}

// validateTiming rejects negative durations.
func validateTiming(settings *Config) error {
	durations := map[string]time.Duration{
		"timing.debounce":       settings.Timing.DebounceInterval(),
		"timing.exit_delay":     settings.Timing.ExitDelay,
		"timing.entry_delay":    settings.Timing.EntryDelay,
		"timing.alarm_duration": settings.Timing.AlarmDuration,
		"timing.beep_duration":  settings.Timing.BeepDuration,
		"timing.sounder_test":   settings.Timing.SounderTest,
		"timing.strobe_test":    settings.Timing.StrobeTest,
	}

	for field, d := range durations {
		if d < 0 {
			return newError(field, "must not be negative")
		}
	}

	return nil
}

// validateSchedule parses every cron expression and action.
func validateSchedule(settings *Config) error {
	for i, entry := range settings.Schedule {
		field := fmt.Sprintf("schedule[%d]", i)

		action := strings.ToLower(strings.TrimSpace(entry.Action))
		if action != ActionArm && action != ActionDisarm {
			return newError(field, "unknown action %q", entry.Action)
		}

		if _, err := cron.ParseStandard(entry.Cron); err != nil {
			return newError(field, "invalid cron expression %q: %v", entry.Cron, err)
		}
	}

	return nil
}

// validateTracing checks the exporter name.
func validateTracing(settings *Config) error {
	switch settings.Tracing.Exporter {
	case "", "stdout", "noop":
		return nil
	default:
		return newError("tracing.exporter", "unsupported exporter %q", settings.Tracing.Exporter)
	}
}
