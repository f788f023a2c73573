package driver

import (
	"github.com/pkg/errors"

	"github.com/oshokin/alarm-panel/internal/board"
)

// Driver is a raw pin driver with a setup and teardown lifecycle.
type Driver interface {
	board.Driver

	// Setup configures the given physical inputs (with pull-ups) and outputs (released).
	Setup(inputs []int, outputs []int) error
	// Close releases every output and the underlying device.
	Close() error
	// String returns the driver name used in configuration.
	String() string
}

// Driver names accepted by New.
const (
	MockName = "mock"
	GPIOName = "rpio"
	MCPName  = "mcp23017"
)

// Options carries driver-specific settings.
type Options struct {
	// GPIOInputs maps logical input pins to BCM pins for the rpio driver.
	GPIOInputs map[int]int
	// GPIOOutputs maps logical output pins to BCM pins for the rpio driver.
	GPIOOutputs map[int]int
	// Bus is the I2C bus number of the MCP23017.
	Bus uint8
	// Device is the address offset (A2..A0) of the MCP23017.
	Device uint8
}

// New returns an unconfigured driver by name.
//
//nolint:ireturn // Callers select the implementation at runtime.
func New(name string, opts Options) (Driver, error) {
	switch name {
	case MockName, "":
		return NewMock(), nil
	case GPIOName:
		return &GPIO{inputMap: opts.GPIOInputs, outputMap: opts.GPIOOutputs}, nil
	case MCPName:
		return &MCP{Bus: opts.Bus, Device: opts.Device}, nil
	default:
		return nil, errors.Errorf("unknown pin driver %q", name)
	}
}
