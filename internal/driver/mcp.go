package driver

import (
	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const (
	// mcpInputOffset is the first pin of port B, where the inputs are wired.
	mcpInputOffset = 8
	// mcpReleased is the level of an inactive open-collector output.
	mcpReleased = mcp23017.PinLevel(true)
)

// MCP drives an MCP23017 expander: logical inputs 0..7 are GPB0..GPB7 and
// logical outputs 0..7 are GPA0..GPA7.
type MCP struct {
	// Bus is the I2C bus number.
	Bus uint8
	// Device is the address offset (A2..A0).
	Device uint8

	// device is the open expander.
	device *mcp23017.Device
	// outputs lists the configured outputs.
	outputs []int
}

// Setup opens the expander and configures pin modes and pull-ups.
func (m *MCP) Setup(inputs []int, outputs []int) error {
	device, err := mcp23017.Open(m.Bus, m.Device)
	if err != nil {
		return errors.Wrapf(err, "failed to open mcp23017 on bus %d device %d", m.Bus, m.Device)
	}

	m.device = device

	for _, pin := range inputs {
		if err := checkMCPPin(pin); err != nil {
			return err
		}

		hw := uint8(pin + mcpInputOffset)

		if err := m.device.PinMode(hw, mcp23017.INPUT); err != nil {
			return errors.Wrapf(err, "set input mode on pin %d", pin)
		}

		if err := m.device.SetPullUp(hw, true); err != nil {
			return errors.Wrapf(err, "enable pull-up on pin %d", pin)
		}
	}

	for _, pin := range outputs {
		if err := checkMCPPin(pin); err != nil {
			return err
		}

		if err := m.device.PinMode(uint8(pin), mcp23017.OUTPUT); err != nil {
			return errors.Wrapf(err, "set output mode on pin %d", pin)
		}

		if err := m.device.DigitalWrite(uint8(pin), mcpReleased); err != nil {
			return errors.Wrapf(err, "release output pin %d", pin)
		}

		m.outputs = append(m.outputs, pin)
	}

	return nil
}

// ReadRaw implements board.Driver.
func (m *MCP) ReadRaw(pin int) (bool, error) {
	if m.device == nil {
		return false, errors.New("mcp23017 is not open")
	}

	level, err := m.device.DigitalRead(uint8(pin + mcpInputOffset))
	if err != nil {
		return false, errors.Wrapf(err, "read input %d", pin)
	}

	return bool(level), nil
}

// WriteRaw implements board.Driver.
func (m *MCP) WriteRaw(pin int, high bool) error {
	if m.device == nil {
		return errors.New("mcp23017 is not open")
	}

	if err := m.device.DigitalWrite(uint8(pin), mcp23017.PinLevel(high)); err != nil {
		return errors.Wrapf(err, "write output %d", pin)
	}

	return nil
}

// Close releases the outputs and closes the I2C device.
func (m *MCP) Close() error {
	if m.device == nil {
		return nil
	}

	for _, pin := range m.outputs {
		_ = m.device.DigitalWrite(uint8(pin), mcpReleased)
	}

	err := m.device.Close()
	m.device = nil

	return err
}

// String implements Driver.
func (m *MCP) String() string {
	return MCPName
}

// checkMCPPin validates a logical pin against one 8-bit port.
func checkMCPPin(pin int) error {
	if pin < 0 || pin >= mcpInputOffset {
		return errors.Errorf("pin %d out of range (mcp23017 port has 8 pins)", pin)
	}

	return nil
}
