package driver

import (
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// maxBCMPin is the highest BCM pin number of the Raspberry Pi header.
const maxBCMPin = 27

// GPIO drives inputs and outputs wired directly to the Raspberry Pi header.
// Logical pins are mapped to BCM pins by configuration.
type GPIO struct {
	// inputMap maps logical inputs to BCM pins.
	inputMap map[int]int
	// outputMap maps logical outputs to BCM pins.
	outputMap map[int]int
	// inputs holds the configured input pins by logical id.
	inputs map[int]rpio.Pin
	// outputs holds the configured output pins by logical id.
	outputs map[int]rpio.Pin
	// isOpen is set between Setup and Close.
	isOpen bool
}

// Setup opens /dev/gpiomem and configures the requested pins.
func (g *GPIO) Setup(inputs []int, outputs []int) error {
	if err := rpio.Open(); err != nil {
		return errors.Wrapf(err, "failed to setup gpio driver for pins: %v, %v", inputs, outputs)
	}

	g.isOpen = true
	g.inputs = make(map[int]rpio.Pin, len(inputs))
	g.outputs = make(map[int]rpio.Pin, len(outputs))

	for _, logical := range inputs {
		bcm, err := g.resolve(g.inputMap, logical)
		if err != nil {
			return errors.Wrap(err, "input")
		}

		pin := rpio.Pin(bcm)
		pin.Input()
		pin.PullUp()
		g.inputs[logical] = pin
	}

	for _, logical := range outputs {
		bcm, err := g.resolve(g.outputMap, logical)
		if err != nil {
			return errors.Wrap(err, "output")
		}

		pin := rpio.Pin(bcm)
		pin.Output()
		pin.High()
		g.outputs[logical] = pin
	}

	return nil
}

// ReadRaw implements board.Driver.
func (g *GPIO) ReadRaw(pin int) (bool, error) {
	p, ok := g.inputs[pin]
	if !ok {
		return false, errors.Errorf("gpio input %d not configured", pin)
	}

	return p.Read() == rpio.High, nil
}

// WriteRaw implements board.Driver.
func (g *GPIO) WriteRaw(pin int, high bool) error {
	p, ok := g.outputs[pin]
	if !ok {
		return errors.Errorf("gpio output %d not configured", pin)
	}

	if high {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

// Close releases the outputs and unmaps the GPIO memory.
func (g *GPIO) Close() error {
	if !g.isOpen {
		return nil
	}

	for _, p := range g.outputs {
		p.High()
	}

	g.isOpen = false

	return rpio.Close()
}

// String implements Driver.
func (g *GPIO) String() string {
	return GPIOName
}

// resolve maps a logical pin to its BCM number.
func (g *GPIO) resolve(mapping map[int]int, logical int) (int, error) {
	bcm, ok := mapping[logical]
	if !ok {
		return 0, errors.Errorf("logical pin %d has no BCM mapping", logical)
	}

	if bcm < 0 || bcm > maxBCMPin {
		return 0, errors.Errorf("BCM pin %d out of range", bcm)
	}

	return bcm, nil
}
