package board

import (
	"slices"
	"sync/atomic"
)

// Driver is the raw pin collaborator provided by the hardware layer.
// Levels are electrical: true means high.
type Driver interface {
	// ReadRaw returns the electrical level of a physical input.
	ReadRaw(pin int) (bool, error)
	// WriteRaw drives a physical output; false pulls the line to ground.
	WriteRaw(pin int, high bool) error
}

// Board converts between raw levels and logical states for the configured pins.
// The pin set and polarities are fixed at construction.
type Board struct {
	// driver performs the electrical reads and writes.
	driver Driver
	// polarity maps every configured input to its wiring.
	polarity map[ID]Polarity
	// inputs lists configured inputs in ascending order.
	inputs []ID
	// outputs lists configured outputs in ascending order.
	outputs []ID
	// virtualClosed holds the contact state of VirtualInput.
	virtualClosed atomic.Bool
}

// New validates the pin assignment and returns a Board.
// It fails with *InvalidPinError for out-of-range ids or a virtual output.
func New(driver Driver, inputs map[ID]Polarity, outputs []ID) (*Board, error) {
	b := &Board{
		driver:   driver,
		polarity: make(map[ID]Polarity, len(inputs)),
	}

	for id, polarity := range inputs {
		if err := ValidateInput(id); err != nil {
			return nil, err
		}

		b.polarity[id] = polarity
		b.inputs = append(b.inputs, id)
	}

	for _, id := range outputs {
		if err := ValidateOutput(id); err != nil {
			return nil, err
		}

		if !slices.Contains(b.outputs, id) {
			b.outputs = append(b.outputs, id)
		}
	}

	slices.Sort(b.inputs)
	slices.Sort(b.outputs)

	// The virtual contact starts at rest, so the input starts idle.
	b.virtualClosed.Store(b.polarity[VirtualInput] == NormallyClosed)

	return b, nil
}

// ValidateInput checks that id may be used as an input.
func ValidateInput(id ID) error {
	if id.IsVirtual() {
		return nil
	}

	if id < 0 || id >= NumHardwarePins {
		return &InvalidPinError{Pin: id, Direction: Input, Reason: "out of range"}
	}

	return nil
}

// ValidateOutput checks that id may be used as an output.
func ValidateOutput(id ID) error {
	if id.IsVirtual() {
		return &InvalidPinError{Pin: id, Direction: Output, Reason: "virtual input cannot be driven"}
	}

	if id < 0 || id >= NumHardwarePins {
		return &InvalidPinError{Pin: id, Direction: Output, Reason: "out of range"}
	}

	return nil
}

// Inputs returns the configured inputs in ascending order.
func (b *Board) Inputs() []ID {
	return slices.Clone(b.inputs)
}

// Outputs returns the configured outputs in ascending order.
func (b *Board) Outputs() []ID {
	return slices.Clone(b.outputs)
}

// Polarity returns the wiring of a configured input.
func (b *Board) Polarity(id ID) (Polarity, bool) {
	p, ok := b.polarity[id]

	return p, ok
}

// ReadLogical returns whether the input is active.
func (b *Board) ReadLogical(id ID) (bool, error) {
	polarity, ok := b.polarity[id]
	if !ok {
		return false, &InvalidPinError{Pin: id, Direction: Input, Reason: "not configured"}
	}

	if id.IsVirtual() {
		return polarity.Active(!b.virtualClosed.Load()), nil
	}

	raw, err := b.driver.ReadRaw(int(id))
	if err != nil {
		return false, &HardwareError{Pin: id, Direction: Input, Err: err}
	}

	return polarity.Active(raw), nil
}

// WriteLogical activates (pulls low) or releases (leaves floating) an output.
func (b *Board) WriteLogical(id ID, active bool) error {
	if !slices.Contains(b.outputs, id) {
		if err := ValidateOutput(id); err != nil {
			return err
		}

		return &InvalidPinError{Pin: id, Direction: Output, Reason: "not configured"}
	}

	if err := b.driver.WriteRaw(int(id), !active); err != nil {
		return &HardwareError{Pin: id, Direction: Output, Err: err}
	}

	return nil
}

// SetVirtualInput closes or opens the contact of the software-only input.
// Its polarity applies as for a hardware input: a closed normally open
// contact is active, a closed normally closed one is idle.
func (b *Board) SetVirtualInput(closed bool) error {
	if _, ok := b.polarity[VirtualInput]; !ok {
		return &InvalidPinError{Pin: VirtualInput, Direction: Input, Reason: "not configured"}
	}

	b.virtualClosed.Store(closed)

	return nil
}
