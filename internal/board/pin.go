package board

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a logical pin. Inputs and outputs are numbered independently.
type ID int

const (
	// NumHardwarePins is the number of physical inputs (and outputs) of the board.
	NumHardwarePins = 8

	// VirtualInput is the reserved input id used for software-triggered events.
	VirtualInput ID = NumHardwarePins
)

// IsVirtual reports whether the id is the software-only input.
func (id ID) IsVirtual() bool {
	return id == VirtualInput
}

// String returns the pin number, or "virtual" for the software input.
func (id ID) String() string {
	if id.IsVirtual() {
		return "virtual"
	}

	return strconv.Itoa(int(id))
}

// ParseID parses an input id written as a number or "virtual".
func ParseID(text string) (ID, error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, VirtualInput.String()) {
		return VirtualInput, nil
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("invalid pin %q", text)
	}

	id := ID(n)
	if err = ValidateInput(id); err != nil {
		return 0, err
	}

	return id, nil
}

// Direction tells whether a pin is read or written.
type Direction int

const (
	// Input pins are sampled by the poll loop.
	Input Direction = iota
	// Output pins are driven by the poll loop.
	Output
)

// String returns a human-readable direction.
func (d Direction) String() string {
	if d == Output {
		return "output"
	}

	return "input"
}

// Polarity describes how a raw input level maps to the "active" (violated) state.
type Polarity int

const (
	// NormallyOpen inputs are active when connected to ground (raw low).
	NormallyOpen Polarity = iota
	// NormallyClosed inputs are active when the loop to ground is broken (raw high).
	NormallyClosed
)

// Active converts a raw level into the logical active state.
func (p Polarity) Active(rawHigh bool) bool {
	if p == NormallyClosed {
		return rawHigh
	}

	return !rawHigh
}

// String returns the configuration name of the polarity.
func (p Polarity) String() string {
	if p == NormallyClosed {
		return "normally_closed"
	}

	return "normally_open"
}

// MarshalText implements encoding.TextMarshaler.
func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// An empty value selects NormallyOpen.
func (p *Polarity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "no", "normally_open", "normally-open":
		*p = NormallyOpen
	case "nc", "normally_closed", "normally-closed":
		*p = NormallyClosed
	default:
		return fmt.Errorf("unknown polarity %q", string(text))
	}

	return nil
}
