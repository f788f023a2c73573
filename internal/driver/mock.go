package driver

import (
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// Mock keeps pin levels in memory. Inputs idle high (pulled up) and outputs
// idle high (released). It is safe for concurrent use and can inject faults.
type Mock struct {
	mu sync.Mutex

	// inputs holds the level of every configured input.
	inputs map[int]bool
	// outputs holds the last level written to every configured output.
	outputs map[int]bool
	// fault is returned by every access while set.
	fault error
	// failures counts the remaining accesses that fail with fault.
	failures int
	// writeTo receives a line for every output level change when set.
	writeTo io.Writer
}

// NewMock returns an empty mock driver.
func NewMock() *Mock {
	return &Mock{
		inputs:  make(map[int]bool),
		outputs: make(map[int]bool),
	}
}

// Setup registers pins with their idle levels.
func (m *Mock) Setup(inputs []int, outputs []int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pin := range inputs {
		m.inputs[pin] = true
	}

	for _, pin := range outputs {
		m.outputs[pin] = true
	}

	return nil
}

// ReadRaw implements board.Driver.
func (m *Mock) ReadRaw(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failLocked(); err != nil {
		return false, err
	}

	level, ok := m.inputs[pin]
	if !ok {
		return false, errors.Errorf("mock input %d not found", pin)
	}

	return level, nil
}

// WriteRaw implements board.Driver.
func (m *Mock) WriteRaw(pin int, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failLocked(); err != nil {
		return err
	}

	previous, ok := m.outputs[pin]
	if !ok {
		return errors.Errorf("mock output %d not found", pin)
	}

	if m.writeTo != nil && previous != high {
		_, _ = fmt.Fprintf(m.writeTo, "[pin %d] level changed to %s\n", pin, levelName(high))
	}

	m.outputs[pin] = high

	return nil
}

// Close releases every output.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pin := range m.outputs {
		m.outputs[pin] = true
	}

	return nil
}

// String implements Driver.
func (m *Mock) String() string {
	return MockName
}

// SetInput sets the level seen on an input.
func (m *Mock) SetInput(pin int, high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs[pin] = high
}

// Output returns the last level written to an output.
func (m *Mock) Output(pin int) (high, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	high, ok = m.outputs[pin]

	return high, ok
}

// Fail makes the next n accesses return err. A negative n fails until Recover.
func (m *Mock) Fail(err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fault = err
	m.failures = n
}

// Recover stops injecting faults.
func (m *Mock) Recover() {
	m.Fail(nil, 0)
}

// MonitorStateChanges writes a line to w on every output level change.
func (m *Mock) MonitorStateChanges(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeTo = w
}

// failLocked returns the injected fault, consuming one failure.
func (m *Mock) failLocked() error {
	if m.fault == nil || m.failures == 0 {
		return nil
	}

	if m.failures > 0 {
		m.failures--
	}

	return errors.Wrap(m.fault, "mock bus")
}

// levelName names an electrical level.
func levelName(high bool) string {
	if high {
		return "high"
	}

	return "low"
}
