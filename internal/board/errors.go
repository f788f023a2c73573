package board

import "fmt"

// InvalidPinError reports a pin id that is out of range for its direction,
// or the virtual input used where a physical pin is required.
type InvalidPinError struct {
	// Pin is the offending pin id.
	Pin ID
	// Direction is the direction the pin was used with.
	Direction Direction
	// Reason describes what is wrong with the pin.
	Reason string
}

// Error implements error.
func (e *InvalidPinError) Error() string {
	return fmt.Sprintf("invalid %s pin %s: %s", e.Direction, e.Pin, e.Reason)
}

// HardwareError wraps a failure reported by the pin driver.
type HardwareError struct {
	// Pin is the logical pin that was accessed.
	Pin ID
	// Direction is the direction of the failed access.
	Direction Direction
	// Err is the underlying driver error.
	Err error
}

// Error implements error.
func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s pin %s: %v", e.Direction, e.Pin, e.Err)
}

// Unwrap returns the driver error.
func (e *HardwareError) Unwrap() error {
	return e.Err
}
