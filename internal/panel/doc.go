// Package panel runs the alarm panel: a poll loop that samples inputs, feeds
// the debouncer and the state machine and drives the outputs, plus the
// control entry points (arm, disarm, panic, virtual input, status).
//
// One mutex guards the machine, the debouncer and the fault state. Control
// calls take the same mutex, apply the change and return; the next tick drives
// the outputs from the updated state. Repeated hardware errors trip a circuit
// breaker that forces every output inactive until a trial tick succeeds.
package panel
