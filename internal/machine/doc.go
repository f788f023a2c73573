// Package machine implements the alarm state machine.
//
// A Machine holds the arm state (DISARMED, ARMING, ARMED, ENTRY_DELAY,
// TRIGGERED), consumes debounced input changes and control commands, advances
// timers on Tick and derives every output role from the current state alone.
// It is driven with explicit timestamps and is not safe for concurrent use;
// the panel serializes all access behind one lock.
package machine
