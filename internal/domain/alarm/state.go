package alarm

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oshokin/alarm-panel/internal/board"
)

// State is the global arm state of the panel.
type State int

const (
	// Disarmed means input violations are ignored.
	Disarmed State = iota
	// Arming is the exit delay after an arm request.
	Arming
	// Armed means any violation starts the entry delay or triggers the alarm.
	Armed
	// EntryDelay is the grace period between a violation and the alarm.
	EntryDelay
	// Triggered means the alarm is sounding.
	Triggered
)

// stateNames holds the canonical names indexed by State.
//
//nolint:gochecknoglobals // Read-only lookup table.
var stateNames = [...]string{
	Disarmed:   "DISARMED",
	Arming:     "ARMING",
	Armed:      "ARMED",
	EntryDelay: "ENTRY_DELAY",
	Triggered:  "TRIGGERED",
}

// String returns the canonical upper-case name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// ParseState converts a canonical name (case-insensitive) back to a State.
func ParseState(name string) (State, bool) {
	for i, n := range stateNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return State(i), true
		}
	}

	return Disarmed, false
}

// IsArmed reports whether the panel is in any state other than Disarmed.
func (s State) IsArmed() bool {
	return s != Disarmed
}

// Actor identifies who performed an action in the system.
type Actor struct {
	// Hostname is the machine name where the action was performed.
	Hostname string
	// Username is the system user who triggered the action.
	Username string
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}

	cloned := *a

	return &cloned
}

// String formats the actor as username@hostname.
func (a *Actor) String() string {
	if a == nil {
		return "<unknown>"
	}

	if a.Hostname == "" {
		return a.Username
	}

	return a.Username + "@" + a.Hostname
}

// Cause records what made the alarm trigger (or start its entry delay).
type Cause struct {
	// Input is the violated input; ignored when Panic is set.
	Input board.ID
	// Panic is set when the alarm was forced from the control interface.
	Panic bool
	// At is when the cause was recorded.
	At time.Time
}

// String returns "panic" or "input <n>".
func (c Cause) String() string {
	if c.Panic {
		return "panic"
	}

	return "input " + c.Input.String()
}

// Transition is one change of State.
type Transition struct {
	// From is the previous state.
	From State
	// To is the new state.
	To State
	// At is when the change happened.
	At time.Time
	// Cause is set when the change was caused by a violation or panic.
	Cause *Cause
	// Actor is set when the change was requested through the control interface.
	Actor *Actor
}

// Status represents the panel at a specific point in time.
type Status struct {
	// State is the current arm state.
	State State
	// Since is when the current state was entered.
	Since time.Time
	// ActiveInputs lists the inputs whose debounced value is active.
	ActiveInputs []board.ID
	// IgnoredInputs lists the inputs that cannot violate in the current arm period.
	IgnoredInputs []board.ID
	// TriggerCauses lists the causes recorded since the current incident began.
	TriggerCauses []Cause
	// LastTriggerCause is the most recent cause ever recorded.
	LastTriggerCause *Cause
	// LastActor is who last changed the state through the control interface.
	LastActor *Actor
	// Fault describes a hardware fault that forced the outputs into the safe state.
	Fault string
}

// Clone returns a copy of the status to avoid leaking internal references.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := &Status{
		State:         s.State,
		Since:         s.Since,
		ActiveInputs:  slices.Clone(s.ActiveInputs),
		IgnoredInputs: slices.Clone(s.IgnoredInputs),
		TriggerCauses: slices.Clone(s.TriggerCauses),
		LastActor:     s.LastActor.Clone(),
		Fault:         s.Fault,
	}

	if s.LastTriggerCause != nil {
		cause := *s.LastTriggerCause
		cloned.LastTriggerCause = &cause
	}

	return cloned
}
