package machine

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/domain/alarm"
)

const (
	// beepPeriod is the cadence of buzzer beeps during ARMING and ENTRY_DELAY.
	beepPeriod = time.Second

	// DefaultSounderTest is used when Config.SounderTest is not set.
	DefaultSounderTest = 2 * time.Second

	// DefaultStrobeTest is used when Config.StrobeTest is not set.
	DefaultStrobeTest = 3 * time.Second
)

var (
	// ErrNotDisarmed rejects an output test while the panel is armed or sounding.
	ErrNotDisarmed = errors.New("output tests require the panel to be disarmed")
	// ErrNotTestable rejects an output test of a role other than sounder or strobe.
	ErrNotTestable = errors.New("only the sounder and the strobe can be tested")
)

// armInputActor is recorded as the actor of changes made with the arm input.
//
//nolint:gochecknoglobals // Immutable sentinel actor.
var armInputActor = alarm.Actor{Username: "arm-input"}

// Config holds the timing and input policy of the state machine.
type Config struct {
	// ExitDelay is spent in ARMING; zero arms immediately.
	ExitDelay time.Duration
	// EntryDelay is spent in ENTRY_DELAY before triggering; zero triggers immediately.
	EntryDelay time.Duration
	// AlarmDuration limits TRIGGERED; zero keeps it until disarm.
	AlarmDuration time.Duration
	// BeepDuration is how long the buzzer is active in each beep period.
	BeepDuration time.Duration
	// SounderTest is how long an output test drives the sounder.
	SounderTest time.Duration
	// StrobeTest is how long an output test drives the strobe.
	StrobeTest time.Duration
	// ArmInput is the optional key-switch input that arms and disarms.
	ArmInput *board.ID
	// Ignored is the default set of inputs that never violate.
	Ignored []board.ID
}

// Machine is the alarm state machine.
type Machine struct {
	// cfg is the immutable configuration.
	cfg Config
	// state is the current arm state.
	state alarm.State
	// since is when state was entered.
	since time.Time
	// deadline ends ARMING, ENTRY_DELAY or a time-limited TRIGGERED.
	deadline time.Time
	// resume is the state TRIGGERED falls back to when AlarmDuration expires.
	resume alarm.State
	// active holds the debounced value of every sensor input.
	active map[board.ID]bool
	// ignored holds the inputs bypassed for the current arm period.
	ignored []board.ID
	// causes are the causes recorded since the current incident began.
	causes []alarm.Cause
	// lastCause is the most recent cause ever recorded.
	lastCause *alarm.Cause
	// lastActor is who last changed the state.
	lastActor *alarm.Actor
	// pending holds transitions not yet drained.
	pending []alarm.Transition
	// testRole is driven by an output test until testUntil.
	testRole  Role
	testUntil time.Time
}

// New returns a DISARMED machine.
func New(cfg Config, now time.Time) *Machine {
	cfg.Ignored = normalize(cfg.Ignored)

	return &Machine{
		cfg:     cfg,
		state:   alarm.Disarmed,
		since:   now,
		active:  make(map[board.ID]bool),
		ignored: slices.Clone(cfg.Ignored),
	}
}

// State returns the current arm state.
func (m *Machine) State() alarm.State {
	return m.state
}

// Arm starts arming from DISARMED. A nil ignored list selects the configured
// default. Arming in any other state is a no-op and returns false.
func (m *Machine) Arm(now time.Time, actor *alarm.Actor, ignored []board.ID) bool {
	if m.state != alarm.Disarmed {
		return false
	}

	if ignored != nil {
		m.ignored = normalize(ignored)
	}

	m.causes = nil

	if m.cfg.ExitDelay > 0 {
		m.enter(now, alarm.Arming, nil, actor)

		return true
	}

	m.enterArmed(now, actor)

	return true
}

// Disarm returns to DISARMED from any state and restores the default ignored
// inputs. Disarming while DISARMED is a no-op and returns false.
func (m *Machine) Disarm(now time.Time, actor *alarm.Actor) bool {
	if m.state == alarm.Disarmed {
		return false
	}

	m.ignored = slices.Clone(m.cfg.Ignored)
	m.causes = nil
	m.enter(now, alarm.Disarmed, nil, actor)

	return true
}

// Panic forces TRIGGERED from any state, bypassing every delay. In TRIGGERED it
// restarts the alarm duration. It returns true when the state changed.
func (m *Machine) Panic(now time.Time, actor *alarm.Actor) bool {
	cause := alarm.Cause{Panic: true, At: now}
	m.record(cause)

	if m.state == alarm.Triggered {
		m.since = now
		m.deadline = m.triggerDeadline(now)

		if actor != nil {
			m.lastActor = actor.Clone()
		}

		return false
	}

	m.resume = alarm.Disarmed
	if m.state.IsArmed() {
		m.resume = alarm.Armed
	}

	m.enter(now, alarm.Triggered, &cause, actor)

	return true
}

// TestOutput drives the sounder or the strobe for its configured test length
// and returns that length. It is refused unless DISARMED; any state change
// ends the test early.
func (m *Machine) TestOutput(now time.Time, role Role) (time.Duration, error) {
	var length time.Duration

	switch role {
	case RoleSounder:
		length = cmp.Or(m.cfg.SounderTest, DefaultSounderTest)
	case RoleStrobe:
		length = cmp.Or(m.cfg.StrobeTest, DefaultStrobeTest)
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotTestable, role)
	}

	if m.state != alarm.Disarmed {
		return 0, fmt.Errorf("%w: state is %s", ErrNotDisarmed, m.state)
	}

	m.testRole = role
	m.testUntil = now.Add(length)

	return length, nil
}

// Input applies a debounced change of an input. Initial marks the first
// observation after startup.
func (m *Machine) Input(now time.Time, pin board.ID, active, initial bool) {
	if m.cfg.ArmInput != nil && pin == *m.cfg.ArmInput {
		m.armInput(now, active, initial)

		return
	}

	m.active[pin] = active

	if active && !slices.Contains(m.ignored, pin) {
		m.violate(now, pin)
	}
}

// Tick advances the delay timers.
func (m *Machine) Tick(now time.Time) {
	switch m.state {
	case alarm.Arming:
		if !now.Before(m.deadline) {
			m.enterArmed(now, nil)
		}
	case alarm.EntryDelay:
		if !now.Before(m.deadline) {
			m.resume = alarm.Armed
			m.enter(now, alarm.Triggered, nil, nil)
		}
	case alarm.Triggered:
		if m.cfg.AlarmDuration <= 0 || now.Before(m.deadline) {
			return
		}

		m.causes = nil

		if m.resume == alarm.Disarmed {
			m.ignored = slices.Clone(m.cfg.Ignored)
			m.enter(now, alarm.Disarmed, nil, nil)

			return
		}

		m.enterArmed(now, nil)
	case alarm.Disarmed, alarm.Armed:
	}
}

// Output reports whether the given role is active. It depends only on the
// state, the time spent in it and a running output test.
func (m *Machine) Output(role Role, now time.Time) bool {
	switch role {
	case RoleArmed:
		return m.state != alarm.Disarmed
	case RoleActive:
		return m.state == alarm.Triggered
	case RoleSounder, RoleStrobe:
		return m.state == alarm.Triggered || (role == m.testRole && now.Before(m.testUntil))
	case RoleBuzzer:
		if m.state != alarm.Arming && m.state != alarm.EntryDelay {
			return false
		}

		elapsed := max(now.Sub(m.since), 0)

		return elapsed%beepPeriod < m.cfg.BeepDuration
	default:
		return false
	}
}

// Status returns a snapshot of the machine.
func (m *Machine) Status() *alarm.Status {
	status := &alarm.Status{
		State:         m.state,
		Since:         m.since,
		IgnoredInputs: slices.Clone(m.ignored),
		TriggerCauses: slices.Clone(m.causes),
		LastActor:     m.lastActor.Clone(),
	}

	for pin, active := range m.active {
		if active {
			status.ActiveInputs = append(status.ActiveInputs, pin)
		}
	}

	slices.Sort(status.ActiveInputs)

	if m.lastCause != nil {
		cause := *m.lastCause
		status.LastTriggerCause = &cause
	}

	return status
}

// Drain returns and clears the transitions recorded since the last call.
func (m *Machine) Drain() []alarm.Transition {
	drained := m.pending
	m.pending = nil

	return drained
}

// armInput arms on activation and disarms on deactivation of the key switch.
// An inactive key switch at startup leaves a restored arm state alone.
func (m *Machine) armInput(now time.Time, active, initial bool) {
	actor := armInputActor

	switch {
	case active:
		m.Arm(now, &actor, nil)
	case !initial:
		m.Disarm(now, &actor)
	}
}

// enterArmed enters ARMED and treats inputs that are already active as violations.
func (m *Machine) enterArmed(now time.Time, actor *alarm.Actor) {
	m.enter(now, alarm.Armed, nil, actor)

	for _, pin := range m.violations() {
		m.violate(now, pin)
	}
}

// violate handles an active, non-ignored input.
func (m *Machine) violate(now time.Time, pin board.ID) {
	switch m.state {
	case alarm.Armed:
		cause := alarm.Cause{Input: pin, At: now}
		m.record(cause)

		if m.cfg.EntryDelay > 0 {
			m.enter(now, alarm.EntryDelay, &cause, nil)

			return
		}

		m.resume = alarm.Armed
		m.enter(now, alarm.Triggered, &cause, nil)
	case alarm.EntryDelay, alarm.Triggered:
		m.record(alarm.Cause{Input: pin, At: now})
	case alarm.Disarmed, alarm.Arming:
	}
}

// violations returns the active inputs that are not ignored, in pin order.
func (m *Machine) violations() []board.ID {
	var pins []board.ID

	for pin, active := range m.active {
		if active && !slices.Contains(m.ignored, pin) {
			pins = append(pins, pin)
		}
	}

	slices.Sort(pins)

	return pins
}

// record appends a cause to the current incident.
func (m *Machine) record(cause alarm.Cause) {
	m.causes = append(m.causes, cause)
	last := cause
	m.lastCause = &last
}

// enter switches state and records the transition.
func (m *Machine) enter(now time.Time, to alarm.State, cause *alarm.Cause, actor *alarm.Actor) {
	tr := alarm.Transition{
		From:  m.state,
		To:    to,
		At:    now,
		Actor: actor.Clone(),
	}

	if cause != nil {
		c := *cause
		tr.Cause = &c
	}

	if actor != nil {
		m.lastActor = actor.Clone()
	}

	m.state = to
	m.since = now
	m.testUntil = time.Time{}

	switch to {
	case alarm.Arming:
		m.deadline = now.Add(m.cfg.ExitDelay)
	case alarm.EntryDelay:
		m.deadline = now.Add(m.cfg.EntryDelay)
	case alarm.Triggered:
		m.deadline = m.triggerDeadline(now)
	case alarm.Disarmed, alarm.Armed:
		m.deadline = time.Time{}
	}

	m.pending = append(m.pending, tr)
}

// triggerDeadline returns when a TRIGGERED state entered at now expires.
func (m *Machine) triggerDeadline(now time.Time) time.Time {
	if m.cfg.AlarmDuration <= 0 {
		return time.Time{}
	}

	return now.Add(m.cfg.AlarmDuration)
}

// normalize returns a sorted copy without duplicates.
func normalize(pins []board.ID) []board.ID {
	out := slices.Clone(pins)
	slices.Sort(out)

	return slices.Compact(out)
}
