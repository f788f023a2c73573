package panel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/debounce"
	"github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/logger"
	"github.com/oshokin/alarm-panel/internal/machine"
)

const (
	// DefaultPollPeriod is used when Options.PollPeriod is not set.
	DefaultPollPeriod = 100 * time.Millisecond

	// DefaultMaxConsecutiveErrors is used when Options.MaxConsecutiveErrors is not set.
	DefaultMaxConsecutiveErrors = 5

	// DefaultRetryAfter is used when Options.RetryAfter is not set.
	DefaultRetryAfter = 5 * time.Second

	// breakerName names the hardware circuit breaker in logs.
	breakerName = "hardware"
)

var errBoardIsNotSet = errors.New("board is not set")

// ErrOutputNotConfigured rejects an output test of a role without a pin.
var ErrOutputNotConfigured = errors.New("output is not configured")

// Listener is notified of every state transition, in order, by a goroutine
// that Run starts. A slow listener never blocks polling or control calls.
// Errors are logged and never affect the panel.
type Listener interface {
	OnTransition(ctx context.Context, tr alarm.Transition, status *alarm.Status) error
}

// Options configures a Panel.
type Options struct {
	// Board gives access to the configured pins.
	Board *board.Board
	// Machine configures delays, the arm input and the ignored inputs.
	Machine machine.Config
	// Outputs assigns output pins to roles.
	Outputs map[machine.Role]board.ID
	// Names labels inputs in logs.
	Names map[board.ID]string
	// PollPeriod is the loop cadence.
	PollPeriod time.Duration
	// Debounce is the input stabilization interval.
	Debounce time.Duration
	// MaxConsecutiveErrors is the number of failed ticks that trips the safe state.
	MaxConsecutiveErrors uint32
	// RetryAfter is how long a tripped panel leaves the hardware alone.
	RetryAfter time.Duration
	// Listeners receive state transitions.
	Listeners []Listener
}

// Panel owns the state machine and drives the board.
type Panel struct {
	// mu guards every field below it.
	mu sync.Mutex
	// machine is the alarm state machine.
	machine *machine.Machine
	// debouncer filters input readings.
	debouncer *debounce.Debouncer
	// breaker counts consecutive failed ticks.
	breaker *gobreaker.CircuitBreaker[struct{}]
	// fault describes the tripped hardware fault; empty while healthy.
	fault string
	// lastErr is the error of the latest failed tick.
	lastErr error

	// pending holds transitions not yet delivered to the listeners.
	pending []notification
	// wake tells the notifier that pending is not empty.
	wake chan struct{}

	board     *board.Board
	sensors   []board.ID
	outputs   []board.ID
	roles     map[board.ID][]machine.Role
	names     map[board.ID]string
	period    time.Duration
	listeners []Listener
	// hardwareLog throttles hardware error messages.
	hardwareLog *rate.Sometimes
}

// notification is a batch of transitions with the status right after them.
type notification struct {
	transitions []alarm.Transition
	status      *alarm.Status
}

// New validates the options and returns a DISARMED panel.
func New(opts Options) (*Panel, error) {
	if opts.Board == nil {
		return nil, errBoardIsNotSet
	}

	configured := opts.Board.Outputs()
	roles := make(map[board.ID][]machine.Role)

	for role, pin := range opts.Outputs {
		if !slices.Contains(configured, pin) {
			return nil, &board.InvalidPinError{Pin: pin, Direction: board.Output, Reason: "not configured"}
		}

		roles[pin] = append(roles[pin], role)
	}

	outputs := make([]board.ID, 0, len(roles))
	for pin := range roles {
		outputs = append(outputs, pin)
	}

	slices.Sort(outputs)

	inputs := opts.Board.Inputs()
	sensors := make([]board.ID, 0, len(inputs))

	for _, pin := range inputs {
		if opts.Machine.ArmInput != nil && pin == *opts.Machine.ArmInput {
			continue
		}

		sensors = append(sensors, pin)
	}

	if arm := opts.Machine.ArmInput; arm != nil && !slices.Contains(inputs, *arm) {
		return nil, &board.InvalidPinError{Pin: *arm, Direction: board.Input, Reason: "arm input not configured"}
	}

	for _, pin := range opts.Machine.Ignored {
		if !slices.Contains(sensors, pin) {
			return nil, &board.InvalidPinError{Pin: pin, Direction: board.Input, Reason: "ignored input not configured"}
		}
	}

	period := opts.PollPeriod
	if period <= 0 {
		period = DefaultPollPeriod
	}

	maxErrors := opts.MaxConsecutiveErrors
	if maxErrors == 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}

	retryAfter := opts.RetryAfter
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     retryAfter,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxErrors
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnKV(context.Background(), "Circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &Panel{
		machine:     machine.New(opts.Machine, time.Now()),
		debouncer:   debounce.New(opts.Debounce),
		breaker:     breaker,
		board:       opts.Board,
		sensors:     sensors,
		outputs:     outputs,
		roles:       roles,
		names:       opts.Names,
		period:      period,
		listeners:   opts.Listeners,
		wake:        make(chan struct{}, 1),
		hardwareLog: &rate.Sometimes{First: 3, Interval: time.Minute},
	}, nil
}

// Run polls the board every period until ctx is done, then drives every
// output inactive. The first tick happens immediately. Listeners are notified
// while Run is active; transitions left over at shutdown are delivered before
// Run returns.
func (p *Panel) Run(ctx context.Context) error {
	stop := make(chan struct{})
	notified := make(chan struct{})

	go func() {
		defer close(notified)

		p.notify(logger.WithName(ctx, "notify"), stop)
	}()

	ctx = logger.WithName(ctx, "poll")

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Poll loop started", "period", p.period)

	for ctx.Err() == nil {
		p.Tick(ctx)

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	err := p.Release(ctx)

	logger.Info(ctx, "Poll loop stopped, outputs released")

	close(stop)
	<-notified

	return err
}

// notify delivers pending transitions until stop is closed, then flushes
// what is left.
func (p *Panel) notify(ctx context.Context, stop <-chan struct{}) {
	// Listeners persist the last transitions after ctx is canceled.
	ctx = context.WithoutCancel(ctx)

	for {
		select {
		case <-p.wake:
			p.deliver(ctx)
		case <-stop:
			p.deliver(ctx)

			return
		}
	}
}

// deliver hands every pending notification to the listeners, outside mu.
func (p *Panel) deliver(ctx context.Context) {
	for {
		p.mu.Lock()
		batch := p.pending
		p.pending = nil
		p.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		for _, n := range batch {
			for _, tr := range n.transitions {
				for _, l := range p.listeners {
					if err := l.OnTransition(ctx, tr, n.status); err != nil {
						logger.ErrorKV(ctx, "Failed to handle state transition", "error", err)
					}
				}
			}
		}
	}
}

// Tick performs one poll cycle: read inputs, debounce, update the machine and
// write outputs. Hardware errors are logged and never abort the tick.
func (p *Panel) Tick(ctx context.Context) {
	p.mu.Lock()

	now := time.Now()
	ran := false

	_, err := p.breaker.Execute(func() (struct{}, error) {
		ran = true

		return struct{}{}, p.cycleLocked(ctx, now)
	})

	if ran && err != nil {
		p.lastErr = err

		p.hardwareLog.Do(func() {
			logger.WarnKV(ctx, "Hardware error", "error", err)
		})
	}

	// The breaker leaves the hardware alone, but delays keep running.
	if !ran {
		p.machine.Tick(now)
	}

	if p.breaker.State() != gobreaker.StateClosed {
		if p.fault == "" {
			logger.ErrorKV(ctx, "Too many hardware errors, outputs forced inactive", "error", p.lastErr)
		}

		p.fault = fmt.Sprintf("hardware fault: %v", p.lastErr)

		// Best effort: the bus may be the thing that is broken.
		_ = p.writeLocked(now, true)
	} else if p.fault != "" {
		logger.Info(ctx, "Hardware recovered")

		p.fault = ""
	}

	p.publishLocked(ctx)
}

// Release drives every output inactive.
func (p *Panel) Release(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := errors.Join(p.writeLocked(time.Now(), true)...)
	if err != nil {
		logger.WarnKV(ctx, "Failed to release outputs", "error", err)
	}

	return err
}

// Arm starts arming. A nil ignored list selects the configured default; an
// empty one bypasses nothing. It reports whether the state changed.
func (p *Panel) Arm(ctx context.Context, actor *alarm.Actor, ignored []board.ID) (bool, error) {
	for _, pin := range ignored {
		if !slices.Contains(p.sensors, pin) {
			return false, &board.InvalidPinError{Pin: pin, Direction: board.Input, Reason: "not a configured sensor input"}
		}
	}

	p.mu.Lock()
	changed := p.machine.Arm(time.Now(), actor, ignored)
	p.publishLocked(ctx)

	return changed, nil
}

// Disarm returns to DISARMED. It reports whether the state changed.
func (p *Panel) Disarm(ctx context.Context, actor *alarm.Actor) bool {
	p.mu.Lock()
	changed := p.machine.Disarm(time.Now(), actor)
	p.publishLocked(ctx)

	return changed
}

// Panic triggers the alarm immediately. It reports whether the state changed.
func (p *Panel) Panic(ctx context.Context, actor *alarm.Actor) bool {
	p.mu.Lock()
	changed := p.machine.Panic(time.Now(), actor)
	p.publishLocked(ctx)

	return changed
}

// TestOutput drives the sounder or the strobe for its test length, which it
// returns. It is refused with machine.ErrNotDisarmed unless DISARMED; the
// poll loop writes the output on its next tick.
func (p *Panel) TestOutput(ctx context.Context, actor *alarm.Actor, role machine.Role) (time.Duration, error) {
	if !p.assigned(role) {
		return 0, fmt.Errorf("%w: %s", ErrOutputNotConfigured, role)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	length, err := p.machine.TestOutput(time.Now(), role)
	if err != nil {
		return 0, err
	}

	kvs := []any{"output", role.String(), "length", length}
	if actor != nil {
		kvs = append(kvs, "actor", actor.String())
	}

	logger.InfoKV(ctx, "Output test started", kvs...)

	return length, nil
}

// SetVirtualInput closes or opens the virtual contact; the poll loop
// debounces it like a hardware input.
func (p *Panel) SetVirtualInput(ctx context.Context, closed bool) error {
	if err := p.board.SetVirtualInput(closed); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Virtual input set", "closed", closed)

	return nil
}

// Status returns a snapshot of the panel.
func (p *Panel) Status() *alarm.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.statusLocked()
}

// Sensors returns the configured sensor inputs.
func (p *Panel) Sensors() []board.ID {
	return slices.Clone(p.sensors)
}

// assigned reports whether role drives an output pin.
func (p *Panel) assigned(role machine.Role) bool {
	for _, roles := range p.roles {
		if slices.Contains(roles, role) {
			return true
		}
	}

	return false
}

// cycleLocked reads every input, feeds committed changes to the machine,
// advances its timers and writes the outputs. A failed read keeps the
// input's previous value.
func (p *Panel) cycleLocked(ctx context.Context, now time.Time) error {
	var errs []error

	for _, pin := range p.board.Inputs() {
		active, err := p.board.ReadLogical(pin)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		tr, ok := p.debouncer.Sample(pin, active, now)
		if !ok {
			continue
		}

		p.logInput(ctx, tr)
		p.machine.Input(now, tr.Pin, tr.Active, tr.Initial)
	}

	p.machine.Tick(now)

	errs = append(errs, p.writeLocked(now, false)...)

	return errors.Join(errs...)
}

// writeLocked writes every output from the machine, or inactive when release is set.
func (p *Panel) writeLocked(now time.Time, release bool) []error {
	var errs []error

	for _, pin := range p.outputs {
		active := false

		if !release {
			for _, role := range p.roles[pin] {
				active = active || p.machine.Output(role, now)
			}
		}

		if err := p.board.WriteLogical(pin, active); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

// statusLocked returns the machine status with the fault attached.
func (p *Panel) statusLocked() *alarm.Status {
	status := p.machine.Status()
	status.Fault = p.fault

	return status
}

// publishLocked drains pending transitions, logs them, queues them for the
// notifier and releases mu. It must be called with mu held.
func (p *Panel) publishLocked(ctx context.Context) {
	defer p.mu.Unlock()

	transitions := p.machine.Drain()
	if len(transitions) == 0 {
		return
	}

	for _, tr := range transitions {
		kvs := []any{"from", tr.From.String(), "to", tr.To.String()}
		if tr.Cause != nil {
			kvs = append(kvs, "cause", tr.Cause.String())
		}

		if tr.Actor != nil {
			kvs = append(kvs, "actor", tr.Actor.String())
		}

		logger.InfoKV(ctx, "State changed", kvs...)
	}

	if len(p.listeners) == 0 {
		return
	}

	p.pending = append(p.pending, notification{transitions: transitions, status: p.statusLocked()})

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// logInput logs a committed input change. Inputs that are idle at startup are not logged.
func (p *Panel) logInput(ctx context.Context, tr debounce.Transition) {
	if tr.Initial && !tr.Active {
		return
	}

	message := "Input deactivated"
	if tr.Active {
		message = "Input activated"
	}

	kvs := []any{"pin", tr.Pin.String()}
	if name := p.names[tr.Pin]; name != "" {
		kvs = append(kvs, "name", name)
	}

	logger.InfoKV(ctx, message, kvs...)
}
