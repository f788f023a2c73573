package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/driver"
	"github.com/oshokin/alarm-panel/internal/machine"
)

const (
	testPeriod   = 100 * time.Millisecond
	testDebounce = 30 * time.Millisecond
)

// flakyDriver fails reads on demand while writes keep working.
type flakyDriver struct {
	*driver.Mock

	mu      sync.Mutex
	readErr error
}

// ReadRaw fails with the injected error when set.
func (f *flakyDriver) ReadRaw(pin int) (bool, error) {
	f.mu.Lock()
	err := f.readErr
	f.mu.Unlock()

	if err != nil {
		return false, err
	}

	return f.Mock.ReadRaw(pin)
}

// failReads sets the read error; nil stops failing.
func (f *flakyDriver) failReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.readErr = err
}

// recorder collects transitions.
type recorder struct {
	mu          sync.Mutex
	transitions []alarm.Transition
	statuses    []*alarm.Status
}

// OnTransition implements Listener.
func (r *recorder) OnTransition(_ context.Context, tr alarm.Transition, status *alarm.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transitions = append(r.transitions, tr)
	r.statuses = append(r.statuses, status)

	return nil
}

// rig is a panel wired to a mock board.
//
// Inputs: 0 normally open, 1 normally closed, 2 normally open, virtual.
// Outputs: 0 active, 1 armed, 2 buzzer.
type rig struct {
	panel *Panel
	mock  *driver.Mock
	flaky *flakyDriver
}

// newRig must be called inside a synctest bubble.
func newRig(t *testing.T, cfg machine.Config, listeners ...Listener) *rig {
	t.Helper()

	mock := driver.NewMock()
	require.NoError(t, mock.Setup([]int{0, 1, 2}, []int{0, 1, 2}))

	// The normally closed loop is closed (low) while idle.
	mock.SetInput(1, false)

	flaky := &flakyDriver{Mock: mock}

	b, err := board.New(flaky, map[board.ID]board.Polarity{
		0:                  board.NormallyOpen,
		1:                  board.NormallyClosed,
		2:                  board.NormallyOpen,
		board.VirtualInput: board.NormallyOpen,
	}, []board.ID{0, 1, 2})
	require.NoError(t, err)

	p, err := New(Options{
		Board:   b,
		Machine: cfg,
		Outputs: map[machine.Role]board.ID{
			machine.RoleActive: 0,
			machine.RoleArmed:  1,
			machine.RoleBuzzer: 2,
		},
		Names:                map[board.ID]string{0: "front door"},
		PollPeriod:           testPeriod,
		Debounce:             testDebounce,
		MaxConsecutiveErrors: 3,
		RetryAfter:           time.Second,
		Listeners:            listeners,
	})
	require.NoError(t, err)

	return &rig{panel: p, mock: mock, flaky: flaky}
}

// active reports whether an output is driven active (low).
func (r *rig) active(t *testing.T, pin int) bool {
	t.Helper()

	high, ok := r.mock.Output(pin)
	require.True(t, ok)

	return !high
}

// ticks runs n poll cycles, one period apart.
func (r *rig) ticks(ctx context.Context, n int) {
	for range n {
		r.panel.Tick(ctx)
		time.Sleep(testPeriod)
	}
}

// TestConcreteScenario arms through the exit delay, violates input 0 and
// expects TRIGGERED with output 0 pulled low; shutdown releases every output.
func TestConcreteScenario(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r := newRig(t, machine.Config{ExitDelay: 5 * time.Second})

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() {
			done <- r.panel.Run(ctx)
		}()

		synctest.Wait()

		changed, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)
		require.True(t, changed)
		require.Equal(t, alarm.Arming, r.panel.Status().State)

		time.Sleep(5*time.Second + 150*time.Millisecond)
		synctest.Wait()

		require.Equal(t, alarm.Armed, r.panel.Status().State)
		require.False(t, r.active(t, 0))
		require.True(t, r.active(t, 1))

		// Raw low on a normally open input.
		r.mock.SetInput(0, false)

		time.Sleep(testDebounce + 2*testPeriod + 50*time.Millisecond)
		synctest.Wait()

		status := r.panel.Status()
		require.Equal(t, alarm.Triggered, status.State)
		require.NotNil(t, status.LastTriggerCause)
		require.Equal(t, board.ID(0), status.LastTriggerCause.Input)
		require.Equal(t, []board.ID{0}, status.ActiveInputs)
		require.True(t, r.active(t, 0))

		cancel()
		require.NoError(t, <-done)

		for pin := range 3 {
			require.False(t, r.active(t, pin), "output %d after shutdown", pin)
		}
	})
}

// TestArmThenDisarm leaves the panel DISARMED with outputs inactive.
func TestArmThenDisarm(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{ExitDelay: time.Second})

		r.ticks(ctx, 1)

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)
		require.True(t, r.panel.Disarm(ctx, nil))

		r.ticks(ctx, 1)

		require.Equal(t, alarm.Disarmed, r.panel.Status().State)

		for pin := range 3 {
			require.False(t, r.active(t, pin))
		}
	})
}

// TestIdempotentCommands checks that repeated arm and disarm are no-ops.
func TestIdempotentCommands(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		changed, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)
		require.True(t, changed)

		changed, err = r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)
		require.False(t, changed)
		require.Equal(t, alarm.Armed, r.panel.Status().State)

		require.True(t, r.panel.Disarm(ctx, nil))
		require.False(t, r.panel.Disarm(ctx, nil))
		require.Equal(t, alarm.Disarmed, r.panel.Status().State)
	})
}

// TestPanicFromAnyState triggers within one tick from every state.
func TestPanicFromAnyState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(ctx context.Context, r *rig)
		want  alarm.State
	}{
		{
			name:  "disarmed",
			setup: func(context.Context, *rig) {},
			want:  alarm.Disarmed,
		},
		{
			name: "arming",
			setup: func(ctx context.Context, r *rig) {
				_, _ = r.panel.Arm(ctx, nil, nil)
			},
			want: alarm.Arming,
		},
		{
			name: "armed",
			setup: func(ctx context.Context, r *rig) {
				_, _ = r.panel.Arm(ctx, nil, nil)
				time.Sleep(time.Minute)
				r.ticks(ctx, 1)
			},
			want: alarm.Armed,
		},
		{
			name: "triggered",
			setup: func(ctx context.Context, r *rig) {
				r.panel.Panic(ctx, nil)
			},
			want: alarm.Triggered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			synctest.Test(t, func(t *testing.T) {
				ctx := t.Context()
				r := newRig(t, machine.Config{ExitDelay: 30 * time.Second})

				r.ticks(ctx, 1)
				tt.setup(ctx, r)
				require.Equal(t, tt.want, r.panel.Status().State)

				r.panel.Panic(ctx, &alarm.Actor{Hostname: "pi", Username: "op"})
				r.ticks(ctx, 1)

				status := r.panel.Status()
				require.Equal(t, alarm.Triggered, status.State)
				require.True(t, status.LastTriggerCause.Panic)
				require.Equal(t, "op@pi", status.LastActor.String())
				require.True(t, r.active(t, 0))
			})
		})
	}
}

// TestDisarmFromTriggered deactivates the output on the next tick.
func TestDisarmFromTriggered(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		r.panel.Panic(ctx, nil)
		r.ticks(ctx, 1)
		require.True(t, r.active(t, 0))

		require.True(t, r.panel.Disarm(ctx, nil))

		// Control calls never touch hardware.
		require.True(t, r.active(t, 0))

		r.ticks(ctx, 1)
		require.False(t, r.active(t, 0))
		require.False(t, r.active(t, 1))
	})
}

// TestQuietInputsStayArmed runs 1000 ticks without a spurious trigger.
func TestQuietInputsStayArmed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		r.ticks(ctx, 1000)

		status := r.panel.Status()
		require.Equal(t, alarm.Armed, status.State)
		require.Empty(t, status.ActiveInputs)
		require.Nil(t, status.LastTriggerCause)
		require.False(t, r.active(t, 0))
	})
}

// TestNormallyClosedInput triggers when the loop opens (raw high).
func TestNormallyClosedInput(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		r.ticks(ctx, 1)

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		r.mock.SetInput(1, true)
		r.ticks(ctx, 2)

		status := r.panel.Status()
		require.Equal(t, alarm.Triggered, status.State)
		require.Equal(t, board.ID(1), status.LastTriggerCause.Input)
	})
}

// TestFlickerIsIgnored checks that a reading shorter than the debounce
// interval never reaches the machine.
func TestFlickerIsIgnored(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		r.panel.Tick(ctx)

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		time.Sleep(testPeriod)
		r.mock.SetInput(0, false)
		r.panel.Tick(ctx)

		time.Sleep(testDebounce / 2)
		r.mock.SetInput(0, true)
		r.panel.Tick(ctx)

		r.ticks(ctx, 3)
		require.Equal(t, alarm.Armed, r.panel.Status().State)
	})
}

// TestHardwareFaultForcesSafeState checks value retention on read errors,
// the safe state after the threshold and recovery after a successful trial tick.
func TestHardwareFaultForcesSafeState(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		r.mock.SetInput(0, false)
		r.ticks(ctx, 2)
		require.Equal(t, []board.ID{0}, r.panel.Status().ActiveInputs)

		r.panel.Panic(ctx, nil)
		r.ticks(ctx, 1)
		require.True(t, r.active(t, 0))

		r.flaky.failReads(errors.New("bus down"))
		r.mock.SetInput(0, true)

		// Below the threshold the previous values are kept and outputs follow the state.
		r.ticks(ctx, 2)

		status := r.panel.Status()
		require.Empty(t, status.Fault)
		require.Equal(t, []board.ID{0}, status.ActiveInputs)
		require.True(t, r.active(t, 0))

		r.ticks(ctx, 1)

		status = r.panel.Status()
		require.Contains(t, status.Fault, "bus down")
		require.Equal(t, alarm.Triggered, status.State)
		require.False(t, r.active(t, 0))
		require.False(t, r.active(t, 1))

		// While tripped the hardware is left alone and outputs stay safe.
		r.ticks(ctx, 3)
		require.NotEmpty(t, r.panel.Status().Fault)
		require.False(t, r.active(t, 0))

		r.flaky.failReads(nil)
		time.Sleep(time.Second)
		r.ticks(ctx, 1)

		status = r.panel.Status()
		require.Empty(t, status.Fault)
		require.True(t, r.active(t, 0))
	})
}

// TestIgnoredInputs checks the default set and the per-arm override.
func TestIgnoredInputs(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		_, err := r.panel.Arm(ctx, nil, []board.ID{0})
		require.NoError(t, err)

		r.mock.SetInput(0, false)
		r.ticks(ctx, 3)

		status := r.panel.Status()
		require.Equal(t, alarm.Armed, status.State)
		require.Equal(t, []board.ID{0}, status.IgnoredInputs)
		require.Equal(t, []board.ID{0}, status.ActiveInputs)

		require.True(t, r.panel.Disarm(ctx, nil))
		require.Empty(t, r.panel.Status().IgnoredInputs)

		_, err = r.panel.Arm(ctx, nil, []board.ID{5})

		var pinErr *board.InvalidPinError
		require.ErrorAs(t, err, &pinErr)
		require.Equal(t, alarm.Disarmed, r.panel.Status().State)
	})
}

// TestVirtualInput flows through the debouncer like a hardware input.
func TestVirtualInput(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{})

		r.ticks(ctx, 1)

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		require.NoError(t, r.panel.SetVirtualInput(ctx, true))

		r.panel.Tick(ctx)
		require.Equal(t, alarm.Armed, r.panel.Status().State)

		time.Sleep(testPeriod)
		r.panel.Tick(ctx)

		status := r.panel.Status()
		require.Equal(t, alarm.Triggered, status.State)
		require.Equal(t, board.VirtualInput, status.LastTriggerCause.Input)
	})
}

// TestArmInput arms on activation and disarms on release of the key switch.
func TestArmInput(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		key := board.ID(2)
		r := newRig(t, machine.Config{ArmInput: &key})

		require.Equal(t, []board.ID{0, 1, board.VirtualInput}, r.panel.Sensors())

		r.ticks(ctx, 1)
		require.Equal(t, alarm.Disarmed, r.panel.Status().State)

		r.mock.SetInput(2, false)
		r.ticks(ctx, 2)

		status := r.panel.Status()
		require.Equal(t, alarm.Armed, status.State)
		require.Empty(t, status.ActiveInputs)
		require.Equal(t, "arm-input", status.LastActor.Username)

		r.mock.SetInput(2, true)
		r.ticks(ctx, 2)
		require.Equal(t, alarm.Disarmed, r.panel.Status().State)
	})
}

// TestBuzzerBeepsDuringExitDelay checks the buzzer role.
func TestBuzzerBeepsDuringExitDelay(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()
		r := newRig(t, machine.Config{ExitDelay: 10 * time.Second, BeepDuration: 150 * time.Millisecond})

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		r.panel.Tick(ctx)
		require.True(t, r.active(t, 2))

		time.Sleep(500 * time.Millisecond)
		r.panel.Tick(ctx)
		require.False(t, r.active(t, 2))

		time.Sleep(500 * time.Millisecond)
		r.panel.Tick(ctx)
		require.True(t, r.active(t, 2))
	})
}

// TestListenersSeeTransitionsInOrder checks listener notifications.
func TestListenersSeeTransitionsInOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		rec := new(recorder)
		r := newRig(t, machine.Config{}, rec)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() {
			done <- r.panel.Run(ctx)
		}()

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)
		r.panel.Panic(ctx, nil)
		r.panel.Disarm(ctx, nil)

		cancel()
		require.NoError(t, <-done)

		rec.mu.Lock()
		defer rec.mu.Unlock()

		require.Len(t, rec.transitions, 3)
		require.Equal(t, alarm.Armed, rec.transitions[0].To)
		require.Equal(t, alarm.Triggered, rec.transitions[1].To)
		require.True(t, rec.transitions[1].Cause.Panic)
		require.Equal(t, alarm.Disarmed, rec.transitions[2].To)
		require.Equal(t, alarm.Disarmed, rec.statuses[2].State)
	})
}

// stuckListener blocks every notification until release is closed.
type stuckListener struct {
	entered chan struct{}
	release chan struct{}
	rec     recorder
}

// OnTransition implements Listener.
func (s *stuckListener) OnTransition(ctx context.Context, tr alarm.Transition, status *alarm.Status) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}

	<-s.release

	return s.rec.OnTransition(ctx, tr, status)
}

// TestSlowListenerDoesNotBlockPanel keeps a listener stuck and checks that
// polling and control calls go on.
func TestSlowListenerDoesNotBlockPanel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		stuck := &stuckListener{
			entered: make(chan struct{}, 1),
			release: make(chan struct{}),
		}
		r := newRig(t, machine.Config{}, stuck)

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() {
			done <- r.panel.Run(ctx)
		}()

		_, err := r.panel.Arm(ctx, nil, nil)
		require.NoError(t, err)

		<-stuck.entered

		r.panel.Tick(ctx)
		require.Equal(t, alarm.Armed, r.panel.Status().State)
		require.True(t, r.panel.Panic(ctx, nil))
		require.Equal(t, alarm.Triggered, r.panel.Status().State)

		r.panel.Tick(ctx)
		require.True(t, r.active(t, 0))

		close(stuck.release)
		cancel()
		require.NoError(t, <-done)

		stuck.rec.mu.Lock()
		defer stuck.rec.mu.Unlock()

		require.Len(t, stuck.rec.transitions, 2)
		require.Equal(t, alarm.Armed, stuck.rec.transitions[0].To)
		require.Equal(t, alarm.Triggered, stuck.rec.transitions[1].To)
	})
}

// TestConcurrentControl races control calls against the poll loop.
func TestConcurrentControl(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		r := newRig(t, machine.Config{ExitDelay: 250 * time.Millisecond})

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)

		go func() {
			done <- r.panel.Run(ctx)
		}()

		var wg sync.WaitGroup

		for worker := range 8 {
			wg.Go(func() {
				for i := range 50 {
					switch (worker + i) % 4 {
					case 0:
						_, _ = r.panel.Arm(ctx, nil, nil)
					case 1:
						r.panel.Disarm(ctx, nil)
					case 2:
						_ = r.panel.Status()
					default:
						_ = r.panel.SetVirtualInput(ctx, i%2 == 0)
					}

					time.Sleep(time.Duration(worker+1) * 10 * time.Millisecond)
				}
			})
		}

		wg.Wait()

		r.panel.Disarm(ctx, nil)
		time.Sleep(2 * testPeriod)
		require.Equal(t, alarm.Disarmed, r.panel.Status().State)

		cancel()
		require.NoError(t, <-done)
	})
}

// TestNewRejectsInvalidPins checks option validation.
func TestNewRejectsInvalidPins(t *testing.T) {
	t.Parallel()

	b, err := board.New(driver.NewMock(), map[board.ID]board.Polarity{0: board.NormallyOpen}, []board.ID{0})
	require.NoError(t, err)

	_, err = New(Options{})
	require.ErrorIs(t, err, errBoardIsNotSet)

	var pinErr *board.InvalidPinError

	_, err = New(Options{Board: b, Outputs: map[machine.Role]board.ID{machine.RoleSounder: 3}})
	require.ErrorAs(t, err, &pinErr)

	key := board.ID(4)
	_, err = New(Options{Board: b, Machine: machine.Config{ArmInput: &key}})
	require.ErrorAs(t, err, &pinErr)

	_, err = New(Options{Board: b, Machine: machine.Config{Ignored: []board.ID{1}}})
	require.ErrorAs(t, err, &pinErr)

	p, err := New(Options{Board: b})
	require.NoError(t, err)
	require.Equal(t, DefaultPollPeriod, p.period)
}

// TestOutputTest drives the sounder for its test length while DISARMED and
// refuses the test once armed.
func TestOutputTest(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx := t.Context()

		mock := driver.NewMock()
		require.NoError(t, mock.Setup([]int{0}, []int{0, 1}))

		b, err := board.New(mock, map[board.ID]board.Polarity{0: board.NormallyOpen}, []board.ID{0, 1})
		require.NoError(t, err)

		p, err := New(Options{
			Board: b,
			Machine: machine.Config{
				ExitDelay:   time.Minute,
				SounderTest: time.Second,
			},
			Outputs: map[machine.Role]board.ID{
				machine.RoleSounder: 0,
				machine.RoleBuzzer:  1,
			},
			PollPeriod: testPeriod,
		})
		require.NoError(t, err)

		sounding := func() bool {
			high, ok := mock.Output(0)
			require.True(t, ok)

			return !high
		}

		_, err = p.TestOutput(ctx, nil, machine.RoleStrobe)
		require.ErrorIs(t, err, ErrOutputNotConfigured)

		_, err = p.TestOutput(ctx, nil, machine.RoleBuzzer)
		require.ErrorIs(t, err, machine.ErrNotTestable)

		length, err := p.TestOutput(ctx, &alarm.Actor{Username: "installer"}, machine.RoleSounder)
		require.NoError(t, err)
		require.Equal(t, time.Second, length)

		p.Tick(ctx)
		require.True(t, sounding())
		require.Equal(t, alarm.Disarmed, p.Status().State)

		time.Sleep(length)
		p.Tick(ctx)
		require.False(t, sounding())

		_, err = p.Arm(ctx, nil, nil)
		require.NoError(t, err)

		_, err = p.TestOutput(ctx, nil, machine.RoleSounder)
		require.ErrorIs(t, err, machine.ErrNotDisarmed)

		p.Tick(ctx)
		require.False(t, sounding())
	})
}
