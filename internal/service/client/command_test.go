package client

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/alarm-panel/internal/api/grpc/panel"
	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/driver"
	"github.com/oshokin/alarm-panel/internal/machine"
	core "github.com/oshokin/alarm-panel/internal/panel"
	"github.com/oshokin/alarm-panel/internal/service/common"
)

// serve runs a panel over a mock board behind a control server and returns its address.
func serve(t *testing.T) (string, *core.Panel) {
	t.Helper()

	mock := driver.NewMock()
	require.NoError(t, mock.Setup([]int{0, 1}, []int{0, 1}))

	b, err := board.New(mock, map[board.ID]board.Polarity{
		0:                  board.NormallyOpen,
		1:                  board.NormallyOpen,
		board.VirtualInput: board.NormallyOpen,
	}, []board.ID{0, 1})
	require.NoError(t, err)

	p, err := core.New(core.Options{
		Board: b,
		Outputs: map[machine.Role]board.ID{
			machine.RoleActive:  0,
			machine.RoleSounder: 1,
		},
	})
	require.NoError(t, err)

	address := "unix://" + filepath.Join(t.TempDir(), "panel.sock")

	lis, err := api.Listen(context.Background(), address)
	require.NoError(t, err)

	srv := grpc.NewServer()
	api.RegisterPanelServer(srv, api.NewServer(p))

	go func() {
		_ = srv.Serve(lis)
	}()

	t.Cleanup(srv.Stop)

	return address, p
}

func dial(t *testing.T, address string) *common.Client {
	t.Helper()

	client, err := common.Dial(context.Background(), address, common.WithCallTimeout(time.Second))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// TestExecute_Commands walks through every action against a live panel.
func TestExecute_Commands(t *testing.T) {
	t.Parallel()

	address, p := serve(t)
	client := dial(t, address)
	ctx := context.Background()

	var out bytes.Buffer

	require.NoError(t, execute(ctx, client, &Options{Action: ActionArm, Ignored: []board.ID{1}, Output: &out}))
	require.Contains(t, out.String(), "ARMED")
	require.Contains(t, out.String(), "Ignored:   1")
	require.Equal(t, domain.Armed, p.Status().State)

	out.Reset()
	require.NoError(t, execute(ctx, client, &Options{Action: ActionVirtual, VirtualClosed: true}))
	require.NoError(t, execute(ctx, client, &Options{Action: ActionStatus, Output: &out}))
	require.Contains(t, out.String(), "State:     ARMED")

	out.Reset()
	require.NoError(t, execute(ctx, client, &Options{Action: ActionDisarm, Output: &out}))
	require.Contains(t, out.String(), "DISARMED")

	out.Reset()
	require.NoError(t, execute(ctx, client, &Options{Action: ActionPanic, Output: &out}))
	require.Contains(t, out.String(), "TRIGGERED")
	require.Contains(t, out.String(), "panic")

	err := execute(ctx, client, &Options{Action: "reboot"})
	require.ErrorIs(t, err, errUnknownAction)
}

// TestExecute_OutputTest runs a sounder test while disarmed and checks that
// the daemon refuses it once armed and for an unwired strobe.
func TestExecute_OutputTest(t *testing.T) {
	t.Parallel()

	address, _ := serve(t)
	client := dial(t, address)
	ctx := context.Background()

	var out bytes.Buffer

	require.NoError(t, execute(ctx, client, &Options{Action: ActionTest, TestRole: machine.RoleSounder, Output: &out}))
	require.Contains(t, out.String(), "Testing sounder for 2s")

	err := execute(ctx, client, &Options{Action: ActionTest, TestRole: machine.RoleStrobe, Output: &out})
	require.ErrorContains(t, err, "strobe test refused")

	require.NoError(t, execute(ctx, client, &Options{Action: ActionArm, Output: &out}))

	err = execute(ctx, client, &Options{Action: ActionTest, TestRole: machine.RoleSounder, Output: &out})
	require.ErrorContains(t, err, "sounder test refused")
	require.ErrorContains(t, err, "disarmed")
}

// TestExecute_InvalidIgnoredInput checks that the daemon's rejection is returned.
func TestExecute_InvalidIgnoredInput(t *testing.T) {
	t.Parallel()

	address, _ := serve(t)
	client := dial(t, address)

	err := execute(context.Background(), client, &Options{Action: ActionArm, Ignored: []board.ID{5}})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestExecute_RetryStopsOnCancel checks that an unreachable daemon is retried until ctx is done.
func TestExecute_RetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	client := dial(t, "unix://"+filepath.Join(t.TempDir(), "absent.sock"))

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	err := execute(ctx, client, &Options{Action: ActionArm, Retry: true})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	err = execute(context.Background(), client, &Options{Action: ActionPanic, Retry: true})
	require.Equal(t, codes.Unavailable, status.Code(err))
}

// TestRun_UsesSettings checks that Run reads the control address from the settings.
func TestRun_UsesSettings(t *testing.T) {
	t.Parallel()

	address, p := serve(t)

	outputs := config.Outputs{}
	active := board.ID(0)
	outputs.Active = &active

	configPath := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, config.Save(configPath, &config.Config{
		Inputs:  []config.Input{{Pin: 0, Name: "door"}},
		Outputs: outputs,
		Control: config.Control{Address: address, Timeout: time.Second},
	}))

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &Options{ConfigPath: configPath, Action: ActionArm, Output: &out}))
	require.Equal(t, domain.Armed, p.Status().State)
}

// TestParsePins checks comma lists, repeated flags and the virtual name.
func TestParsePins(t *testing.T) {
	t.Parallel()

	pins, err := ParsePins([]string{"1,2", "virtual", ""})
	require.NoError(t, err)
	require.Equal(t, []board.ID{1, 2, board.VirtualInput}, pins)

	pins, err = ParsePins(nil)
	require.NoError(t, err)
	require.NotNil(t, pins)
	require.Empty(t, pins)

	_, err = ParsePins([]string{"12"})
	require.Error(t, err)
}

// TestWatch_PrintsChanges checks that watch prints the initial status and
// every state change, and returns nil when canceled.
func TestWatch_PrintsChanges(t *testing.T) {
	t.Parallel()

	address, p := serve(t)
	client := dial(t, address)

	ctx, cancel := context.WithCancel(context.Background())
	out := &lockedBuffer{}
	done := make(chan error, 1)

	go func() {
		done <- execute(ctx, client, &Options{Action: ActionWatch, WatchInterval: 5 * time.Millisecond, Output: out})
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "DISARMED")
	}, 2*time.Second, 5*time.Millisecond)

	p.Panic(context.Background(), &domain.Actor{Username: "test"})

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "TRIGGERED")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Equal(t, 2, strings.Count(out.String(), "\n"))
}

// lockedBuffer is written by the watch goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
