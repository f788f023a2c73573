package panel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	"github.com/oshokin/alarm-panel/internal/driver"
)

var errNoDevice = errors.New("no such device")

// brokenDriver fails Setup and counts Close calls.
type brokenDriver struct {
	*driver.Mock

	closed int
}

// Setup implements driver.Driver.
func (b *brokenDriver) Setup([]int, []int) error {
	return errNoDevice
}

// Close implements driver.Driver.
func (b *brokenDriver) Close() error {
	b.closed++

	return b.Mock.Close()
}

// TestSetupDriver_ClosesOnFailure checks that a driver failing Setup is closed.
func TestSetupDriver_ClosesOnFailure(t *testing.T) {
	t.Parallel()

	settings := &config.Config{
		Inputs:  []config.Input{{Pin: 0}, {Pin: board.VirtualInput}},
		Outputs: config.Outputs{Active: pin(1)},
	}

	drv := &brokenDriver{Mock: driver.NewMock()}

	err := setupDriver(t.Context(), drv, settings, nil)
	require.ErrorIs(t, err, errNoDevice)
	require.Equal(t, 1, drv.closed)
}

// TestSetupDriver_MonitorsMock checks pin setup and the output monitor.
func TestSetupDriver_MonitorsMock(t *testing.T) {
	t.Parallel()

	settings := &config.Config{
		Inputs:  []config.Input{{Pin: 0}, {Pin: board.VirtualInput}},
		Outputs: config.Outputs{Active: pin(1)},
	}

	var monitor bytes.Buffer

	mock := driver.NewMock()
	require.NoError(t, setupDriver(t.Context(), mock, settings, &monitor))

	high, err := mock.ReadRaw(0)
	require.NoError(t, err)
	require.True(t, high)

	require.NoError(t, mock.WriteRaw(1, false))
	require.Contains(t, monitor.String(), "[pin 1] level changed to low")
}
