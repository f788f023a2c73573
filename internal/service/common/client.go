//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	api "github.com/oshokin/alarm-panel/internal/api/grpc/panel"
	pb "github.com/oshokin/alarm-panel/internal/api/grpc/panel/proto"
	"github.com/oshokin/alarm-panel/internal/board"
	"github.com/oshokin/alarm-panel/internal/config"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/machine"
)

// Client wraps the gRPC PanelService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the panel daemon.
	conn *grpc.ClientConn
	// api is the PanelService client stub.
	api pb.PanelServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a gRPC client for the panel daemon. The address is a unix
// socket ("unix:///run/alarm-panel.sock") or host:port.
// Note: this uses insecure transport credentials; the control socket is local.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	// Use the non-context NewClient API recommended by grpc-go
	// (DialContext is deprecated as of grpc-go v1.60+).
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial panel daemon: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         pb.NewPanelServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Arm arms the panel. A nil ignored list keeps the configured default.
// It returns the resulting status and whether the state changed.
func (c *Client) Arm(ctx context.Context, actor *domain.Actor, ignored []board.ID) (*domain.Status, bool, error) {
	return c.command(ctx, "arm", api.EncodeCommand(actor, ignored), c.api.Arm)
}

// Disarm disarms the panel.
func (c *Client) Disarm(ctx context.Context, actor *domain.Actor) (*domain.Status, bool, error) {
	return c.command(ctx, "disarm", api.EncodeCommand(actor, nil), c.api.Disarm)
}

// Panic triggers the alarm.
func (c *Client) Panic(ctx context.Context, actor *domain.Actor) (*domain.Status, bool, error) {
	return c.command(ctx, "panic", api.EncodeCommand(actor, nil), c.api.Panic)
}

// Status retrieves the panel status.
func (c *Client) Status(ctx context.Context) (*domain.Status, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.GetStatus(callCtx, new(pb.Empty))
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	status, err := api.DecodeStatus(response)
	if err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	return status, nil
}

// SetVirtualInput closes or opens the virtual input contact of the panel.
func (c *Client) SetVirtualInput(ctx context.Context, closed bool) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.SetVirtualInput(callCtx, &pb.VirtualInputRequest{Closed: closed}); err != nil {
		return fmt.Errorf("set virtual input: %w", err)
	}

	return nil
}

// TestOutput drives the sounder or the strobe for a few seconds and returns
// how long. The panel refuses it unless DISARMED.
func (c *Client) TestOutput(ctx context.Context, actor *domain.Actor, role machine.Role) (time.Duration, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := c.api.TestOutput(callCtx, &pb.OutputTestRequest{
		Actor:  api.EncodeActor(actor),
		Output: role.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("test %s: %w", role, err)
	}

	return time.Duration(response.LengthMs) * time.Millisecond, nil
}

// command performs one command call and decodes the resulting status.
func (c *Client) command(
	ctx context.Context,
	name string,
	request *pb.CommandRequest,
	call func(context.Context, *pb.CommandRequest, ...grpc.CallOption) (*pb.CommandResponse, error),
) (*domain.Status, bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := call(callCtx, request)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", name, err)
	}

	status, changed, err := api.DecodeResponse(response)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s response: %w", name, err)
	}

	return status, changed, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
