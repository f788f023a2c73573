package panel

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pb "github.com/oshokin/alarm-panel/internal/api/grpc/panel/proto"
	"github.com/oshokin/alarm-panel/internal/board"
	domain "github.com/oshokin/alarm-panel/internal/domain/alarm"
	"github.com/oshokin/alarm-panel/internal/machine"
	core "github.com/oshokin/alarm-panel/internal/panel"
)

// Service abstracts the panel operations the transport layer depends on.
type Service interface {
	Arm(ctx context.Context, actor *domain.Actor, ignored []board.ID) (bool, error)
	Disarm(ctx context.Context, actor *domain.Actor) bool
	Panic(ctx context.Context, actor *domain.Actor) bool
	SetVirtualInput(ctx context.Context, closed bool) error
	TestOutput(ctx context.Context, actor *domain.Actor, role machine.Role) (time.Duration, error)
	Status() *domain.Status
}

// Server implements the PanelService gRPC API.
type Server struct {
	pb.UnimplementedPanelServiceServer

	// service provides the panel operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// RegisterPanelServer registers the server with a gRPC server.
func RegisterPanelServer(s grpc.ServiceRegistrar, srv *Server) {
	pb.RegisterPanelServiceServer(s, srv)
}

// Arm arms the panel. Only an overriding request replaces the default ignore list.
func (s *Server) Arm(ctx context.Context, req *pb.CommandRequest) (*pb.CommandResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	actor, ignored, err := DecodeCommand(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	changed, err := s.service.Arm(ctx, actor, ignored)
	if err != nil {
		var pinErr *board.InvalidPinError
		if errors.As(err, &pinErr) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}

		return nil, status.Error(codes.Internal, "unable to arm")
	}

	return s.result(changed), nil
}

// Disarm disarms the panel.
func (s *Server) Disarm(ctx context.Context, req *pb.CommandRequest) (*pb.CommandResponse, error) {
	actor, _, err := DecodeCommand(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.result(s.service.Disarm(ctx, actor)), nil
}

// Panic triggers the alarm.
func (s *Server) Panic(ctx context.Context, req *pb.CommandRequest) (*pb.CommandResponse, error) {
	actor, _, err := DecodeCommand(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return s.result(s.service.Panic(ctx, actor)), nil
}

// GetStatus returns the panel status.
func (s *Server) GetStatus(context.Context, *pb.Empty) (*pb.Status, error) {
	return EncodeStatus(s.service.Status()), nil
}

// SetVirtualInput closes or opens the virtual input contact.
func (s *Server) SetVirtualInput(ctx context.Context, req *pb.VirtualInputRequest) (*pb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := s.service.SetVirtualInput(ctx, req.Closed); err != nil {
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	return new(pb.Empty), nil
}

// TestOutput drives the sounder or the strobe for its test length. It is
// refused with FailedPrecondition unless the panel is DISARMED.
func (s *Server) TestOutput(ctx context.Context, req *pb.OutputTestRequest) (*pb.OutputTestResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	role, ok := machine.ParseRole(req.Output)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown output %q", req.Output)
	}

	length, err := s.service.TestOutput(ctx, decodeActor(req.Actor), role)

	switch {
	case err == nil:
		return &pb.OutputTestResponse{LengthMs: length.Milliseconds()}, nil
	case errors.Is(err, machine.ErrNotTestable):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, machine.ErrNotDisarmed), errors.Is(err, core.ErrOutputNotConfigured):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		return nil, status.Error(codes.Internal, "unable to test output")
	}
}

// result builds the response of a command from the current status.
func (s *Server) result(changed bool) *pb.CommandResponse {
	return &pb.CommandResponse{
		Status:  EncodeStatus(s.service.Status()),
		Changed: changed,
	}
}
