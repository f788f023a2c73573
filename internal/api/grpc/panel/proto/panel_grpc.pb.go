// Hand-written gRPC service definitions for alarmpanel.v1.PanelService.
// Uses a JSON codec for the wire format since there is no protoc-generated code.

package proto

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

// CodecName is the content subtype every PanelService call uses.
const CodecName = "json"

// PanelService method names.
const (
	PanelService_Arm_FullMethodName             = "/alarmpanel.v1.PanelService/Arm"
	PanelService_Disarm_FullMethodName          = "/alarmpanel.v1.PanelService/Disarm"
	PanelService_Panic_FullMethodName           = "/alarmpanel.v1.PanelService/Panic"
	PanelService_GetStatus_FullMethodName       = "/alarmpanel.v1.PanelService/GetStatus"
	PanelService_SetVirtualInput_FullMethodName = "/alarmpanel.v1.PanelService/SetVirtualInput"
	PanelService_TestOutput_FullMethodName      = "/alarmpanel.v1.PanelService/TestOutput"
)

func init() {
	// Registered process-wide; calls select it with
	// grpc.CallContentSubtype(CodecName) and the server answers in kind.
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements grpc encoding.Codec using JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

// PanelServiceClient is the client API for PanelService.
type PanelServiceClient interface {
	Arm(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	Disarm(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	Panic(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error)
	GetStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Status, error)
	SetVirtualInput(ctx context.Context, in *VirtualInputRequest, opts ...grpc.CallOption) (*Empty, error)
	TestOutput(ctx context.Context, in *OutputTestRequest, opts ...grpc.CallOption) (*OutputTestResponse, error)
}

type panelServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPanelServiceClient creates a new PanelServiceClient.
//
//nolint:ireturn // Mirrors generated client constructors.
func NewPanelServiceClient(cc grpc.ClientConnInterface) PanelServiceClient {
	return &panelServiceClient{cc}
}

func (c *panelServiceClient) Arm(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_Arm_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *panelServiceClient) Disarm(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_Disarm_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *panelServiceClient) Panic(ctx context.Context, in *CommandRequest, opts ...grpc.CallOption) (*CommandResponse, error) {
	out := new(CommandResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_Panic_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *panelServiceClient) GetStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Status, error) {
	out := new(Status)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_GetStatus_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *panelServiceClient) SetVirtualInput(ctx context.Context, in *VirtualInputRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_SetVirtualInput_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *panelServiceClient) TestOutput(ctx context.Context, in *OutputTestRequest, opts ...grpc.CallOption) (*OutputTestResponse, error) {
	out := new(OutputTestResponse)
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	err := c.cc.Invoke(ctx, PanelService_TestOutput_FullMethodName, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PanelServiceServer is the server API for PanelService.
type PanelServiceServer interface {
	Arm(context.Context, *CommandRequest) (*CommandResponse, error)
	Disarm(context.Context, *CommandRequest) (*CommandResponse, error)
	Panic(context.Context, *CommandRequest) (*CommandResponse, error)
	GetStatus(context.Context, *Empty) (*Status, error)
	SetVirtualInput(context.Context, *VirtualInputRequest) (*Empty, error)
	TestOutput(context.Context, *OutputTestRequest) (*OutputTestResponse, error)
	mustEmbedUnimplementedPanelServiceServer()
}

// UnimplementedPanelServiceServer provides default implementations.
type UnimplementedPanelServiceServer struct{}

func (UnimplementedPanelServiceServer) Arm(context.Context, *CommandRequest) (*CommandResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Arm not implemented")
}
func (UnimplementedPanelServiceServer) Disarm(context.Context, *CommandRequest) (*CommandResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Disarm not implemented")
}
func (UnimplementedPanelServiceServer) Panic(context.Context, *CommandRequest) (*CommandResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Panic not implemented")
}
func (UnimplementedPanelServiceServer) GetStatus(context.Context, *Empty) (*Status, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}
func (UnimplementedPanelServiceServer) SetVirtualInput(context.Context, *VirtualInputRequest) (*Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetVirtualInput not implemented")
}
func (UnimplementedPanelServiceServer) TestOutput(context.Context, *OutputTestRequest) (*OutputTestResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TestOutput not implemented")
}
func (UnimplementedPanelServiceServer) mustEmbedUnimplementedPanelServiceServer() {}

// UnsafePanelServiceServer may be embedded to opt out of forward compatibility.
type UnsafePanelServiceServer interface {
	mustEmbedUnimplementedPanelServiceServer()
}

// RegisterPanelServiceServer registers the PanelService with a gRPC server.
func RegisterPanelServiceServer(s grpc.ServiceRegistrar, srv PanelServiceServer) {
	s.RegisterService(&PanelService_ServiceDesc, srv)
}

func _PanelService_Arm_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).Arm(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_Arm_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).Arm(ctx, req.(*CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PanelService_Disarm_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).Disarm(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_Disarm_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).Disarm(ctx, req.(*CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PanelService_Panic_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommandRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).Panic(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_Panic_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).Panic(ctx, req.(*CommandRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PanelService_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_GetStatus_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).GetStatus(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _PanelService_SetVirtualInput_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(VirtualInputRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).SetVirtualInput(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_SetVirtualInput_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).SetVirtualInput(ctx, req.(*VirtualInputRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PanelService_TestOutput_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OutputTestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PanelServiceServer).TestOutput(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PanelService_TestOutput_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PanelServiceServer).TestOutput(ctx, req.(*OutputTestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PanelService_ServiceDesc is the grpc.ServiceDesc for PanelService.
var PanelService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "alarmpanel.v1.PanelService",
	HandlerType: (*PanelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Arm", Handler: _PanelService_Arm_Handler},
		{MethodName: "Disarm", Handler: _PanelService_Disarm_Handler},
		{MethodName: "Panic", Handler: _PanelService_Panic_Handler},
		{MethodName: "GetStatus", Handler: _PanelService_GetStatus_Handler},
		{MethodName: "SetVirtualInput", Handler: _PanelService_SetVirtualInput_Handler},
		{MethodName: "TestOutput", Handler: _PanelService_TestOutput_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "panel.proto",
}
