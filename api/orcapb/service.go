package orcapb

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC full method prefix for the orchestrator
// service. Hand-written in place of protoc-gen-go-grpc output (see
// codec.go and DESIGN.md).
const ServiceName = "orca.v1.OrchestratorService"

// OrchestratorServer is the interface cmd/orca's gRPC server implements
// over internal/orchestrator.Service.
type OrchestratorServer interface {
	StartRun(context.Context, *StartRunRequest) (*StartRunResponse, error)
	SubmitTask(context.Context, *SubmitTaskRequest) (*SubmitTaskResponse, error)
	StreamEvents(*StreamEventsRequest, OrchestratorService_StreamEventsServer) error
	FetchResult(context.Context, *FetchResultRequest) (*FetchResultResponse, error)
}

// OrchestratorService_StreamEventsServer is the server-side stream
// handle for StreamEvents, mirroring the shape protoc-gen-go-grpc
// generates for a server-streaming RPC.
type OrchestratorService_StreamEventsServer interface {
	Send(*StreamEventsResponse) error
	grpc.ServerStream
}

type streamEventsServer struct {
	grpc.ServerStream
}

func (s *streamEventsServer) Send(m *StreamEventsResponse) error {
	return s.ServerStream.SendMsg(m)
}

func _OrchestratorService_StartRun_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(StartRunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServer).StartRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/StartRun"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServer).StartRun(ctx, req.(*StartRunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_SubmitTask_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SubmitTaskRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServer).SubmitTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/SubmitTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServer).SubmitTask(ctx, req.(*SubmitTaskRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_FetchResult_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FetchResultRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorServer).FetchResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/FetchResult"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorServer).FetchResult(ctx, req.(*FetchResultRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _OrchestratorService_StreamEvents_Handler(srv any, stream grpc.ServerStream) error {
	in := new(StreamEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrchestratorServer).StreamEvents(in, &streamEventsServer{stream})
}

// ServiceDesc is the hand-written equivalent of a protoc-generated
// grpc.ServiceDesc, registered with RegisterOrchestratorServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrchestratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartRun", Handler: _OrchestratorService_StartRun_Handler},
		{MethodName: "SubmitTask", Handler: _OrchestratorService_SubmitTask_Handler},
		{MethodName: "FetchResult", Handler: _OrchestratorService_FetchResult_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: _OrchestratorService_StreamEvents_Handler, ServerStreams: true},
	},
}

// RegisterOrchestratorServer registers srv with s.
func RegisterOrchestratorServer(s grpc.ServiceRegistrar, srv OrchestratorServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OrchestratorClient is the client-side stub, hand-written in place of
// protoc-gen-go-grpc output.
type OrchestratorClient interface {
	StartRun(ctx context.Context, in *StartRunRequest, opts ...grpc.CallOption) (*StartRunResponse, error)
	SubmitTask(ctx context.Context, in *SubmitTaskRequest, opts ...grpc.CallOption) (*SubmitTaskResponse, error)
	StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (OrchestratorService_StreamEventsClient, error)
	FetchResult(ctx context.Context, in *FetchResultRequest, opts ...grpc.CallOption) (*FetchResultResponse, error)
}

type orchestratorClient struct {
	cc grpc.ClientConnInterface
}

// NewOrchestratorClient builds a client over cc.
func NewOrchestratorClient(cc grpc.ClientConnInterface) OrchestratorClient {
	return &orchestratorClient{cc: cc}
}

func (c *orchestratorClient) StartRun(ctx context.Context, in *StartRunRequest, opts ...grpc.CallOption) (*StartRunResponse, error) {
	out := new(StartRunResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/StartRun", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorClient) SubmitTask(ctx context.Context, in *SubmitTaskRequest, opts ...grpc.CallOption) (*SubmitTaskResponse, error) {
	out := new(SubmitTaskResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/SubmitTask", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorClient) FetchResult(ctx context.Context, in *FetchResultRequest, opts ...grpc.CallOption) (*FetchResultResponse, error) {
	out := new(FetchResultResponse)
	if err := c.cc.Invoke(ctx, ServiceName+"/FetchResult", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// OrchestratorService_StreamEventsClient is the client-side stream
// handle for StreamEvents.
type OrchestratorService_StreamEventsClient interface {
	Recv() (*StreamEventsResponse, error)
	grpc.ClientStream
}

type streamEventsClient struct {
	grpc.ClientStream
}

func (c *streamEventsClient) Recv() (*StreamEventsResponse, error) {
	m := new(StreamEventsResponse)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *orchestratorClient) StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (OrchestratorService_StreamEventsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/StreamEvents", opts...)
	if err != nil {
		return nil, err
	}
	x := &streamEventsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
