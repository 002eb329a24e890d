package run

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dungeonrun.run.v1.RunService"

const (
	methodCreateRun = "CreateRun"
	methodListRuns  = "ListRuns"
	methodGetRun    = "GetRun"
	methodNotify    = "Notify"
	methodOverride  = "Override"
	methodGet       = "Get"
	methodPosition  = "Position"
	methodGroups    = "Groups"
	methodHistory   = "History"
	methodEndRun    = "EndRun"
	methodWatch     = "Watch"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// RunServiceServer is the server API of the run service.
type RunServiceServer interface {
	CreateRun(context.Context, *CreateRunRequest) (*RunView, error)
	ListRuns(context.Context, *ListRunsRequest) (*ListRunsResponse, error)
	GetRun(context.Context, *RunRequest) (*RunView, error)
	Notify(context.Context, *NotifyRequest) (*OutcomeView, error)
	Override(context.Context, *OverrideRequest) (*OutcomeView, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	Position(context.Context, *PositionRequest) (*PositionResponse, error)
	Groups(context.Context, *RunRequest) (*GroupsResponse, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	EndRun(context.Context, *RunRequest) (*EndRunResponse, error)
	Watch(*RunRequest, WatchServer) error
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Context() context.Context
	Send(*WatchEvent) error
}

type watchServer struct {
	grpc.ServerStream
}

func (w *watchServer) Send(event *WatchEvent) error {
	msg, err := encodeStruct(event)
	if err != nil {
		return err
	}
	return w.ServerStream.SendMsg(msg)
}

func unaryHandler[Req, Resp any](name string, call func(RunServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		wire := new(structpb.Struct)
		if err := dec(wire); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			in := new(Req)
			if err := decodeStruct(req.(*structpb.Struct), in); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "%s: %v", name, err)
			}
			out, err := call(srv.(RunServiceServer), ctx, in)
			if err != nil {
				return nil, err
			}
			return encodeStruct(out)
		}
		if interceptor == nil {
			return handler(ctx, wire)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, wire, info, handler)
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	wire := new(structpb.Struct)
	if err := stream.RecvMsg(wire); err != nil {
		return err
	}
	in := new(RunRequest)
	if err := decodeStruct(wire, in); err != nil {
		return status.Errorf(codes.InvalidArgument, "%s: %v", methodWatch, err)
	}
	return srv.(RunServiceServer).Watch(in, &watchServer{ServerStream: stream})
}

// ServiceDesc describes the run service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RunServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: methodCreateRun, Handler: unaryHandler(methodCreateRun, RunServiceServer.CreateRun)},
		{MethodName: methodListRuns, Handler: unaryHandler(methodListRuns, RunServiceServer.ListRuns)},
		{MethodName: methodGetRun, Handler: unaryHandler(methodGetRun, RunServiceServer.GetRun)},
		{MethodName: methodNotify, Handler: unaryHandler(methodNotify, RunServiceServer.Notify)},
		{MethodName: methodOverride, Handler: unaryHandler(methodOverride, RunServiceServer.Override)},
		{MethodName: methodGet, Handler: unaryHandler(methodGet, RunServiceServer.Get)},
		{MethodName: methodPosition, Handler: unaryHandler(methodPosition, RunServiceServer.Position)},
		{MethodName: methodGroups, Handler: unaryHandler(methodGroups, RunServiceServer.Groups)},
		{MethodName: methodHistory, Handler: unaryHandler(methodHistory, RunServiceServer.History)},
		{MethodName: methodEndRun, Handler: unaryHandler(methodEndRun, RunServiceServer.EndRun)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: methodWatch, Handler: watchHandler, ServerStreams: true},
	},
	Metadata: "dungeonrun/run/v1/run.proto",
}

// RegisterRunServiceServer registers srv with s.
func RegisterRunServiceServer(s grpc.ServiceRegistrar, srv RunServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
