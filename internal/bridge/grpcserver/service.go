package grpcserver

import (
	"context"

	"timemachine/cli/internal/bridge/wire"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Hand-written equivalent of what protoc-gen-go-grpc would emit for the
// Bridge service.

type bridgeServer interface {
	executeCore(context.Context, *structpb.ListValue) (*structpb.Struct, error)
	getBackupProfiles(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	selectDirectory(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	openExternalURL(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	triggerBackup(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	subscribe(*structpb.ListValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

func unary[Req any, Resp any](method string, call func(bridgeServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := wire.FullMethod(method)
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(bridgeServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(bridgeServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.ListValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(bridgeServer).subscribe(in, &grpc.GenericServerStream[structpb.ListValue, structpb.Struct]{ServerStream: stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: wire.ServiceName,
	HandlerType: (*bridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(wire.MethodExecuteCore, bridgeServer.executeCore),
		unary(wire.MethodGetBackupProfiles, bridgeServer.getBackupProfiles),
		unary(wire.MethodSelectDirectory, bridgeServer.selectDirectory),
		unary(wire.MethodOpenExternalURL, bridgeServer.openExternalURL),
		unary(wire.MethodTriggerBackup, bridgeServer.triggerBackup),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    wire.MethodSubscribe,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "timemachine/bridge/v1/bridge.proto",
}
