// Package rpc exposes the method channel as the gqlbridge.v1.Bridge gRPC
// service and provides a client for it. Arguments and results travel as
// google.protobuf.Struct.
package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	eventbus "github.com/hanpama/gqlbridge/internal/eventbus"
	events "github.com/hanpama/gqlbridge/internal/events"
	reqid "github.com/hanpama/gqlbridge/internal/reqid"
)

// Invoker runs method channel calls. *bridge.Bridge satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, method string, args map[string]any) (map[string]any, error)
}

type bridgeService interface {
	call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error)
}

type service struct {
	inv Invoker
}

// Register installs the bridge service on s.
func Register(s grpc.ServiceRegistrar, inv Invoker) {
	s.RegisterService(serviceDesc(), &service{inv: inv})
}

func serviceDesc() *grpc.ServiceDesc {
	sd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*bridgeService)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    protoPath,
	}
	for _, m := range rpcMethods {
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: m.rpc,
			Handler:    unaryHandler(m.rpc, m.method),
		})
	}
	return sd
}

func unaryHandler(rpcName, method string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(bridgeService)
		if interceptor == nil {
			return svc.call(ctx, method, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + rpcName}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return svc.call(ctx, method, req.(*structpb.Struct))
		})
	}
}

func (s *service) call(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, _ = reqid.NewContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.ChannelStart{Transport: "grpc", Method: method})

	out, err := s.invoke(ctx, method, in)
	code := ""
	if err != nil {
		code = status.Code(err).String()
		if f, ok := failureFromStatus(status.Convert(err)); ok {
			code = string(f.Code)
		}
	}
	eventbus.Publish(ctx, events.ChannelFinish{Transport: "grpc", Method: method, Code: code, Duration: time.Since(start)})
	return out, err
}

func (s *service) invoke(ctx context.Context, method string, in *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.inv.Invoke(ctx, method, fromStruct(in))
	if err != nil {
		return nil, errorStatus(err)
	}
	out, err := toStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}
