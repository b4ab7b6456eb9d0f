package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "roster.v1.RosterService"

// RosterServiceServer is the server API for RosterService. Messages are
// protobuf well-known types carrying the JSON document shape.
type RosterServiceServer interface {
	GetDocument(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportDocument(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	GenerateForm(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
}

// ServiceDesc describes RosterService for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RosterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetDocument", RosterServiceServer.GetDocument),
		unary("Dispatch", RosterServiceServer.Dispatch),
		unary("ExportDocument", RosterServiceServer.ExportDocument),
		unary("GenerateForm", RosterServiceServer.GenerateForm),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roster/v1/roster.proto",
}

// RegisterRosterServiceServer registers srv on s
func RegisterRosterServiceServer(s grpc.ServiceRegistrar, srv RosterServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(RosterServiceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(RosterServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// Client is a RosterService client
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetDocument(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetDocument", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Dispatch", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExportDocument(ctx context.Context, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ExportDocument", &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateForm(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GenerateForm", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
