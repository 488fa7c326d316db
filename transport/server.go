package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/plenum-go/plenum/membership/proto"
)

// GossipServer is the server side of the exchange service. The membership
// cluster implements it directly.
type GossipServer interface {
	ExchangeClusterViews(ctx context.Context, view *proto.PartialClusterView) (*proto.PartialClusterView, error)
	ExchangeHeartbeats(ctx context.Context, msg *proto.HeartbeatMessage) (*proto.HeartbeatMessage, error)
}

const (
	serviceName = "plenum.Gossip"

	methodExchangeClusterViews = "/plenum.Gossip/ExchangeClusterViews"
	methodExchangeHeartbeats   = "/plenum.Gossip/ExchangeHeartbeats"
)

func RegisterGossipServer(reg grpc.ServiceRegistrar, srv GossipServer) {
	reg.RegisterService(&gossipServiceDesc, srv)
}

var gossipServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GossipServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ExchangeClusterViews",
			Handler:    exchangeClusterViewsHandler,
		},
		{
			MethodName: "ExchangeHeartbeats",
			Handler:    exchangeHeartbeatsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "plenum/gossip.proto",
}

func exchangeClusterViewsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(proto.PartialClusterView)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(GossipServer).ExchangeClusterViews(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodExchangeClusterViews,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GossipServer).ExchangeClusterViews(ctx, req.(*proto.PartialClusterView))
	}

	return interceptor(ctx, in, info, handler)
}

func exchangeHeartbeatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(proto.HeartbeatMessage)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(GossipServer).ExchangeHeartbeats(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodExchangeHeartbeats,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(GossipServer).ExchangeHeartbeats(ctx, req.(*proto.HeartbeatMessage))
	}

	return interceptor(ctx, in, info, handler)
}
