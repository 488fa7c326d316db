package transport

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/plenum-go/plenum/internal/grpcutil"
	"github.com/plenum-go/plenum/membership"
	"github.com/plenum-go/plenum/membership/proto"
)

// Client is a connection-caching gossip transport. Connections are created
// lazily on first exchange with an address and reused afterwards; gRPC's
// own reconnect logic handles peers that come and go.
type Client struct {
	mut   sync.Mutex
	conns map[string]*grpc.ClientConn
	opts  []grpc.DialOption
}

var _ membership.Transport = (*Client)(nil)

func NewClient(opts ...grpc.DialOption) *Client {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}

	return &Client{
		conns: make(map[string]*grpc.ClientConn),
		opts:  append(defaults, opts...),
	}
}

func (c *Client) conn(addr string) (*grpc.ClientConn, error) {
	c.mut.Lock()
	defer c.mut.Unlock()

	if conn, ok := c.conns[addr]; ok {
		return conn, nil
	}

	conn, err := grpc.NewClient(addr, c.opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c.conns[addr] = conn

	return conn, nil
}

func (c *Client) invoke(ctx context.Context, addr, method string, in, out proto.Message) error {
	conn, err := c.conn(addr)
	if err != nil {
		return err
	}

	if err := conn.Invoke(ctx, method, in, out); err != nil {
		if grpcutil.IsUnreachable(err) {
			return fmt.Errorf("%w: %s: %s", membership.ErrPeerUnreachable, addr, grpcutil.ErrorCode(err))
		}

		return fmt.Errorf("invoke %s on %s: %w", method, addr, err)
	}

	return nil
}

func (c *Client) ExchangeClusterViews(ctx context.Context, addr string, view *proto.PartialClusterView) (*proto.PartialClusterView, error) {
	out := new(proto.PartialClusterView)
	if err := c.invoke(ctx, addr, methodExchangeClusterViews, view, out); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *Client) ExchangeHeartbeats(ctx context.Context, addr string, msg *proto.HeartbeatMessage) (*proto.HeartbeatMessage, error) {
	out := new(proto.HeartbeatMessage)
	if err := c.invoke(ctx, addr, methodExchangeHeartbeats, msg, out); err != nil {
		return nil, err
	}

	return out, nil
}

// Close tears down all cached connections.
func (c *Client) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
	}

	return firstErr
}
