package discovery

import (
	"context"
	"fmt"
	"path"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Etcd discovers peers through a shared etcd prefix. Every node registers
// its own advertised address under the prefix with a leased key, so the
// entries of crashed nodes expire on their own.
type Etcd struct {
	client *clientv3.Client
	prefix string
	logger kitlog.Logger
}

func NewEtcd(client *clientv3.Client, prefix string, logger kitlog.Logger) *Etcd {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}

	return &Etcd{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (e *Etcd) Peers(ctx context.Context) ([]string, error) {
	resp, err := e.client.Get(ctx, e.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list peers under %s: %w", e.prefix, err)
	}

	addrs := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addrs = append(addrs, string(kv.Value))
	}

	return addrs, nil
}

// Register announces the address under the prefix with a lease of the given
// TTL and keeps the lease alive in the background. The returned function
// revokes the lease, removing the entry immediately.
func (e *Etcd) Register(ctx context.Context, addr string, ttl time.Duration) (func(context.Context) error, error) {
	seconds := int64(ttl.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	lease, err := e.client.Grant(ctx, seconds)
	if err != nil {
		return nil, fmt.Errorf("grant lease: %w", err)
	}

	key := path.Join(e.prefix, addr)

	if _, err := e.client.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("register %s: %w", key, err)
	}

	keepAlive, err := e.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return nil, fmt.Errorf("keep lease alive: %w", err)
	}

	go func() {
		for range keepAlive {
		}

		level.Debug(e.logger).Log("msg", "lease keepalive channel closed", "key", key)
	}()

	deregister := func(ctx context.Context) error {
		_, err := e.client.Revoke(ctx, lease.ID)
		return err
	}

	return deregister, nil
}
