// Package discovery resolves bootstrap peer addresses for joining a
// cluster. Providers only feed the initial seed list; once joined, the
// membership view itself is the source of peers.
package discovery

import (
	"context"
	"net"
)

type Provider interface {
	Peers(ctx context.Context) ([]string, error)
}

// Static serves a fixed list of addresses.
type Static struct {
	addrs []string
}

func NewStatic(addrs ...string) *Static {
	return &Static{addrs: append([]string(nil), addrs...)}
}

func (s *Static) Peers(context.Context) ([]string, error) {
	return append([]string(nil), s.addrs...), nil
}

// DNS resolves a "name:port" entry into one address per A/AAAA record,
// which fits headless services and round-robin records.
type DNS struct {
	resolver *net.Resolver
	name     string
}

func NewDNS(name string) *DNS {
	return &DNS{
		resolver: net.DefaultResolver,
		name:     name,
	}
}

func (d *DNS) Peers(ctx context.Context) ([]string, error) {
	host, port, err := net.SplitHostPort(d.name)
	if err != nil {
		return nil, err
	}

	hosts, err := d.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	addrs := make([]string, 0, len(hosts))
	for _, h := range hosts {
		addrs = append(addrs, net.JoinHostPort(h, port))
	}

	return addrs, nil
}
