// Package network provides SOCKS5 dialing for sinks that reach brokers
// through a jump host.
package network

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

// NewSOCKS5Dialer creates a SOCKS5 proxy dialer.
func NewSOCKS5Dialer(host string, port int) (proxy.Dialer, error) {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer for %s: %w", addr, err)
	}
	return dialer, nil
}

// ContextDialFunc is the dialer signature used by go-redis and net/http.
type ContextDialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ContextDialer returns a dial function routed through the SOCKS5 proxy at
// host:port. An empty host returns nil, meaning direct connections.
func ContextDialer(host string, port int) (ContextDialFunc, error) {
	if host == "" {
		return nil, nil
	}
	dialer, err := NewSOCKS5Dialer(host, port)
	if err != nil {
		return nil, err
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
