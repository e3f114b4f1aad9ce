package netLayer

import (
	"context"
	"net"
	"syscall"
	"time"
)

// DefaultDialTimeout is used when DirectDialer.Timeout is zero.
const DefaultDialTimeout = time.Second * 8

// Dialer is what the proxy connectors use to open raw tcp connections,
// both to the destination and to proxy servers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// DirectDialer dials tcp and applies Sockopt to every socket it creates.
type DirectDialer struct {
	Timeout time.Duration
	Sockopt *Sockopt
}

func (dd *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	timeout := dd.Timeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{
		Timeout: timeout,
	}
	if dd.Sockopt != nil {
		sockopt := dd.Sockopt
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				SetSockOpt(int(fd), sockopt)
			})
		}
	}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, Classify(err)
	}
	return conn, nil
}

// Dial dials the addr with a DirectDialer that has no socket options.
func (a *Addr) Dial(ctx context.Context) (net.Conn, error) {
	var dd DirectDialer
	network := a.Network
	if network == "" {
		network = "tcp"
	}
	return dd.DialContext(ctx, network, a.String())
}
