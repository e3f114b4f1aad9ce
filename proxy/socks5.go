package proxy

import (
	"context"
	"net"
	"strings"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	xproxy "golang.org/x/net/proxy"
)

// recordingDialer hands the socks5 client our Dialer and remembers whether
// reaching the proxy itself failed.
type recordingDialer struct {
	netLayer.Dialer
	dialErr error
}

func (rd *recordingDialer) Dial(network, address string) (net.Conn, error) {
	return rd.DialContext(context.Background(), network, address)
}

func (rd *recordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, err := rd.Dialer.DialContext(ctx, network, address)
	rd.dialErr = err
	return c, err
}

func (cr *Connector) socks5Connect(ctx context.Context, cand Candidate, dest netLayer.Addr) (transport, conn net.Conn, err error) {
	var auth *xproxy.Auth
	if cand.HasAuth() {
		auth = &xproxy.Auth{User: cand.User, Password: cand.Pass}
	}
	rd := &recordingDialer{Dialer: cr.dialer()}

	d, err := xproxy.SOCKS5("tcp", cand.Addr.String(), auth, rd)
	if err != nil {
		return nil, nil, err
	}
	cd, ok := d.(xproxy.ContextDialer)
	if !ok {
		return nil, nil, utils.ErrNotImplemented
	}

	conn, err = cd.DialContext(ctx, "tcp", dest.String())
	if err != nil {
		return nil, nil, socks5Err(ctx, cand, rd.dialErr, err)
	}
	return conn, conn, nil
}

func socks5Err(ctx context.Context, cand Candidate, dialErr, err error) error {
	if dialErr != nil {
		return proxyDialErr(ctx, cand, dialErr)
	}
	if ce := netLayer.CtxErr(ctx, err); isCanceled(ce) {
		return ce
	}
	msg := err.Error()
	if strings.Contains(msg, "host unreachable") || strings.Contains(msg, "network unreachable") {
		return utils.ErrInErr{ErrDesc: "socks5 reply", ErrDetail: netLayer.ErrSocksHostUnreachable, Data: msg}
	}
	return utils.ErrInErr{ErrDesc: "socks5 handshake", ErrDetail: netLayer.ErrSocksConnectionFailed, Data: msg}
}
