package proxy

import (
	"context"
	"net"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/tlsLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/zap"
)

// Connector opens a stream to dest through one Candidate.
//
// Connect returns two conns: transport is the raw tcp connection, which is
// where socket options go; conn is the stream to dest, which may be
// transport itself or a tunnel on top of it.
type Connector struct {
	Dialer netLayer.Dialer //nil means a plain netLayer.DirectDialer

	// tls settings for https proxies. Type is always treated as tlsLayer.Tls,
	// and an empty Host becomes the proxy's host.
	ProxyTls tlsLayer.Conf

	UserAgent string
}

func (cr *Connector) dialer() netLayer.Dialer {
	if cr.Dialer != nil {
		return cr.Dialer
	}
	return &netLayer.DirectDialer{}
}

// Connect never sends proxy credentials; a proxy that wants them answers with
// a *ProxyAuthError, after which RestartWithAuth can be used.
func (cr *Connector) Connect(ctx context.Context, cand Candidate, dest netLayer.Addr) (transport, conn net.Conn, err error) {
	return cr.connect(ctx, cand, dest, false)
}

// RestartWithAuth is Connect on a fresh connection, sending the credentials of cand.
func (cr *Connector) RestartWithAuth(ctx context.Context, cand Candidate, dest netLayer.Addr) (transport, conn net.Conn, err error) {
	return cr.connect(ctx, cand, dest, true)
}

func (cr *Connector) connect(ctx context.Context, cand Candidate, dest netLayer.Addr, sendAuth bool) (transport, conn net.Conn, err error) {
	if ce := utils.CanLogDebug("connecting"); ce != nil {
		ce.Write(zap.String("via", cand.String()), zap.String("dest", dest.String()), zap.Bool("auth", sendAuth))
	}

	switch cand.Scheme {
	case SchemeDirect:
		conn, err = cr.dialer().DialContext(ctx, "tcp", dest.String())
		if err != nil {
			return nil, nil, err
		}
		return conn, conn, nil

	case SchemeHTTP, SchemeHTTPS:
		transport, err = cr.dialProxy(ctx, cand)
		if err != nil {
			return
		}
		stream := transport
		if cand.Scheme == SchemeHTTPS {
			stream, err = cr.proxyTlsHandshake(ctx, cand, transport)
			if err != nil {
				break
			}
		}
		conn, err = httpConnect(ctx, stream, cand, dest, sendAuth, cr.UserAgent)

	case SchemeSOCKS4:
		transport, err = cr.dialProxy(ctx, cand)
		if err != nil {
			return
		}
		conn, err = socks4Connect(ctx, transport, cand, dest)

	case SchemeSOCKS5:
		return cr.socks5Connect(ctx, cand, dest)

	default:
		return nil, nil, utils.ErrInErr{ErrDesc: "unsupported proxy scheme", ErrDetail: netLayer.ErrNoSupportedProxies, Data: cand.String()}
	}

	if err != nil {
		transport.Close()
		return nil, nil, err
	}
	return transport, conn, nil
}

func (cr *Connector) dialProxy(ctx context.Context, cand Candidate) (net.Conn, error) {
	c, err := cr.dialer().DialContext(ctx, "tcp", cand.Addr.String())
	if err != nil {
		return nil, proxyDialErr(ctx, cand, err)
	}
	return c, nil
}

// proxyDialErr makes any failure to reach the proxy server itself a
// ErrProxyConnectionFailed, unless ctx was the reason.
func proxyDialErr(ctx context.Context, cand Candidate, err error) error {
	if ctx.Err() != nil {
		return netLayer.CtxErr(ctx, err)
	}
	return utils.ErrInErr{ErrDesc: "can't reach proxy " + cand.String(), ErrDetail: netLayer.ErrProxyConnectionFailed, Data: err}
}

func (cr *Connector) proxyTlsHandshake(ctx context.Context, cand Candidate, transport net.Conn) (net.Conn, error) {
	conf := cr.ProxyTls
	conf.Type = tlsLayer.Tls
	if conf.Host == "" {
		conf.Host = cand.Addr.Host()
	}
	client, err := tlsLayer.NewClient(conf)
	if err != nil {
		return nil, err
	}
	tc, err := client.Handshake(ctx, transport)
	if err != nil {
		return nil, proxyDialErr(ctx, cand, err)
	}
	return tc, nil
}
