package p2p

import (
	"context"
	"net"
	"time"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/tlsLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/zap"
)

const HandshakeTimeout = 10 * time.Second

type ServerConf struct {
	Addr string //host:port to listen on
	Mode Mode

	Tls      tlsLayer.Type //None, Fake or Tls
	TlsHost  string
	CertConf *tlsLayer.CertConf //random self signed cert when nil
	Alpn     []string

	Sockopt        *netLayer.Sockopt
	MaxQueuedBytes int64

	ProxyProtocol bool //peers come through a load balancer that sends PROXY protocol headers
}

// Server accepts p2p tcp connections. Every accepted conn becomes an open Host.
type Server struct {
	conf       ServerConf
	handshaker tlsLayer.Upgrader

	// NewDelegate gives the delegate of the host for a new peer.
	NewDelegate func(remote netLayer.Addr) Delegate

	// OnAccept, if set, gets every host before it starts reading.
	OnAccept func(h *Host)

	listener net.Listener
}

func NewServer(conf ServerConf, newDelegate func(remote netLayer.Addr) Delegate) (*Server, error) {
	s := &Server{conf: conf, NewDelegate: newDelegate}

	switch conf.Tls {
	case tlsLayer.None:
	case tlsLayer.Fake:
		s.handshaker = tlsLayer.FakeServer{}
	case tlsLayer.Tls:
		ts, err := tlsLayer.NewServer(conf.TlsHost, conf.CertConf, conf.Alpn)
		if err != nil {
			return nil, err
		}
		s.handshaker = ts
	default:
		return nil, utils.ErrInErr{ErrDesc: "p2p server can't accept", ErrDetail: tlsLayer.ErrUnknownType, Data: conf.Tls.String()}
	}
	return s, nil
}

// Start listens and accepts in the background.
func (s *Server) Start() error {
	l, err := netLayer.ListenAndAccept(s.conf.Addr, s.conf.Sockopt, s.conf.ProxyProtocol, s.handle)
	if err != nil {
		return err
	}
	s.listener = l
	if ce := utils.CanLogInfo("p2p server listening"); ce != nil {
		ce.Write(zap.String("addr", l.Addr().String()), zap.String("mode", s.conf.Mode.String()), zap.String("tls", s.conf.Tls.String()))
	}
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handle(c net.Conn) {
	remote, err := netLayer.NewAddrFromNetAddr(c.RemoteAddr())
	if err != nil {
		c.Close()
		return
	}

	stream := c
	if s.handshaker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), HandshakeTimeout)
		stream, err = s.handshaker.Handshake(ctx, c)
		cancel()
		if err != nil {
			if ce := utils.CanLogWarn("p2p server handshake failed"); ce != nil {
				ce.Write(zap.String("remote", remote.String()), zap.Error(err))
			}
			c.Close()
			return
		}
	}

	h := NewHost(WrapConn(stream, c), Conf{
		Remote:         remote,
		Mode:           s.conf.Mode,
		MaxQueuedBytes: s.conf.MaxQueuedBytes,
	}, s.NewDelegate(remote))

	if s.OnAccept != nil {
		s.OnAccept(h)
	}
	h.Init()
}
