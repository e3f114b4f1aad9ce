// Package proxySocket provides Socket, a client stream to one destination
// that hides proxy resolution, proxy fallback and the tls layer.
//
// A Socket goes through
//
//	resolve proxies -> connect transport (maybe through a proxy) -> tls -> open
//
// When a proxy fails with a retryable error the next candidate is tried. A
// direct connection is tried once as the last resort, also when the proxy
// config could not be resolved at all.
package proxySocket

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/proxy"
	"github.com/e1732a364fed/p2ptcp/tlsLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrConnectCalled = errors.New("connect already called")

// Resolver is the proxy decision part a Socket needs. *proxy.Resolver is one.
type Resolver interface {
	ResolveProxies(ctx context.Context, dest netLayer.Addr) (*proxy.List, error)
	ReconsiderProxyAfterError(l *proxy.List, err error) bool
	ReportSuccess(l *proxy.List)
}

// Connector opens the transport for one candidate. *proxy.Connector is one.
type Connector interface {
	Connect(ctx context.Context, cand proxy.Candidate, dest netLayer.Addr) (transport, conn net.Conn, err error)
	RestartWithAuth(ctx context.Context, cand proxy.Candidate, dest netLayer.Addr) (transport, conn net.Conn, err error)
}

type Conf struct {
	Dest netLayer.Addr

	Resolver  Resolver          //nil means direct only
	Connector Connector         //nil means a zero proxy.Connector
	Upgrader  tlsLayer.Upgrader //nil means no tls
}

// Socket implements net.Conn once open.
type Socket struct {
	dest      netLayer.Addr
	resolver  Resolver
	connector Connector
	upgrader  tlsLayer.Upgrader

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	transport net.Conn
	conn      net.Conn
	used      proxy.Candidate
	lastErr   error

	disconnected atomic.Bool
}

func New(conf Conf) *Socket {
	s := &Socket{
		dest:      conf.Dest,
		resolver:  conf.Resolver,
		connector: conf.Connector,
		upgrader:  conf.Upgrader,
	}
	if ip := conf.Dest.IP; ip != nil {
		s.dest.IP = append(net.IP(nil), ip...)
	}
	if s.resolver == nil {
		s.resolver = proxy.NewResolver(nil)
	}
	if s.connector == nil {
		s.connector = &proxy.Connector{}
	}
	return s
}

func (s *Socket) Dest() netLayer.Addr {
	return s.dest
}

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) IsConnected() bool {
	return s.State() == StateOpen
}

// Err is the error that put the socket into StateError.
func (s *Socket) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// UsedCandidate is the candidate the open connection goes through.
func (s *Socket) UsedCandidate() (proxy.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used, s.state == StateOpen
}

// advance moves to st unless the socket was disconnected meanwhile.
func (s *Socket) advance(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return netLayer.ErrAborted
	}
	s.state = st
	return nil
}

// Connect blocks until the socket is open or the attempt definitely failed.
// It may be called once.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUninitialized:
	case StateClosed:
		s.mu.Unlock()
		return netLayer.ErrAborted
	default:
		s.mu.Unlock()
		return ErrConnectCalled
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateResolvingProxy
	s.mu.Unlock()

	defer cancel()

	transport, conn, used, err := s.connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && s.state.terminal() {
		err = netLayer.ErrAborted
	}
	if err != nil {
		if transport != nil {
			transport.Close()
		}
		if s.state != StateClosed {
			s.state = StateError
			s.lastErr = err
		}
		if ce := utils.CanLogInfo("proxy socket connect failed"); ce != nil {
			ce.Write(zap.String("dest", s.dest.String()), zap.Error(err))
		}
		return err
	}

	s.transport = transport
	s.conn = conn
	s.used = used
	s.state = StateOpen

	if ce := utils.CanLogDebug("proxy socket open"); ce != nil {
		ce.Write(zap.String("dest", s.dest.String()), zap.String("via", used.String()))
	}
	return nil
}

// ConnectAsync runs Connect on a new goroutine and posts cb with its result to
// loop. cb never runs on the caller's stack, and is dropped if Disconnect was
// called before it could run.
func (s *Socket) ConnectAsync(loop *netLayer.Loop, cb func(error)) {
	go func() {
		err := s.Connect(context.Background())
		loop.Post(func() {
			if s.disconnected.Load() {
				return
			}
			cb(err)
		})
	}()
}

func (s *Socket) resolve(ctx context.Context) (*proxy.List, error) {
	list, err := s.resolver.ResolveProxies(ctx, s.dest)
	triedDirect := false
	for {
		if err == nil {
			list.RemoveProxiesWithoutScheme(proxy.SupportedSchemes)
			if list.IsEmpty() {
				err = netLayer.ErrNoSupportedProxies
			}
		}
		if err == nil {
			return list, nil
		}
		if triedDirect || ctx.Err() != nil {
			return nil, err
		}
		if ce := utils.CanLogInfo("no usable proxy, going direct"); ce != nil {
			ce.Write(zap.String("dest", s.dest.String()), zap.Error(err))
		}
		triedDirect = true
		list, err = proxy.NewList(proxy.Direct), nil
	}
}

func (s *Socket) connect(ctx context.Context) (transport, conn net.Conn, used proxy.Candidate, err error) {
	list, err := s.resolve(ctx)
	if err != nil {
		return
	}

	triedDirect := false
	for {
		cand, _ := list.Current()
		if cand.IsDirect() {
			triedDirect = true
		}
		if err = s.advance(StateConnectingTransport); err != nil {
			return
		}

		transport, conn, err = s.connector.Connect(ctx, cand, s.dest)

		var pae *proxy.ProxyAuthError
		if errors.As(err, &pae) && !pae.SentAuth && cand.HasAuth() {
			if ce := utils.CanLogDebug("proxy wants auth, restarting"); ce != nil {
				ce.Write(zap.String("proxy", cand.String()))
			}
			transport, conn, err = s.connector.RestartWithAuth(ctx, cand, s.dest)
		}
		if err == nil {
			used = cand
			break
		}

		if errors.Is(err, netLayer.ErrSocksHostUnreachable) {
			err = utils.ErrInErr{ErrDesc: "socks proxy can't reach host", ErrDetail: netLayer.ErrAddressUnreachable, Data: err}
			return
		}
		if ctx.Err() != nil {
			err = netLayer.CtxErr(ctx, err)
			return
		}
		if s.resolver.ReconsiderProxyAfterError(list, err) {
			continue
		}
		if !triedDirect && netLayer.IsRetryable(err) {
			if ce := utils.CanLogInfo("all proxies failed, going direct"); ce != nil {
				ce.Write(zap.String("dest", s.dest.String()), zap.Error(err))
			}
			list.UseDirect()
			continue
		}
		return
	}

	if s.upgrader != nil {
		if err = s.advance(StateTLSConnecting); err != nil {
			return
		}
		conn, err = s.upgrader.Handshake(ctx, conn)
		if err != nil {
			err = netLayer.CtxErr(ctx, err)
			return
		}
	}

	s.resolver.ReportSuccess(list)
	return
}

func (s *Socket) openConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, netLayer.ErrNotConnected
	}
	return s.conn, nil
}

func (s *Socket) Read(p []byte) (int, error) {
	c, err := s.openConn()
	if err != nil {
		return 0, err
	}
	return c.Read(p)
}

func (s *Socket) Write(p []byte) (int, error) {
	c, err := s.openConn()
	if err != nil {
		return 0, err
	}
	return c.Write(p)
}

// Disconnect cancels a Connect in progress and closes the connection.
// It can be called any number of times, in any state.
func (s *Socket) Disconnect() {
	s.disconnected.Store(true)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	conn, transport := s.conn, s.transport
	s.conn, s.transport = nil, nil
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if transport != nil && transport != conn {
		transport.Close()
	}
}

func (s *Socket) Close() error {
	s.Disconnect()
	return nil
}

func (s *Socket) LocalAddr() net.Addr {
	c, err := s.openConn()
	if err != nil {
		return nil
	}
	return c.LocalAddr()
}

func (s *Socket) RemoteAddr() net.Addr {
	c, err := s.openConn()
	if err != nil {
		return nil
	}
	return c.RemoteAddr()
}

func (s *Socket) SetDeadline(t time.Time) error {
	c, err := s.openConn()
	if err != nil {
		return err
	}
	return c.SetDeadline(t)
}

func (s *Socket) SetReadDeadline(t time.Time) error {
	c, err := s.openConn()
	if err != nil {
		return err
	}
	return c.SetReadDeadline(t)
}

func (s *Socket) SetWriteDeadline(t time.Time) error {
	c, err := s.openConn()
	if err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (s *Socket) rawTransport() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, netLayer.ErrNotConnected
	}
	return s.transport, nil
}

// SetReceiveBufferSize sets SO_RCVBUF of the tcp connection under any proxy
// tunnel and tls.
func (s *Socket) SetReceiveBufferSize(size int) error {
	t, err := s.rawTransport()
	if err != nil {
		return err
	}
	return netLayer.SetRecvBuffer(t, size)
}

func (s *Socket) SetSendBufferSize(size int) error {
	t, err := s.rawTransport()
	if err != nil {
		return err
	}
	return netLayer.SetSendBuffer(t, size)
}
