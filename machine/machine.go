/*
Package machine builds the whole network stack from one StandardConf and
hands out sockets and p2p hosts that share it.

Nothing is global: the proxy retry info, the tls config and the dialer all
live in an M, and go away with it.
*/
package machine

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/p2p"
	"github.com/e1732a364fed/p2ptcp/proxy"
	"github.com/e1732a364fed/p2ptcp/proxySocket"
	"github.com/e1732a364fed/p2ptcp/tlsLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

type M struct {
	Resolver  *proxy.Resolver
	Connector *proxy.Connector
	Upgrader  tlsLayer.Upgrader //nil means no tls

	Mode           p2p.Mode
	MaxQueuedBytes int64

	conf StandardConf

	sync.Mutex
	callbacks
	servers []*p2p.Server
}

func New(conf StandardConf) (*M, error) {
	m := &M{conf: conf}

	pc := conf.Proxy
	if pc == nil {
		pc = &ProxyConf{}
	}
	service, err := pc.service()
	if err != nil {
		return nil, err
	}
	m.Resolver = proxy.NewResolver(service)
	if pc.BadProxyRetrySeconds > 0 {
		m.Resolver.BadProxyRetry = time.Duration(pc.BadProxyRetrySeconds) * time.Second
	}

	dd := &netLayer.DirectDialer{Timeout: conf.Dial.timeout()}
	if conf.Dial != nil {
		sockopt := conf.Dial.Sockopt
		dd.Sockopt = &sockopt
	}
	m.Connector = &proxy.Connector{
		Dialer:    dd,
		ProxyTls:  tlsLayer.Conf{CA: pc.CA, Insecure: pc.Insecure},
		UserAgent: pc.UserAgent,
	}

	if tc := conf.Tls; tc != nil {
		t, err := tlsLayer.StrToType(tc.Type)
		if err != nil {
			return nil, err
		}
		m.Upgrader, err = tlsLayer.NewUpgrader(tlsLayer.Conf{
			Type:            t,
			Host:            tc.Host,
			CA:              tc.CA,
			Insecure:        tc.Insecure,
			Pins:            tc.Pins,
			Alpn:            tc.Alpn,
			UtlsFingerprint: tc.UtlsFingerprint,
		})
		if err != nil {
			return nil, err
		}
	}

	if c := conf.P2P; c != nil {
		mode, err := p2p.StrToMode(c.Mode)
		if err != nil {
			return nil, err
		}
		m.Mode = mode
		m.MaxQueuedBytes = c.MaxQueuedBytes
	}
	return m, nil
}

// NewFromFile loads the toml file, applies its app conf and builds an M.
func NewFromFile(fileNamePath string) (*M, error) {
	conf, err := LoadTomlConfFile(fileNamePath)
	if err != nil {
		return nil, err
	}
	conf.App.Setup()
	return New(conf)
}

// NewSocket gives an unconnected socket to dest using the machine's proxies and tls.
func (m *M) NewSocket(dest netLayer.Addr) *proxySocket.Socket {
	return proxySocket.New(proxySocket.Conf{
		Dest:      dest,
		Resolver:  m.Resolver,
		Connector: m.Connector,
		Upgrader:  m.Upgrader,
	})
}

// NewHost gives a p2p host to dest in the machine's mode. Call Init on it to connect.
func (m *M) NewHost(dest netLayer.Addr, d p2p.Delegate) *p2p.Host {
	return p2p.NewHost(m.NewSocket(dest), p2p.Conf{
		Remote:         dest,
		Mode:           m.Mode,
		MaxQueuedBytes: m.MaxQueuedBytes,
	}, d)
}

func (m *M) newBackoff() *backoff.Backoff {
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: true,
	}
	if rc := m.conf.Retry; rc != nil {
		if rc.MinMs > 0 {
			b.Min = time.Duration(rc.MinMs) * time.Millisecond
		}
		if rc.MaxMs > 0 {
			b.Max = time.Duration(rc.MaxMs) * time.Millisecond
		}
	}
	return b
}

func (m *M) maxAttempts() int {
	if rc := m.conf.Retry; rc != nil && rc.MaxAttempts > 0 {
		return rc.MaxAttempts
	}
	return 1
}

// DialWithRetry connects a new socket to dest, starting over with a fresh
// socket after a retryable failure, with jittered exponential backoff in between.
func (m *M) DialWithRetry(ctx context.Context, dest netLayer.Addr) (*proxySocket.Socket, error) {
	b := m.newBackoff()
	limit := m.maxAttempts()

	for attempt := 1; ; attempt++ {
		s := m.NewSocket(dest)
		err := s.Connect(ctx)
		via, _ := s.UsedCandidate()
		m.callDialCallbacks(dest, via, err)
		if err == nil {
			return s, nil
		}
		if attempt >= limit || !netLayer.IsRetryable(err) {
			return nil, err
		}

		d := b.Duration()
		if ce := utils.CanLogInfo("dial failed, will retry"); ce != nil {
			ce.Write(zap.String("dest", dest.String()), zap.Int("attempt", attempt), zap.Duration("after", d), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, netLayer.Classify(ctx.Err())
		case <-time.After(d):
		}
	}
}

// CanListen reports whether the conf has a listen section.
func (m *M) CanListen() bool { return m.conf.Listen != nil }

// Listen starts a p2p server per the listen conf. onAccept may be nil.
func (m *M) Listen(newDelegate func(remote netLayer.Addr) p2p.Delegate, onAccept func(h *p2p.Host)) (*p2p.Server, error) {
	lc := m.conf.Listen
	if lc == nil {
		return nil, utils.ErrInErr{ErrDesc: "no listen conf", ErrDetail: utils.ErrNilParameter}
	}
	t, err := tlsLayer.StrToType(lc.Tls)
	if err != nil {
		return nil, err
	}
	sc := p2p.ServerConf{
		Addr:           lc.Addr,
		Mode:           m.Mode,
		Tls:            t,
		TlsHost:        lc.Host,
		MaxQueuedBytes: m.MaxQueuedBytes,
		ProxyProtocol:  lc.ProxyProtocol,
	}
	if lc.Cert != "" {
		sc.CertConf = &tlsLayer.CertConf{CertFile: lc.Cert, KeyFile: lc.Key}
	}
	if dc := m.conf.Dial; dc != nil {
		sockopt := dc.Sockopt
		sc.Sockopt = &sockopt
	}

	s, err := p2p.NewServer(sc, newDelegate)
	if err != nil {
		return nil, err
	}
	s.OnAccept = onAccept
	if err = s.Start(); err != nil {
		return nil, err
	}
	m.Lock()
	m.servers = append(m.servers, s)
	m.Unlock()
	return s, nil
}

// Stop closes every server started by Listen.
func (m *M) Stop() {
	m.Lock()
	defer m.Unlock()
	for _, s := range m.servers {
		s.Close()
	}
	m.servers = nil
}

func (m *M) PrintAllState(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintln(w, "mode", m.Mode)
	if m.Upgrader != nil {
		fmt.Fprintf(w, "tls %T\n", m.Upgrader)
	}
	m.Lock()
	defer m.Unlock()
	for i, s := range m.servers {
		fmt.Fprintln(w, "listening", i, s.Addr())
	}
}
