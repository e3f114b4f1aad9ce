package proxy

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

// Candidate is one way to reach a destination: directly, or through one proxy server.
type Candidate struct {
	Scheme Scheme
	Addr   netLayer.Addr //empty for direct

	User, Pass string
}

var Direct = Candidate{Scheme: SchemeDirect}

// ParseCandidate accepts "direct", "direct://", or scheme://[user:pass@]host[:port]
// where scheme is one of http, https, socks4, socks4a, socks5, socks5h, quic.
func ParseCandidate(s string) (c Candidate, err error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "direct") || strings.EqualFold(s, "direct://") {
		return Direct, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return
	}
	c.Scheme = StrToScheme(u.Scheme)
	if c.Scheme == SchemeInvalid {
		err = utils.ErrInErr{ErrDesc: "unknown proxy scheme", ErrDetail: utils.ErrWrongParameter, Data: s}
		return
	}

	host := u.Hostname()
	if host == "" {
		err = utils.ErrInErr{ErrDesc: "proxy has no host", ErrDetail: netLayer.ErrInvalidHost, Data: s}
		return
	}
	port := c.Scheme.DefaultPort()
	if ps := u.Port(); ps != "" {
		port, err = strconv.Atoi(ps)
		if err != nil {
			return
		}
	}
	c.Addr, err = netLayer.NewAddrByHostPort(net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return
	}

	if u.User != nil {
		c.User = u.User.Username()
		c.Pass, _ = u.User.Password()
	}
	return
}

func (c Candidate) IsDirect() bool {
	return c.Scheme == SchemeDirect
}

func (c Candidate) HasAuth() bool {
	return c.User != ""
}

// String never contains the credentials.
func (c Candidate) String() string {
	if c.IsDirect() {
		return "direct://"
	}
	return c.Scheme.String() + "://" + c.Addr.String()
}

// Key identifies the proxy server in retry info.
func (c Candidate) Key() string {
	return c.String()
}
