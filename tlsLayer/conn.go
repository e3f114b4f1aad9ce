package tlsLayer

import (
	"net"
)

// Conn is a stream after a real tls handshake. It remembers the conn under the
// tls session, see Upstream.
type Conn struct {
	net.Conn
	underlay net.Conn
	tlsType  Type
}

func (c *Conn) Upstream() net.Conn {
	return c.underlay
}

func (c *Conn) TlsType() Type {
	return c.tlsType
}
