/*
Package tlsLayer upgrades a connected stream before the packet protocol runs on it.

Three flavours exist. Fake tls writes a fixed client hello and expects a fixed
server hello back, after which the bytes pass through untouched; it only makes
a plaintext stream look like tls to middleboxes that expect tls on port 443.
Tls uses crypto/tls, UTls uses refraction-networking/utls with a browser
fingerprint. Certificate checks are configured through Conf.
*/
package tlsLayer

import (
	"context"
	"net"
)

// Upgrader turns a connected raw stream into the stream the packets are sent on.
type Upgrader interface {
	Handshake(ctx context.Context, underlay net.Conn) (net.Conn, error)
}

// NewUpgrader selects the Upgrader for conf.Type. For None it returns nil, nil.
func NewUpgrader(conf Conf) (Upgrader, error) {
	switch conf.Type {
	case None:
		return nil, nil
	case Fake:
		return FakeClient{}, nil
	case Tls, UTls:
		c, err := NewClient(conf)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, ErrUnknownType
}
