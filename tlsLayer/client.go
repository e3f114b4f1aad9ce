package tlsLayer

import (
	"context"
	"crypto/tls"
	"net"
	"strings"

	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

// Client does a real tls client handshake, with crypto/tls or with utls.
type Client struct {
	tlsConfig  *tls.Config
	uTlsConfig utls.Config
	tlsType    Type

	utlsFingerprint utls.ClientHelloID
}

func NewClient(conf Conf) (*Client, error) {

	c := &Client{
		tlsType: conf.Type,
	}

	tc, err := GetTlsConfig(conf)
	if err != nil {
		return nil, err
	}

	switch conf.Type {
	case UTls:
		c.uTlsConfig = utls.Config{
			InsecureSkipVerify:    tc.InsecureSkipVerify,
			ServerName:            tc.ServerName,
			NextProtos:            tc.NextProtos,
			RootCAs:               tc.RootCAs,
			VerifyPeerCertificate: tc.VerifyPeerCertificate,
		}
		c.utlsFingerprint = fingerprintByName(conf.UtlsFingerprint)

		if ce := utils.CanLogInfo("Using uTls for"); ce != nil {
			ce.Write(zap.String("host", conf.Host), zap.String("fingerprint", c.utlsFingerprint.Str()))
		}
	case Tls:
		c.tlsConfig = tc
	default:
		return nil, ErrUnknownType
	}

	return c, nil
}

func fingerprintByName(name string) utls.ClientHelloID {
	switch strings.ToLower(name) {
	case "firefox":
		return utls.HelloFirefox_Auto
	case "ios":
		return utls.HelloIOS_Auto
	case "safari":
		return utls.HelloSafari_Auto
	case "golang":
		return utls.HelloGolang
	case "android":
		return utls.HelloAndroid_11_OkHttp
	case "360":
		return utls.Hello360_Auto
	case "edge":
		return utls.HelloEdge_Auto
	case "random":
		return utls.HelloRandomized
	}
	return utls.HelloChrome_Auto
}

func (c *Client) Type() Type {
	return c.tlsType
}

// Handshake returns a *Conn. Any failure is terminal for the attempt.
func (c *Client) Handshake(ctx context.Context, underlay net.Conn) (result net.Conn, err error) {
	stop := netLayer.WatchContext(ctx, underlay)
	defer stop()

	switch c.tlsType {
	case UTls:
		configCopy := c.uTlsConfig //the config gets polluted by one handshake, so each one uses a copy

		utlsConn := utls.UClient(underlay, &configCopy, c.utlsFingerprint)
		err = utlsConn.Handshake()
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "utls handshake failed", ErrDetail: netLayer.CtxErr(ctx, err)}
		}
		result = &Conn{
			Conn:     utlsConn,
			underlay: underlay,
			tlsType:  UTls,
		}
	case Tls:
		officialConn := tls.Client(underlay, c.tlsConfig)
		err = officialConn.Handshake()
		if err != nil {
			return nil, utils.ErrInErr{ErrDesc: "tls handshake failed", ErrDetail: netLayer.CtxErr(ctx, err)}
		}

		result = &Conn{
			Conn:     officialConn,
			underlay: underlay,
			tlsType:  Tls,
		}
	}

	return
}
