package tlsLayer

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

// Server does the accepting side of a real tls handshake.
type Server struct {
	tlsConfig *tls.Config
}

// If certConf gives no cert or key file, a self signed cert for host is generated.
func NewServer(host string, certConf *CertConf, alpnList []string) (*Server, error) {
	var certFile, keyFile string
	if certConf != nil {
		certFile, keyFile = certConf.CertFile, certConf.KeyFile
	}
	certArray, err := LoadOrGenerateCert(certFile, keyFile, host)
	if err != nil {
		return nil, err
	}

	s := &Server{
		tlsConfig: &tls.Config{
			Certificates: certArray,
			ServerName:   host,
			NextProtos:   alpnList,
			MinVersion:   tls.VersionTLS12,
		},
	}

	return s, nil
}

func (s *Server) Handshake(ctx context.Context, underlay net.Conn) (net.Conn, error) {
	stop := netLayer.WatchContext(ctx, underlay)
	defer stop()

	rawTlsConn := tls.Server(underlay, s.tlsConfig)
	err := rawTlsConn.Handshake()
	if err != nil {
		return nil, utils.ErrInErr{ErrDesc: "Failed in Tls handshake", ErrDetail: netLayer.CtxErr(ctx, err)}
	}

	return &Conn{
		Conn:     rawTlsConn,
		underlay: underlay,
		tlsType:  Tls,
	}, nil
}
