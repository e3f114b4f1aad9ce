package proxy

import (
	"context"
	"net/url"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpproxy"
)

// EnvService takes the proxy from HTTPS_PROXY, HTTP_PROXY and NO_PROXY.
// A socks5:// value in those variables is honored as well.
type EnvService struct {
	proxyFunc func(*url.URL) (*url.URL, error)
}

// NewEnvService reads the environment once. conf may be nil.
func NewEnvService(conf *httpproxy.Config) *EnvService {
	if conf == nil {
		conf = httpproxy.FromEnvironment()
	}
	return &EnvService{proxyFunc: conf.ProxyFunc()}
}

func (es *EnvService) ResolveProxies(_ context.Context, dest netLayer.Addr) (*List, error) {
	// p2p over tcp is tunneled, so we ask as if it were https.
	pu, err := es.proxyFunc(&url.URL{Scheme: "https", Host: dest.String()})
	if err != nil {
		return nil, err
	}
	if pu == nil {
		return NewList(Direct), nil
	}
	c, err := ParseCandidate(pu.String())
	if err != nil {
		return nil, err
	}
	if ce := utils.CanLogDebug("proxy from env"); ce != nil {
		ce.Write(zap.String("dest", dest.String()), zap.String("proxy", c.String()))
	}
	return NewList(c), nil
}
