package proxy

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/zap"
)

const DefaultUserAgent = "p2ptcp"

// ProxyAuthError is what an http(s) proxy answering 407 gives.
// It wraps netLayer.ErrProxyAuthRequested.
type ProxyAuthError struct {
	SentAuth  bool   // whether our request carried credentials
	Challenge string // Proxy-Authenticate header
}

func (e *ProxyAuthError) Error() string {
	return "proxy auth requested, challenge: " + e.Challenge + ", sent auth: " + strconv.FormatBool(e.SentAuth)
}

func (e *ProxyAuthError) Unwrap() error {
	return netLayer.ErrProxyAuthRequested
}

// isCanceled is true for errors caused by the deadline or cancel of the
// attempt, as opposed to the peer's behavior.
func isCanceled(err error) bool {
	return errors.Is(err, netLayer.ErrTimedOut) || errors.Is(err, netLayer.ErrAborted)
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

// httpConnect asks an http proxy over conn to open a tunnel to dest.
func httpConnect(ctx context.Context, conn net.Conn, cand Candidate, dest netLayer.Addr, sendAuth bool, ua string) (net.Conn, error) {
	stop := netLayer.WatchContext(ctx, conn)
	defer stop()

	target := dest.String()
	if ua == "" {
		ua = DefaultUserAgent
	}
	req := &http.Request{
		Method:     http.MethodConnect,
		URL:        &url.URL{Opaque: target},
		Host:       target,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     make(http.Header),
	}
	req.Header.Set("Proxy-Connection", "keep-alive")
	req.Header.Set("User-Agent", ua)
	if sendAuth && cand.HasAuth() {
		req.Header.Set("Proxy-Authorization", basicAuth(cand.User, cand.Pass))
	}

	if err := req.Write(conn); err != nil {
		return nil, netLayer.CtxErr(ctx, err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		if err = netLayer.CtxErr(ctx, err); isCanceled(err) {
			return nil, err
		}
		return nil, utils.ErrInErr{ErrDesc: "bad CONNECT response", ErrDetail: netLayer.ErrTunnelConnectionFailed, Data: err}
	}

	if ce := utils.CanLogDebug("CONNECT response"); ce != nil {
		ce.Write(zap.String("proxy", cand.String()), zap.Int("status", resp.StatusCode))
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusProxyAuthRequired:
		return nil, &ProxyAuthError{
			SentAuth:  sendAuth && cand.HasAuth(),
			Challenge: resp.Header.Get("Proxy-Authenticate"),
		}
	default:
		return nil, utils.ErrInErr{ErrDesc: "CONNECT refused", ErrDetail: netLayer.ErrTunnelConnectionFailed, Data: resp.Status}
	}

	if n := br.Buffered(); n > 0 {
		return &netLayer.ReadWrapper{
			Conn:              conn,
			OptionalReader:    br,
			RemainFirstBufLen: n,
		}, nil
	}
	return conn, nil
}
