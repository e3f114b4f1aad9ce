package netLayer

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/e1732a364fed/p2ptcp/utils"
	"github.com/pires/go-proxyproto"
	"go.uber.org/zap"
)

// LoopAccept accepts until the listener is closed, calling acceptFunc for
// every conn on a new goroutine.
func LoopAccept(listener net.Listener, acceptFunc func(net.Conn)) {
	for {
		newc, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				if ce := utils.CanLogDebug("listener closed"); ce != nil {
					ce.Write(zap.Error(err))
				}
				break
			}
			errStr := err.Error()
			if ce := utils.CanLogWarn("failed to accept connection"); ce != nil {
				ce.Write(zap.Error(err))
			}
			if strings.Contains(errStr, "too many") {
				if ce := utils.CanLogWarn("Too many incoming conn! Will Sleep."); ce != nil {
					ce.Write(zap.String("err", errStr))
				}
				time.Sleep(time.Millisecond * 500)
			}
			continue
		}
		go acceptFunc(newc)
	}
}

// limit for reading the PROXY protocol header of an accepted conn
var ProxyProtocolHeaderTimeout = 10 * time.Second

// ListenAndAccept listens on tcp and accepts in its own goroutine.
// Close the returned listener to stop.
//
// With proxyProtocol, every conn must begin with a PROXY protocol v1 or v2
// header, and its RemoteAddr is the client given there.
func ListenAndAccept(addr string, sockopt *Sockopt, proxyProtocol bool, acceptFunc func(net.Conn)) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, Classify(err)
	}
	if proxyProtocol {
		listener = &proxyproto.Listener{
			Listener: listener,
			Policy: func(upstream net.Addr) (proxyproto.Policy, error) {
				return proxyproto.REQUIRE, nil
			},
		}
		inner := acceptFunc
		acceptFunc = func(c net.Conn) {
			//the header is read on first use
			c.SetReadDeadline(time.Now().Add(ProxyProtocolHeaderTimeout))
			c.RemoteAddr()
			c.SetReadDeadline(time.Time{})
			inner(c)
		}
	}
	if sockopt != nil {
		inner := acceptFunc
		acceptFunc = func(c net.Conn) {
			if sockopt.RecvBuf > 0 {
				SetRecvBuffer(c, sockopt.RecvBuf)
			}
			if sockopt.SendBuf > 0 {
				SetSendBuffer(c, sockopt.SendBuf)
			}
			inner(c)
		}
	}
	go LoopAccept(listener, acceptFunc)
	return listener, nil
}
