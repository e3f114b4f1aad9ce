package netLayer

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/e1732a364fed/p2ptcp/utils"
)

// The connection error taxonomy. Every error leaving the dial/proxy/tls layers
// is, or wraps, one of these, so callers only ever need errors.Is .
var (
	ErrNotConnected           = errors.New("socket not connected")
	ErrConnectionClosed       = errors.New("connection closed")
	ErrConnectionRefused      = errors.New("connection refused")
	ErrConnectionReset        = errors.New("connection reset")
	ErrConnectionAborted      = errors.New("connection aborted")
	ErrTimedOut               = errors.New("timed out")
	ErrAddressUnreachable     = errors.New("address unreachable")
	ErrNameNotResolved        = errors.New("name not resolved")
	ErrTunnelConnectionFailed = errors.New("tunnel connection failed")
	ErrSocksConnectionFailed  = errors.New("socks connection failed")
	ErrSocksHostUnreachable   = errors.New("socks connection host unreachable")
	ErrProxyConnectionFailed  = errors.New("proxy connection failed")
	ErrProxyAuthRequested     = errors.New("proxy auth requested")
	ErrNoSupportedProxies     = errors.New("no supported proxies")
	ErrProtocolViolation      = errors.New("protocol violation")
	ErrAborted                = errors.New("aborted")
)

var taxonomy = []error{
	ErrNotConnected,
	ErrConnectionClosed,
	ErrConnectionRefused,
	ErrConnectionReset,
	ErrConnectionAborted,
	ErrTimedOut,
	ErrAddressUnreachable,
	ErrNameNotResolved,
	ErrTunnelConnectionFailed,
	ErrSocksConnectionFailed,
	ErrSocksHostUnreachable,
	ErrProxyConnectionFailed,
	ErrProxyAuthRequested,
	ErrNoSupportedProxies,
	ErrProtocolViolation,
	ErrAborted,
}

// Classify maps os and net errors onto the taxonomy. The original error is kept
// as Data of the returned ErrInErr. Errors already in the taxonomy are returned as is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range taxonomy {
		if errors.Is(err, e) {
			return err
		}
	}

	var mapped error

	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, context.Canceled):
		mapped = ErrAborted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		mapped = ErrTimedOut
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		mapped = ErrConnectionClosed
	case errors.Is(err, syscall.ECONNREFUSED):
		mapped = ErrConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		mapped = ErrConnectionReset
	case errors.Is(err, syscall.ECONNABORTED):
		mapped = ErrConnectionAborted
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		mapped = ErrAddressUnreachable
	case errors.Is(err, syscall.ETIMEDOUT):
		mapped = ErrTimedOut
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			mapped = ErrTimedOut
		} else {
			mapped = ErrNameNotResolved
		}
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			mapped = ErrTimedOut
		} else {
			return err
		}
	}

	return utils.ErrInErr{ErrDesc: mapped.Error(), ErrDetail: mapped, Data: err}
}

// IsRetryable reports whether err is grounds for trying the next proxy
// candidate, or a direct connection.
//
// ErrProxyAuthRequested and ErrSocksHostUnreachable are not in this set; the
// socket handles them itself.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrProxyConnectionFailed),
		errors.Is(err, ErrNameNotResolved),
		errors.Is(err, ErrAddressUnreachable),
		errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrConnectionReset),
		errors.Is(err, ErrConnectionRefused),
		errors.Is(err, ErrConnectionAborted),
		errors.Is(err, ErrTimedOut),
		errors.Is(err, ErrTunnelConnectionFailed),
		errors.Is(err, ErrSocksConnectionFailed):
		return true
	}
	return false
}
