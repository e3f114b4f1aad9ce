package netLayer

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/e1732a364fed/p2ptcp/utils"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		in   error
		want error
	}{
		{&net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}, ErrConnectionRefused},
		{&net.OpError{Op: "read", Err: &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET}}, ErrConnectionReset},
		{syscall.ECONNABORTED, ErrConnectionAborted},
		{syscall.EHOSTUNREACH, ErrAddressUnreachable},
		{&net.DNSError{Err: "no such host", Name: "x.invalid"}, ErrNameNotResolved},
		{context.DeadlineExceeded, ErrTimedOut},
		{context.Canceled, ErrAborted},
		{io.EOF, ErrConnectionClosed},
		{utils.ErrInErr{ErrDesc: "tunnel", ErrDetail: ErrTunnelConnectionFailed}, ErrTunnelConnectionFailed},
	}

	for i, c := range cases {
		got := Classify(c.in)
		if !errors.Is(got, c.want) {
			t.Logf("case %d: %v classified as %v", i, c.in, got)
			t.Fail()
		}
	}

	plain := errors.New("something else")
	if Classify(plain) != plain {
		t.FailNow()
	}
	if Classify(nil) != nil {
		t.FailNow()
	}
}

func TestIsRetryable(t *testing.T) {
	for _, e := range []error{ErrConnectionRefused, ErrConnectionReset, ErrConnectionAborted, ErrTimedOut,
		ErrTunnelConnectionFailed, ErrSocksConnectionFailed, ErrProxyConnectionFailed, ErrAddressUnreachable} {
		if !IsRetryable(e) {
			t.Log(e)
			t.Fail()
		}
	}
	for _, e := range []error{ErrProxyAuthRequested, ErrSocksHostUnreachable, ErrProtocolViolation, ErrAborted, errors.New("x")} {
		if IsRetryable(e) {
			t.Log(e)
			t.Fail()
		}
	}
	if !IsRetryable(Classify(syscall.ECONNREFUSED)) {
		t.Fail()
	}
}
