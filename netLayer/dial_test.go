package netLayer

import (
	"context"
	"errors"
	"net"
	"testing"
)

func TestDirectDialerSockopt(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	go func() {
		c, err := listener.Accept()
		if err == nil {
			c.Close()
		}
	}()

	dd := &DirectDialer{Sockopt: &Sockopt{RecvBuf: 64 * 1024, SendBuf: 64 * 1024, NoDelay: true}}
	conn, err := dd.DialContext(context.Background(), "tcp", listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if err := SetRecvBuffer(conn, 32*1024); err != nil {
		t.Log(err)
		t.FailNow()
	}
	if err := SetSendBuffer(conn, 32*1024); err != nil {
		t.Log(err)
		t.FailNow()
	}
}

func TestDirectDialerRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()

	var dd DirectDialer
	_, err = dd.DialContext(context.Background(), "tcp", addr)
	if !errors.Is(err, ErrConnectionRefused) {
		t.Log(err)
		t.FailNow()
	}
	if !IsRetryable(err) {
		t.FailNow()
	}
}

func TestSetBufferNoRawConn(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	if !errors.Is(SetRecvBuffer(c1, 1024), ErrNoRawConn) {
		t.FailNow()
	}
}
