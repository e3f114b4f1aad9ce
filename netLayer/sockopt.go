package netLayer

import (
	"errors"
	"net"
	"syscall"
)

var ErrNoRawConn = errors.New("conn does not expose a raw fd")

// Sockopt is applied to every raw tcp socket the DirectDialer creates.
// Zero values mean "leave the system default".
type Sockopt struct {
	RecvBuf int  `toml:"rcvbuf"`
	SendBuf int  `toml:"sndbuf"`
	NoDelay bool `toml:"nodelay"`
}

// SetRecvBuffer sets SO_RCVBUF on the socket under conn.
func SetRecvBuffer(conn net.Conn, size int) error {
	return controlConn(conn, func(fd uintptr) error {
		return setRecvBuf(fd, size)
	})
}

// SetSendBuffer sets SO_SNDBUF on the socket under conn.
func SetSendBuffer(conn net.Conn, size int) error {
	return controlConn(conn, func(fd uintptr) error {
		return setSendBuf(fd, size)
	})
}

func controlConn(conn net.Conn, f func(fd uintptr) error) error {
	//like the conns of a PROXY protocol listener
	if r, ok := conn.(interface{ Raw() net.Conn }); ok {
		conn = r.Raw()
	}
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return ErrNoRawConn
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return err
	}
	var ferr error
	err = rc.Control(func(fd uintptr) {
		ferr = f(fd)
	})
	if err != nil {
		return err
	}
	return ferr
}
