package netLayer

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/e1732a364fed/p2ptcp/utils"
)

func SetSockOpt(fd int, sockopt *Sockopt) {
	if sockopt == nil {
		return
	}

	if sockopt.RecvBuf > 0 {
		if err := setRecvBuf(uintptr(fd), sockopt.RecvBuf); err != nil {
			if ce := utils.CanLogErr("set SO_RCVBUF failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
		}
	}

	if sockopt.SendBuf > 0 {
		if err := setSendBuf(uintptr(fd), sockopt.SendBuf); err != nil {
			if ce := utils.CanLogErr("set SO_SNDBUF failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
		}
	}

	if sockopt.NoDelay {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			if ce := utils.CanLogErr("set TCP_NODELAY failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
		}
	}
}

func setRecvBuf(fd uintptr, size int) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}

func setSendBuf(fd uintptr, size int) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, size)
}
