//go:build !linux

package netLayer

import (
	"syscall"

	"go.uber.org/zap"

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
	//NoDelay is go's default for tcp on every platform, so it's not touched here.
}

func setRecvBuf(fd uintptr, size int) error {
	return syscall.SetsockoptInt(sysFd(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, size)
}

func setSendBuf(fd uintptr, size int) error {
	return syscall.SetsockoptInt(sysFd(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, size)
}
