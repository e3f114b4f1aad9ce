package netLayer

import "syscall"

func sysFd(fd uintptr) syscall.Handle { return syscall.Handle(fd) }
