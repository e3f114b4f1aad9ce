//go:build !linux && !windows

package netLayer

func sysFd(fd uintptr) int { return int(fd) }
