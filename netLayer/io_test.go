package netLayer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestReadWrapper(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	rw := &ReadWrapper{Conn: c1, OptionalReader: bytes.NewReader([]byte("abcdef")), RemainFirstBufLen: 3}

	go c2.Write([]byte("xyz"))

	buf := make([]byte, 6)
	n, err := io.ReadFull(rw, buf)
	if err != nil || n != 6 || string(buf) != "abcxyz" {
		t.Log(n, err, string(buf))
		t.FailNow()
	}
}

func TestWatchContextCancel(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stop := WatchContext(ctx, c1)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := c1.Read(make([]byte, 1))
	stop()
	if err == nil {
		t.FailNow()
	}
	if !errors.Is(CtxErr(ctx, err), ErrAborted) {
		t.Log(CtxErr(ctx, err))
		t.FailNow()
	}
}

func TestWatchContextStopClearsDeadline(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	stop := WatchContext(ctx, c1)
	stop()

	go c2.Write([]byte{1})
	if _, err := c1.Read(make([]byte, 1)); err != nil {
		t.Log(err)
		t.FailNow()
	}
}
