package netLayer

import (
	"context"
	"io"
	"net"
	"time"
)

// ReadWrapper reads from OptionalReader until RemainFirstBufLen bytes have
// come out of it, then from Conn.
//
// Used when a handshake parser buffered more than it consumed.
type ReadWrapper struct {
	net.Conn
	OptionalReader    io.Reader
	RemainFirstBufLen int
}

func (rw *ReadWrapper) Read(p []byte) (n int, err error) {

	if rw.RemainFirstBufLen > 0 {
		if len(p) > rw.RemainFirstBufLen {
			p = p[:rw.RemainFirstBufLen]
		}
		n, err := rw.OptionalReader.Read(p)
		if n > 0 {
			rw.RemainFirstBufLen -= n
		}
		return n, err
	} else {
		return rw.Conn.Read(p)
	}

}

func (rw *ReadWrapper) Upstream() net.Conn {
	return rw.Conn
}

// WatchContext makes blocking io on conn fail once ctx is done, by moving the
// deadline into the past. A deadline of ctx is applied to conn as well.
//
// The returned stop must be called when the io is over; it clears the deadline
// again, unless ctx was done.
func WatchContext(ctx context.Context, conn net.Conn) (stop func()) {
	if d, ok := ctx.Deadline(); ok {
		conn.SetDeadline(d)
	}
	quit := make(chan struct{})
	fired := make(chan bool, 1)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Unix(1, 0))
			fired <- true
		case <-quit:
			fired <- false
		}
	}()
	return func() {
		close(quit)
		if !<-fired {
			conn.SetDeadline(time.Time{})
		}
	}
}

// CtxErr prefers the context's error over err once ctx is done, because io
// errors after a WatchContext cancel are just timeouts.
func CtxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return Classify(ctx.Err())
	}
	return Classify(err)
}
