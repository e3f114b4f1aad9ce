package p2p

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/e1732a364fed/p2ptcp/frameLayer"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"go.uber.org/atomic"
)

type event struct {
	kind string // created, frame, sent, error
	data []byte
	id   uint64
	err  error
}

type recorder struct {
	events chan event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 128)}
}

func (r *recorder) OnSocketCreated(local, remote net.Addr) {
	r.events <- event{kind: "created"}
}

func (r *recorder) OnFrameReceived(from netLayer.Addr, frame []byte, at time.Time) {
	r.events <- event{kind: "frame", data: frame}
}

func (r *recorder) OnSendComplete(m SendMetrics) {
	r.events <- event{kind: "sent", id: m.PacketID}
}

func (r *recorder) OnConnectionError(err error) {
	r.events <- event{kind: "error", err: err}
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
	}
	return event{}
}

func (r *recorder) expect(t *testing.T, kind string) event {
	t.Helper()
	e := r.next(t)
	if e.kind != kind {
		t.Fatalf("want %s, got %s %v", kind, e.kind, e.err)
	}
	return e
}

// quiet fails if any event arrives within d.
func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.events:
		t.Fatalf("unexpected event %s", e.kind)
	case <-time.After(d):
	}
}

var peerAddr = netLayer.Addr{Network: "tcp", Name: "peer.test", Port: 3478}

var txid = []byte("0123456789ab")

func bindingRequest() []byte {
	return frameLayer.NewStunMessage(frameLayer.StunBindingRequest, txid, nil)
}

func lengthPrefixed(p []byte) []byte {
	b := make([]byte, 2+len(p))
	binary.BigEndian.PutUint16(b, uint16(len(p)))
	copy(b[2:], p)
	return b
}

// startHost returns an open host over a pipe and the peer's end of it.
func startHost(t *testing.T, conf Conf) (*Host, *recorder, net.Conn) {
	c1, c2 := net.Pipe()
	conf.Remote = peerAddr
	rec := newRecorder()
	h := NewHost(WrapConn(c1, nil), conf, rec)
	h.Init()
	rec.expect(t, "created")
	t.Cleanup(func() {
		h.Close()
		c2.Close()
	})
	return h, rec, c2
}

func TestHostReceiveSplitFrames(t *testing.T) {
	_, rec, peer := startHost(t, Conf{Mode: ModeTCP})

	stun := lengthPrefixed(bindingRequest())
	data := lengthPrefixed([]byte("after binding"))

	go func() {
		peer.Write(stun[:1])
		time.Sleep(10 * time.Millisecond)
		peer.Write(stun[1:2])
		time.Sleep(10 * time.Millisecond)
		peer.Write(stun[2:])
		peer.Write(data)
	}()

	e := rec.expect(t, "frame")
	if string(e.data) != string(bindingRequest()) {
		t.FailNow()
	}
	e = rec.expect(t, "frame")
	if string(e.data) != "after binding" {
		t.Log(string(e.data))
		t.FailNow()
	}
}

func TestHostDataBeforeStun(t *testing.T) {
	_, rec, peer := startHost(t, Conf{Mode: ModeTCP})

	go peer.Write(lengthPrefixed([]byte("no stun first")))

	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
	rec.quiet(t, 100*time.Millisecond)
}

func TestHostDataIndicationBeforeStun(t *testing.T) {
	_, rec, peer := startHost(t, Conf{Mode: ModeStunTCP})

	go peer.Write(frameLayer.NewStunMessage(frameLayer.StunDataIndication, txid, []byte{1, 2, 3, 4}))

	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

func TestHostSendBeforeStun(t *testing.T) {
	h, rec, _ := startHost(t, Conf{Mode: ModeTCP})
	h.Send(peerAddr, []byte("data"), frameLayer.PacketOptions{PacketID: 1})
	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

func TestHostOwnBindingKeepsGateClosed(t *testing.T) {
	h, rec, peer := startHost(t, Conf{Mode: ModeTCP})

	req := lengthPrefixed(bindingRequest())
	h.Send(peerAddr, bindingRequest(), frameLayer.PacketOptions{PacketID: 1})
	if _, err := io.ReadFull(peer, make([]byte, len(req))); err != nil {
		t.Fatal(err)
	}
	rec.expect(t, "sent")

	go peer.Write(lengthPrefixed([]byte("data before any stun from peer")))

	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

func TestHostSendDataAfterOwnBinding(t *testing.T) {
	h, rec, peer := startHost(t, Conf{Mode: ModeTCP})
	go io.Copy(io.Discard, peer)

	h.Send(peerAddr, bindingRequest(), frameLayer.PacketOptions{PacketID: 1})
	rec.expect(t, "sent")
	h.Send(peerAddr, []byte("data"), frameLayer.PacketOptions{PacketID: 2})

	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

// zeroReader reads nothing and reports no error.
type zeroReader struct {
	StreamSocket
	reads *atomic.Int64
}

func (z zeroReader) Read(p []byte) (int, error) {
	z.reads.Inc()
	return 0, nil
}

func TestHostZeroRead(t *testing.T) {
	c1, peer := net.Pipe()
	defer peer.Close()
	reads := atomic.NewInt64(0)
	rec := newRecorder()
	h := NewHost(zeroReader{StreamSocket: WrapConn(c1, nil), reads: reads}, Conf{Remote: peerAddr}, rec)
	defer h.Close()
	h.Init()
	rec.expect(t, "created")

	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrConnectionClosed) {
		t.Log(e.err)
		t.FailNow()
	}
	if n := reads.Load(); n != 1 {
		t.Log("read called", n, "times")
		t.FailNow()
	}
}

// asyncSocket posts its connect result itself.
type asyncSocket struct {
	StreamSocket
	used *atomic.Bool
}

func (a asyncSocket) ConnectAsync(loop *netLayer.Loop, cb func(error)) {
	a.used.Store(true)
	go loop.Post(func() { cb(nil) })
}

func TestHostInitUsesConnectAsync(t *testing.T) {
	c1, peer := net.Pipe()
	defer peer.Close()
	used := atomic.NewBool(false)
	rec := newRecorder()
	h := NewHost(asyncSocket{StreamSocket: WrapConn(c1, nil), used: used}, Conf{Remote: peerAddr}, rec)
	defer h.Close()
	h.Init()
	rec.expect(t, "created")
	if !used.Load() {
		t.FailNow()
	}
}

func TestHostSendWrongDestination(t *testing.T) {
	h, rec, _ := startHost(t, Conf{Mode: ModeTCP})
	other := netLayer.Addr{Name: "other.test", Port: 3478}
	h.Send(other, bindingRequest(), frameLayer.PacketOptions{PacketID: 1})
	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

// shortWriter writes at most max bytes per call.
type shortWriter struct {
	StreamSocket
	max int
}

func (s shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.max {
		p = p[:s.max]
	}
	return s.StreamSocket.Write(p)
}

func TestWriteQueueFIFO(t *testing.T) {
	c1, peer := net.Pipe()
	defer peer.Close()
	rec := newRecorder()
	h := NewHost(shortWriter{StreamSocket: WrapConn(c1, nil), max: 3}, Conf{Remote: peerAddr, Mode: ModeTCP}, rec)
	defer h.Close()
	h.Init()
	rec.expect(t, "created")

	// the peer's binding request lets data frames through.
	go peer.Write(lengthPrefixed(bindingRequest()))
	rec.expect(t, "frame")

	payloads := [][]byte{bindingRequest(), []byte("frame B"), []byte("frame C, a bit longer")}
	for i, p := range payloads {
		h.Send(peerAddr, p, frameLayer.PacketOptions{PacketID: uint64(i + 1)})
	}

	// nothing is read yet, so B and C queue behind A.
	time.Sleep(50 * time.Millisecond)

	var want []byte
	for _, p := range payloads {
		want = append(want, lengthPrefixed(p)...)
	}
	got := make([]byte, len(want))
	readDone := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(peer, got)
		readDone <- err
	}()

	for i := range payloads {
		e := rec.expect(t, "sent")
		if e.id != uint64(i+1) {
			t.Log("completion out of order", e.id)
			t.FailNow()
		}
	}
	if err := <-readDone; err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Log("wire bytes out of order")
		t.FailNow()
	}
	if h.QueuedBytes() != 0 {
		t.Log(h.QueuedBytes())
		t.FailNow()
	}
}

func TestSingleErrorNotification(t *testing.T) {
	h, rec, peer := startHost(t, Conf{Mode: ModeTCP})

	// the peer never reads, so this write stays in flight.
	h.Send(peerAddr, bindingRequest(), frameLayer.PacketOptions{PacketID: 1})
	time.Sleep(20 * time.Millisecond)

	peer.Close()

	rec.expect(t, "error")
	rec.quiet(t, 200*time.Millisecond)

	h.Send(peerAddr, bindingRequest(), frameLayer.PacketOptions{PacketID: 2})
	rec.quiet(t, 50*time.Millisecond)
}

func TestHostMaxQueuedBytes(t *testing.T) {
	loop := netLayer.NewLoop()
	defer loop.Stop()

	stun := bindingRequest()
	frameSize := int64(len(lengthPrefixed(stun)))

	h, rec, _ := startHost(t, Conf{Mode: ModeTCP, MaxQueuedBytes: 2 * frameSize, Loop: loop})
	for i := 1; i <= 3; i++ {
		h.Send(peerAddr, stun, frameLayer.PacketOptions{PacketID: uint64(i)})
	}

	flushed := make(chan struct{})
	loop.Post(func() { close(flushed) })
	<-flushed

	if h.QueuedBytes() != 2*frameSize {
		t.Log(h.QueuedBytes())
		t.FailNow()
	}
	rec.quiet(t, 50*time.Millisecond)
}

func TestStunTcpMode(t *testing.T) {
	h, rec, peer := startHost(t, Conf{Mode: ModeStunTCP})

	channelData := frameLayer.NewChannelDataMessage(frameLayer.TurnChannelNumberMinimum, []byte("12345"))
	go func() {
		peer.Write(bindingRequest())
		peer.Write(channelData)
		peer.Write([]byte{0, 0, 0}) // pad to 12
	}()

	rec.expect(t, "frame")
	e := rec.expect(t, "frame")
	if string(e.data) != string(channelData) {
		t.Log(e.data)
		t.FailNow()
	}

	h.Send(peerAddr, channelData, frameLayer.PacketOptions{PacketID: 7})
	wire := make([]byte, 12)
	if _, err := io.ReadFull(peer, wire); err != nil {
		t.Fatal(err)
	}
	if string(wire[:9]) != string(channelData) || wire[9] != 0 || wire[10] != 0 || wire[11] != 0 {
		t.Log(wire)
		t.FailNow()
	}
	if e := rec.expect(t, "sent"); e.id != 7 {
		t.FailNow()
	}

	// declared length not matching the payload
	bad := append([]byte(nil), channelData...)
	bad = bad[:len(bad)-1]
	h.Send(peerAddr, bad, frameLayer.PacketOptions{PacketID: 8})
	e = rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrProtocolViolation) {
		t.Log(e.err)
		t.FailNow()
	}
}

func TestSetOption(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	go func() {
		c, err := l.Accept()
		if err == nil {
			io.Copy(io.Discard, c)
		}
	}()
	c, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	h := NewHost(WrapConn(c, nil), Conf{Remote: peerAddr}, rec)
	defer h.Close()
	h.Init()
	rec.expect(t, "created")

	if !h.SetOption(OptionRecvBuf, 64*1024) || !h.SetOption(OptionSendBuf, 64*1024) {
		t.FailNow()
	}
	if h.SetOption(OptionDSCP, 46) {
		t.FailNow()
	}
}

func TestConnectFailure(t *testing.T) {
	rec := newRecorder()
	h := NewHost(failingSocket{}, Conf{Remote: peerAddr}, rec)
	defer h.Close()
	h.Init()
	e := rec.expect(t, "error")
	if !errors.Is(e.err, netLayer.ErrConnectionRefused) {
		t.Log(e.err)
		t.FailNow()
	}
}

type failingSocket struct {
	StreamSocket
}

func (failingSocket) Connect(context.Context) error {
	return netLayer.ErrConnectionRefused
}

func (failingSocket) Close() error { return nil }
