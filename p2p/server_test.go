package p2p

import (
	"context"
	"testing"
	"time"

	"github.com/e1732a364fed/p2ptcp/frameLayer"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/proxySocket"
	"github.com/e1732a364fed/p2ptcp/tlsLayer"
)

// echoDelegate answers every received frame with the same frame.
type echoDelegate struct {
	*recorder
	host *Host
}

func (d *echoDelegate) OnFrameReceived(from netLayer.Addr, frame []byte, at time.Time) {
	d.recorder.OnFrameReceived(from, frame, at)
	d.host.Send(from, frame, frameLayer.PacketOptions{})
}

func testServerRoundTrip(t *testing.T, tlsType tlsLayer.Type, upgrader tlsLayer.Upgrader) {
	serverRec := newRecorder()

	srv, err := NewServer(ServerConf{Addr: "127.0.0.1:0", Mode: ModeStunTCP, Tls: tlsType}, nil)
	if err != nil {
		t.Fatal(err)
	}
	var pending *echoDelegate
	srv.NewDelegate = func(remote netLayer.Addr) Delegate {
		pending = &echoDelegate{recorder: serverRec}
		return pending
	}
	srv.OnAccept = func(h *Host) {
		pending.host = h
	}
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	dest, err := netLayer.NewAddrFromNetAddr(srv.Addr())
	if err != nil {
		t.Fatal(err)
	}

	sock := proxySocket.New(proxySocket.Conf{Dest: dest, Upgrader: upgrader})
	rec := newRecorder()
	h := NewHost(sock, Conf{Remote: dest, Mode: ModeStunTCP}, rec)
	defer h.Close()
	h.Init()
	rec.expect(t, "created")
	serverRec.expect(t, "created")

	req := bindingRequest()
	h.Send(dest, req, frameLayer.PacketOptions{PacketID: 1})

	if e := serverRec.expect(t, "frame"); string(e.data) != string(req) {
		t.FailNow()
	}
	if e := sentAndEchoed(t, rec); string(e.data) != string(req) {
		t.FailNow()
	}

	channelData := frameLayer.NewChannelDataMessage(frameLayer.TurnChannelNumberMinimum, []byte("odd"))
	h.Send(dest, channelData, frameLayer.PacketOptions{PacketID: 2})
	if e := sentAndEchoed(t, rec); string(e.data) != string(channelData) {
		t.Log(e.data)
		t.FailNow()
	}
}

// sentAndEchoed waits for a send completion and a received frame, in any
// order, and returns the frame.
func sentAndEchoed(t *testing.T, rec *recorder) (frame event) {
	t.Helper()
	var sent bool
	for i := 0; i < 2; i++ {
		e := rec.next(t)
		switch e.kind {
		case "sent":
			sent = true
		case "frame":
			frame = e
		default:
			t.Fatalf("unexpected %s %v", e.kind, e.err)
		}
	}
	if !sent || frame.kind != "frame" {
		t.FailNow()
	}
	return
}

func TestServerPlain(t *testing.T) {
	testServerRoundTrip(t, tlsLayer.None, nil)
}

func TestServerFakeTls(t *testing.T) {
	testServerRoundTrip(t, tlsLayer.Fake, tlsLayer.FakeClient{})
}

func TestServerTls(t *testing.T) {
	client, err := tlsLayer.NewClient(tlsLayer.Conf{Type: tlsLayer.Tls, Host: "peer.test", Insecure: true})
	if err != nil {
		t.Fatal(err)
	}
	testServerRoundTrip(t, tlsLayer.Tls, client)
}

func TestServerFakeTlsRejectsPlain(t *testing.T) {
	srv, err := NewServer(ServerConf{Addr: "127.0.0.1:0", Mode: ModeTCP, Tls: tlsLayer.Fake}, func(netLayer.Addr) Delegate {
		return newRecorder()
	})
	if err != nil {
		t.Fatal(err)
	}
	accepted := make(chan struct{}, 1)
	srv.OnAccept = func(*Host) { accepted <- struct{}{} }
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	dest, _ := netLayer.NewAddrFromNetAddr(srv.Addr())
	c, err := dest.Dial(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	c.Write(make([]byte, len(tlsLayer.FakeClientHello)))

	select {
	case <-accepted:
		t.Fatal("plain conn should not become a host")
	case <-time.After(200 * time.Millisecond):
	}
}
