package tlsLayer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"go.uber.org/zap"

	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

var (
	ErrFakeServerHelloMismatch = errors.New("fake tls: unexpected server hello")
	ErrFakeClientHelloMismatch = errors.New("fake tls: unexpected client hello")
)

const (
	recordTypeHandshake = 22

	handshakeTypeClientHello     = 1
	handshakeTypeServerHello     = 2
	handshakeTypeServerHelloDone = 14
)

// FakeClientHello and FakeServerHello are what goes over the wire in a fake tls
// handshake. They are shaped like a tls 1.0 hello exchange but are constant,
// no key is ever agreed on.
var (
	FakeClientHello = buildFakeClientHello()
	FakeServerHello = buildFakeServerHello()
)

var fakeClientRandom = [32]byte{
	0x4f, 0x52, 0x8d, 0x1e, 0x2b, 0x77, 0x39, 0xc6, 0x05, 0x9a, 0xe1, 0x63, 0x5b, 0xd4, 0x10, 0x88,
	0xc2, 0x3f, 0x6e, 0x94, 0x0d, 0xb1, 0x7a, 0x26, 0xe8, 0x51, 0x9c, 0x03, 0xf7, 0x4a, 0xbe, 0x12,
}

var fakeServerRandom = [32]byte{
	0x42, 0x85, 0x45, 0xa7, 0x27, 0xa9, 0x5d, 0xa0, 0xb3, 0xc5, 0xe7, 0x53, 0xda, 0x40, 0x4f, 0xd3,
	0x16, 0x6c, 0x2f, 0x0b, 0x91, 0x3e, 0xc8, 0x74, 0x5a, 0x09, 0xe2, 0x37, 0xad, 0x60, 0x1b, 0xf5,
}

var fakeSessionID = [32]byte{
	0x7d, 0x16, 0xc3, 0x58, 0x0a, 0xe5, 0x93, 0x2c, 0xb8, 0x41, 0x6f, 0xd2, 0x1d, 0x87, 0x34, 0xfa,
	0x62, 0x0e, 0xab, 0x49, 0xf1, 0x25, 0x9e, 0x53, 0xcc, 0x08, 0x7b, 0xe6, 0x3a, 0x95, 0x11, 0xd8,
}

func tlsRecord(recordType byte, payload []byte) []byte {
	r := []byte{recordType, 3, 1, 0, 0}
	binary.BigEndian.PutUint16(r[3:], uint16(len(payload)))
	return append(r, payload...)
}

func handshakeMessage(handshakeType byte, body []byte) []byte {
	m := []byte{handshakeType, 0, 0, 0}
	m[1] = byte(len(body) >> 16)
	m[2] = byte(len(body) >> 8)
	m[3] = byte(len(body))
	return append(m, body...)
}

func buildFakeClientHello() []byte {
	var body bytes.Buffer
	body.Write([]byte{3, 1})
	body.Write(fakeClientRandom[:])
	body.WriteByte(0) //no session id

	suites := []uint16{0xc00a, 0xc014, 0x0039, 0x0038, 0xc009, 0xc013, 0x0033, 0x0032, 0x0035, 0x002f, 0x000a, 0x00ff}
	binary.Write(&body, binary.BigEndian, uint16(2*len(suites)))
	binary.Write(&body, binary.BigEndian, suites)

	body.Write([]byte{1, 0}) //null compression only

	extensions := []byte{
		0x00, 0x0b, 0x00, 0x02, 0x01, 0x00, //ec_point_formats: uncompressed
		0x00, 0x0a, 0x00, 0x06, 0x00, 0x04, 0x00, 0x17, 0x00, 0x18, //supported_groups: secp256r1, secp384r1
	}
	binary.Write(&body, binary.BigEndian, uint16(len(extensions)))
	body.Write(extensions)

	return tlsRecord(recordTypeHandshake, handshakeMessage(handshakeTypeClientHello, body.Bytes()))
}

func buildFakeServerHello() []byte {
	var body bytes.Buffer
	body.Write([]byte{3, 1})
	body.Write(fakeServerRandom[:])
	body.WriteByte(byte(len(fakeSessionID)))
	body.Write(fakeSessionID[:])
	body.Write([]byte{0x00, 0x2f}) //TLS_RSA_WITH_AES_128_CBC_SHA
	body.WriteByte(0)

	msgs := handshakeMessage(handshakeTypeServerHello, body.Bytes())
	msgs = append(msgs, handshakeMessage(handshakeTypeServerHelloDone, nil)...)
	return tlsRecord(recordTypeHandshake, msgs)
}

type fakeState int

const (
	fakeStateNone fakeState = iota
	fakeStateConnect
	fakeStateSendClientHello
	fakeStateVerifyServerHello
	fakeStateDone
)

func (s fakeState) String() string {
	switch s {
	case fakeStateNone:
		return "none"
	case fakeStateConnect:
		return "connect"
	case fakeStateSendClientHello:
		return "send_client_hello"
	case fakeStateVerifyServerHello:
		return "verify_server_hello"
	case fakeStateDone:
		return "done"
	}
	return "unknown"
}

// FakeClient does the client side of a fake tls handshake.
type FakeClient struct{}

func (FakeClient) Handshake(ctx context.Context, underlay net.Conn) (net.Conn, error) {
	h := &fakeClientHandshake{conn: underlay}
	if err := h.run(ctx); err != nil {
		return nil, err
	}
	return &FakeConn{Conn: underlay}, nil
}

type fakeClientHandshake struct {
	conn  net.Conn
	state fakeState

	// cursors into FakeClientHello and FakeServerHello
	written int
	read    int
}

// run steps through the states in order. Every step finishes its io before the
// next state is entered, and no state is entered twice.
func (h *fakeClientHandshake) run(ctx context.Context) (err error) {
	if h.state != fakeStateNone {
		panic("fake tls handshake reused")
	}

	if h.conn != nil {
		stop := netLayer.WatchContext(ctx, h.conn)
		defer stop()
	}

	h.state = fakeStateConnect
	for h.state != fakeStateDone {
		switch h.state {
		case fakeStateConnect:
			err = h.doConnect()
		case fakeStateSendClientHello:
			err = h.doSendClientHello()
		case fakeStateVerifyServerHello:
			err = h.doVerifyServerHello()
		}
		if err != nil {
			if ce := utils.CanLogDebug("fake tls handshake failed"); ce != nil {
				ce.Write(zap.Stringer("state", h.state), zap.Error(err))
			}
			return netLayer.CtxErr(ctx, err)
		}
	}
	return nil
}

func (h *fakeClientHandshake) doConnect() error {
	if h.conn == nil {
		return netLayer.ErrNotConnected
	}
	h.state = fakeStateSendClientHello
	return nil
}

func (h *fakeClientHandshake) doSendClientHello() error {
	for h.written < len(FakeClientHello) {
		n, err := h.conn.Write(FakeClientHello[h.written:])
		h.written += n
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	h.state = fakeStateVerifyServerHello
	return nil
}

func (h *fakeClientHandshake) doVerifyServerHello() error {
	var buf [128]byte
	for h.read < len(FakeServerHello) {
		want := FakeServerHello[h.read:]
		if len(want) > len(buf) {
			want = want[:len(buf)]
		}
		n, err := h.conn.Read(buf[:len(want)])
		if n > 0 {
			if !bytes.Equal(buf[:n], want[:n]) {
				return ErrFakeServerHelloMismatch
			}
			h.read += n
			continue
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	h.state = fakeStateDone
	return nil
}

// FakeServer does the accepting side: it checks the client hello and answers
// with the server hello.
type FakeServer struct{}

func (FakeServer) Handshake(ctx context.Context, underlay net.Conn) (net.Conn, error) {
	stop := netLayer.WatchContext(ctx, underlay)
	defer stop()

	got := make([]byte, len(FakeClientHello))
	if _, err := io.ReadFull(underlay, got); err != nil {
		return nil, netLayer.CtxErr(ctx, err)
	}
	if !bytes.Equal(got, FakeClientHello) {
		return nil, ErrFakeClientHelloMismatch
	}
	if _, err := underlay.Write(FakeServerHello); err != nil {
		return nil, netLayer.CtxErr(ctx, err)
	}
	return &FakeConn{Conn: underlay}, nil
}

// FakeConn is a stream after a fake tls handshake. Reads and writes go to the
// underlying conn unmodified.
type FakeConn struct {
	net.Conn
}

func (c *FakeConn) Upstream() net.Conn {
	return c.Conn
}
