package p2p

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/e1732a364fed/p2ptcp/frameLayer"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
)

// Mode selects how frames are cut out of the stream.
type Mode int

const (
	ModeTCP     Mode = iota // 2-byte length prefix
	ModeStunTCP             // stun messages and turn channel data, padded
)

func (m Mode) String() string {
	switch m {
	case ModeTCP:
		return "tcp"
	case ModeStunTCP:
		return "stun"
	}
	return "unknown"
}

func (m Mode) Codec() frameLayer.Codec {
	if m == ModeStunTCP {
		return frameLayer.ChannelData{}
	}
	return frameLayer.LengthPrefixed{}
}

func StrToMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "tcp":
		return ModeTCP, nil
	case "stun", "stun-tcp", "stuntcp":
		return ModeStunTCP, nil
	}
	return ModeTCP, utils.ErrInErr{ErrDesc: "unknown p2p mode", ErrDetail: utils.ErrWrongParameter, Data: s}
}

type Option int

const (
	OptionRecvBuf Option = iota
	OptionSendBuf
	OptionDSCP
)

type Conf struct {
	Remote netLayer.Addr
	Mode   Mode

	// Frames sent while this many bytes are queued are dropped. 0 means no limit.
	MaxQueuedBytes int64

	// tasks and delegate calls run on Loop. A Host makes its own when nil.
	Loop *netLayer.Loop
}

type SendMetrics struct {
	PacketID uint64
	Size     int // bytes on the wire, padding included
	SentAt   time.Time
}

// Delegate receives the events of a Host. All methods are called on the
// host's loop, one at a time. After OnConnectionError nothing is called.
type Delegate interface {
	OnSocketCreated(local, remote net.Addr)
	OnFrameReceived(from netLayer.Addr, frame []byte, at time.Time)
	OnSendComplete(m SendMetrics)
	OnConnectionError(err error)
}

// StreamSocket is the connection a Host runs on. *proxySocket.Socket is one.
type StreamSocket interface {
	net.Conn
	Connect(ctx context.Context) error
	SetReceiveBufferSize(size int) error
	SetSendBufferSize(size int) error
}

// openSocket is a StreamSocket over a conn that is already connected,
// like an accepted one. raw is the tcp conn under any tls layer.
type openSocket struct {
	net.Conn
	raw net.Conn
}

func (openSocket) Connect(context.Context) error { return nil }

func (s openSocket) SetReceiveBufferSize(size int) error {
	return netLayer.SetRecvBuffer(s.raw, size)
}

func (s openSocket) SetSendBufferSize(size int) error {
	return netLayer.SetSendBuffer(s.raw, size)
}

// WrapConn makes an already connected conn usable by NewHost. raw is where
// socket options go; it may be nil when c is the tcp conn itself.
func WrapConn(c, raw net.Conn) StreamSocket {
	if raw == nil {
		raw = c
	}
	return openSocket{Conn: c, raw: raw}
}
