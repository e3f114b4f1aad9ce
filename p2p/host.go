// Package p2p runs framed peer to peer traffic over one tcp stream.
//
// A Host owns a connected StreamSocket. A reader goroutine cuts frames out
// of the stream and a writer goroutine writes one frame at a time; both hand
// their results to the host's netLayer.Loop, where all state lives and all
// Delegate calls are made.
//
// Until the first stun request or response has been seen, only stun
// messages may be received or sent. Anything else ends the connection.
package p2p

import (
	"context"
	"io"
	"time"

	"github.com/e1732a364fed/p2ptcp/frameLayer"
	"github.com/e1732a364fed/p2ptcp/netLayer"
	"github.com/e1732a364fed/p2ptcp/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type hostState int

const (
	stateUninitialized hostState = iota
	stateConnecting
	stateOpen
	stateError
	stateClosed
)

type outboundFrame struct {
	data   []byte
	id     uint64
	cursor int
}

// asyncConnector is a StreamSocket that can post its own connect result to a
// loop, like *proxySocket.Socket.
type asyncConnector interface {
	ConnectAsync(loop *netLayer.Loop, cb func(error))
}

type Host struct {
	conf     Conf
	remote   netLayer.Addr
	codec    frameLayer.Codec
	sock     StreamSocket
	delegate Delegate

	loop    *netLayer.Loop
	ownLoop bool

	ctx    context.Context
	cancel context.CancelFunc

	// loop only
	state     hostState
	connected bool //a stun request or response went through
	queue     []*outboundFrame
	writing   bool

	writeReq chan []byte

	queuedBytes atomic.Int64
	closed      atomic.Bool
}

func NewHost(sock StreamSocket, conf Conf, delegate Delegate) *Host {
	h := &Host{
		conf:     conf,
		remote:   conf.Remote,
		codec:    conf.Mode.Codec(),
		sock:     sock,
		delegate: delegate,
		loop:     conf.Loop,
		writeReq: make(chan []byte, 1),
	}
	if h.loop == nil {
		h.loop = netLayer.NewLoop()
		h.ownLoop = true
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// Init starts connecting. The result comes as OnSocketCreated or
// OnConnectionError.
func (h *Host) Init() {
	h.loop.Post(func() {
		if h.state != stateUninitialized {
			return
		}
		h.state = stateConnecting
		if as, ok := h.sock.(asyncConnector); ok {
			as.ConnectAsync(h.loop, h.onConnected)
			return
		}
		go func() {
			err := h.sock.Connect(h.ctx)
			h.loop.Post(func() { h.onConnected(err) })
		}()
	})
}

func (h *Host) onConnected(err error) {
	if h.state != stateConnecting {
		return
	}
	if err != nil {
		h.onError(err)
		return
	}
	h.state = stateOpen

	if ce := utils.CanLogInfo("p2p socket open"); ce != nil {
		ce.Write(zap.String("remote", h.remote.String()), zap.String("mode", h.conf.Mode.String()))
	}
	h.delegate.OnSocketCreated(h.sock.LocalAddr(), h.sock.RemoteAddr())
	if !h.live() {
		return
	}

	go h.readLoop()
	go h.writeLoop()
	h.writeNext()
}

func (h *Host) live() bool {
	return h.state == stateOpen && !h.closed.Load()
}

// onError tears the connection down and notifies the delegate, only the first time.
func (h *Host) onError(err error) {
	if h.state == stateError || h.state == stateClosed {
		return
	}
	h.state = stateError
	h.teardown()

	if ce := utils.CanLogWarn("p2p connection error"); ce != nil {
		ce.Write(zap.String("remote", h.remote.String()), zap.Error(err))
	}
	if !h.closed.Load() {
		h.delegate.OnConnectionError(err)
	}
	if h.ownLoop {
		h.loop.Stop()
	}
}

func (h *Host) teardown() {
	h.cancel()
	h.sock.Close()
	h.queue = nil
	h.queuedBytes.Store(0)
}

// Close drops queued frames and closes the socket. No Delegate method is
// called after Close returns, except for one that was already running.
func (h *Host) Close() error {
	if !h.closed.CAS(false, true) {
		return nil
	}
	h.cancel()
	err := h.sock.Close()
	h.loop.Post(func() {
		h.state = stateClosed
		h.queue = nil
		h.queuedBytes.Store(0)
	})
	if h.ownLoop {
		h.loop.Stop()
	}
	return err
}

func (h *Host) Delegate() Delegate { return h.delegate }

func (h *Host) Remote() netLayer.Addr { return h.remote }

// QueuedBytes is the size of the frames waiting to be written, including the
// one in flight.
func (h *Host) QueuedBytes() int64 {
	return h.queuedBytes.Load()
}

// SetOption applies a socket option. DSCP has no effect on tcp, so it always
// gives false.
func (h *Host) SetOption(opt Option, value int) bool {
	if h.closed.Load() {
		return false
	}
	var err error
	switch opt {
	case OptionRecvBuf:
		err = h.sock.SetReceiveBufferSize(value)
	case OptionSendBuf:
		err = h.sock.SetSendBufferSize(value)
	default:
		return false
	}
	if err != nil {
		if ce := utils.CanLogDebug("p2p setoption failed"); ce != nil {
			ce.Write(zap.Int("option", int(opt)), zap.Error(err))
		}
		return false
	}
	return true
}

// checkInboundStun enforces that nothing but stun arrives before the peer
// sent a stun request or response. It flips connected on the first one.
func (h *Host) checkInboundStun(data []byte) error {
	if h.connected {
		return nil
	}
	t, isStun := frameLayer.GetStunPacketType(data)
	if isStun && frameLayer.IsRequestOrResponse(t) {
		h.connected = true
		return nil
	}
	return checkStun(t, isStun)
}

// checkOutboundStun keeps non stun payloads from going out before connected.
// Our own binding request does not count as connected.
func (h *Host) checkOutboundStun(data []byte) error {
	if h.connected {
		return nil
	}
	return checkStun(frameLayer.GetStunPacketType(data))
}

func checkStun(t frameLayer.StunMessageType, isStun bool) error {
	if !isStun || t == frameLayer.StunDataIndication {
		return utils.ErrInErr{ErrDesc: "data before stun binding", ErrDetail: netLayer.ErrProtocolViolation, Data: t.String()}
	}
	return nil
}

// Send queues payload for the remote. to must be the remote the host was
// made for. Errors are reported through OnConnectionError.
func (h *Host) Send(to netLayer.Addr, payload []byte, opts frameLayer.PacketOptions) {
	data := append([]byte(nil), payload...)
	h.loop.Post(func() { h.send(to, data, opts) })
}

func (h *Host) send(to netLayer.Addr, payload []byte, opts frameLayer.PacketOptions) {
	switch h.state {
	case stateError, stateClosed:
		return
	}
	if !h.remote.Equal(to) {
		h.onError(utils.ErrInErr{ErrDesc: "send to wrong destination", ErrDetail: netLayer.ErrProtocolViolation, Data: to.String()})
		return
	}
	if err := h.checkOutboundStun(payload); err != nil {
		h.onError(err)
		return
	}
	wire, err := h.codec.Encode(payload, opts)
	if err != nil {
		h.onError(utils.ErrInErr{ErrDesc: "can't frame packet", ErrDetail: netLayer.ErrProtocolViolation, Data: err})
		return
	}

	if limit := h.conf.MaxQueuedBytes; limit > 0 && h.queuedBytes.Load()+int64(len(wire)) > limit {
		if ce := utils.CanLogWarn("p2p send queue full, dropping packet"); ce != nil {
			ce.Write(zap.Uint64("id", opts.PacketID), zap.Int64("queued", h.queuedBytes.Load()))
		}
		return
	}

	h.queue = append(h.queue, &outboundFrame{data: wire, id: opts.PacketID})
	h.queuedBytes.Add(int64(len(wire)))
	h.writeNext()
}

// writeNext hands the head of the queue to the writer, unless a write is in flight.
func (h *Host) writeNext() {
	if h.state != stateOpen || h.writing || len(h.queue) == 0 {
		return
	}
	h.writing = true
	f := h.queue[0]
	h.writeReq <- f.data[f.cursor:]
}

func (h *Host) onWritten(n int, err error) {
	if !h.live() {
		return
	}
	h.writing = false
	if err != nil {
		h.onError(netLayer.Classify(err))
		return
	}
	f := h.queue[0]
	f.cursor += n
	if f.cursor < len(f.data) {
		h.writeNext()
		return
	}

	h.queue[0] = nil
	h.queue = h.queue[1:]
	h.queuedBytes.Sub(int64(len(f.data)))

	h.delegate.OnSendComplete(SendMetrics{PacketID: f.id, Size: len(f.data), SentAt: time.Now()})
	h.writeNext()
}

func (h *Host) writeLoop() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case p := <-h.writeReq:
			n, err := h.sock.Write(p)
			if err == nil && n == 0 {
				err = io.ErrShortWrite
			}
			if !h.loop.Post(func() { h.onWritten(n, err) }) {
				return
			}
		}
	}
}

func (h *Host) readLoop() {
	rb := netLayer.NewReadBuffer()
	for {
		rb.Reserve()
		n, err := h.sock.Read(rb.Spare())
		if n > 0 {
			rb.Commit(n)
			if !h.drain(rb) {
				return
			}
		}
		if n == 0 && err == nil {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			err = netLayer.Classify(err)
			h.loop.Post(func() { h.onError(err) })
			return
		}
	}
}

// drain dispatches every complete frame in rb, then compacts it.
// It returns false once the loop is gone.
func (h *Host) drain(rb *netLayer.ReadBuffer) bool {
	for {
		frame, consumed := h.codec.ProcessInput(rb.Bytes())
		if consumed == 0 {
			break
		}
		packet := append([]byte(nil), frame...)
		at := time.Now()
		rb.Consume(consumed)
		if !h.loop.Post(func() { h.onPacket(packet, at) }) {
			return false
		}
	}
	rb.Compact()
	return true
}

func (h *Host) onPacket(packet []byte, at time.Time) {
	if !h.live() {
		return
	}
	if err := h.checkInboundStun(packet); err != nil {
		h.onError(err)
		return
	}
	h.delegate.OnFrameReceived(h.remote, packet, at)
}
