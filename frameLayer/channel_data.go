package frameLayer

import (
	"encoding/binary"
)

const (
	StunHeaderSize            = 20
	TurnChannelDataHeaderSize = 4

	// both STUN and TURN channel data carry the length at this offset
	packetLengthOffset = 2
)

// ChannelData frames STUN messages and TURN channel data messages as they are
// sent over tcp: as is, with TURN channel data padded to 4 bytes.
//
// Unlike LengthPrefixed, the packet delivered upward includes its header. The
// padding is dropped.
type ChannelData struct{}

func (ChannelData) Name() string { return "stun-tcp" }

// ExpectedPacketSize derives the size of the message at the head of data from its
// own header, and the number of padding bytes that follow it on the wire.
// data must hold at least TurnChannelDataHeaderSize bytes.
func ExpectedPacketSize(data []byte) (size int, pad int) {
	size = int(binary.BigEndian.Uint16(data[packetLengthOffset:]))
	msgType := binary.BigEndian.Uint16(data)

	if msgType&0xC000 == 0 {
		//stun
		size += StunHeaderSize
	} else {
		//turn channel data
		size += TurnChannelDataHeaderSize
		if size%4 != 0 {
			pad = 4 - size%4
		}
	}
	return
}

func (ChannelData) ProcessInput(buf []byte) (packet []byte, consumed int) {
	if len(buf) < TurnChannelDataHeaderSize {
		return nil, 0
	}

	size, pad := ExpectedPacketSize(buf)
	if len(buf) < size+pad {
		return nil, 0
	}
	return buf[:size], size + pad
}

func (ChannelData) Encode(payload []byte, _ PacketOptions) ([]byte, error) {
	if len(payload) < TurnChannelDataHeaderSize {
		return nil, ErrPacketTooShort
	}
	size, pad := ExpectedPacketSize(payload)
	if size != len(payload) {
		return nil, ErrLengthMismatch
	}
	out := make([]byte, size+pad)
	copy(out, payload)
	return out, nil
}
