package frameLayer

import (
	"encoding/binary"
	"math"
)

// PacketHeaderSize is the length prefix size of LengthPrefixed.
const PacketHeaderSize = 2

// LengthPrefixed frames each packet as a big endian uint16 length followed by the payload.
type LengthPrefixed struct{}

func (LengthPrefixed) Name() string { return "tcp" }

func (LengthPrefixed) ProcessInput(buf []byte) (packet []byte, consumed int) {
	if len(buf) < PacketHeaderSize {
		return nil, 0
	}
	packetSize := int(binary.BigEndian.Uint16(buf))
	if len(buf) < packetSize+PacketHeaderSize {
		return nil, 0
	}
	consumed = packetSize + PacketHeaderSize
	return buf[PacketHeaderSize:consumed], consumed
}

func (LengthPrefixed) Encode(payload []byte, _ PacketOptions) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, ErrPacketTooLarge
	}
	out := make([]byte, PacketHeaderSize+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[PacketHeaderSize:], payload)
	return out, nil
}
