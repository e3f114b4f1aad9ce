/*
Package frameLayer turns a tcp byte stream into discrete packets and back.

Two wire formats are provided. LengthPrefixed puts a 2 byte big endian length
in front of every packet. ChannelData carries self describing STUN messages and
TURN channel data messages, the latter padded to a multiple of 4 on the wire.

A Codec holds no state: ProcessInput looks at the head of the unconsumed
bytes and either extracts exactly one packet or reports that more bytes are
needed, leaving everything untouched so it can be called again later with the
same bytes plus whatever arrived since.
*/
package frameLayer

import (
	"errors"
)

var (
	ErrPacketTooLarge = errors.New("packet too large for the frame header")
	ErrLengthMismatch = errors.New("declared packet length does not match packet size")
	ErrPacketTooShort = errors.New("packet shorter than its header")
)

// PacketOptions travel with an outbound packet. On tcp they are advisory.
type PacketOptions struct {
	DSCP     int
	PacketID uint64
}

type Codec interface {
	// ProcessInput looks at buf, which starts at a frame boundary.
	// If a whole frame is present, it returns the packet delivered upward and the
	// number of bytes the frame occupies on the wire. Otherwise consumed is 0.
	//
	// packet aliases buf.
	ProcessInput(buf []byte) (packet []byte, consumed int)

	// Encode returns the on-wire bytes for payload.
	Encode(payload []byte, opts PacketOptions) ([]byte, error)

	Name() string
}
