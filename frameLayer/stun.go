package frameLayer

import (
	"encoding/binary"
)

const (
	StunMagicCookie          = 0x2112A442
	StunTransactionIdLength  = 12
	stunMagicCookieOffset    = StunHeaderSize - StunTransactionIdLength - 4
	TurnChannelNumberMinimum = 0x4000
)

type StunMessageType uint16

// The stun message types a p2p tcp socket understands, rfc 5389 and the
// classic TURN draft that defined send and data indication.
const (
	StunBindingRequest            StunMessageType = 0x0001
	StunBindingResponse           StunMessageType = 0x0101
	StunBindingErrorResponse      StunMessageType = 0x0111
	StunSharedSecretRequest       StunMessageType = 0x0002
	StunSharedSecretResponse      StunMessageType = 0x0102
	StunSharedSecretErrorResponse StunMessageType = 0x0112
	StunAllocateRequest           StunMessageType = 0x0003
	StunAllocateResponse          StunMessageType = 0x0103
	StunAllocateErrorResponse     StunMessageType = 0x0113
	StunSendRequest               StunMessageType = 0x0004
	StunSendResponse              StunMessageType = 0x0104
	StunSendErrorResponse         StunMessageType = 0x0114
	StunDataIndication            StunMessageType = 0x0115
)

func (t StunMessageType) String() string {
	switch t {
	case StunBindingRequest:
		return "binding_request"
	case StunBindingResponse:
		return "binding_response"
	case StunBindingErrorResponse:
		return "binding_error_response"
	case StunSharedSecretRequest:
		return "shared_secret_request"
	case StunSharedSecretResponse:
		return "shared_secret_response"
	case StunSharedSecretErrorResponse:
		return "shared_secret_error_response"
	case StunAllocateRequest:
		return "allocate_request"
	case StunAllocateResponse:
		return "allocate_response"
	case StunAllocateErrorResponse:
		return "allocate_error_response"
	case StunSendRequest:
		return "send_request"
	case StunSendResponse:
		return "send_response"
	case StunSendErrorResponse:
		return "send_error_response"
	case StunDataIndication:
		return "data_indication"
	}
	return "unknown"
}

// GetStunPacketType reports whether data is exactly one well formed stun
// message of a known type: magic cookie present, declared length equal to the
// body size.
func GetStunPacketType(data []byte) (StunMessageType, bool) {
	if len(data) < StunHeaderSize {
		return 0, false
	}

	if binary.BigEndian.Uint32(data[stunMagicCookieOffset:]) != StunMagicCookie {
		return 0, false
	}

	length := int(binary.BigEndian.Uint16(data[packetLengthOffset:]))
	if length != len(data)-StunHeaderSize {
		return 0, false
	}

	t := StunMessageType(binary.BigEndian.Uint16(data))
	switch t {
	case StunBindingRequest,
		StunBindingResponse,
		StunBindingErrorResponse,
		StunSharedSecretRequest,
		StunSharedSecretResponse,
		StunSharedSecretErrorResponse,
		StunAllocateRequest,
		StunAllocateResponse,
		StunAllocateErrorResponse,
		StunSendRequest,
		StunSendResponse,
		StunSendErrorResponse,
		StunDataIndication:
		return t, true
	}
	return 0, false
}

// IsRequestOrResponse is true for the types that prove the peer speaks stun
// and that a binding or allocation has been negotiated.
func IsRequestOrResponse(t StunMessageType) bool {
	return t == StunBindingRequest || t == StunBindingResponse ||
		t == StunAllocateRequest || t == StunAllocateResponse
}

// NewStunMessage builds a stun message with the given body. The transaction id
// must be StunTransactionIdLength bytes or nil (all zero).
// It panics with ErrPacketTooLarge if body is longer than 0xffff bytes.
func NewStunMessage(t StunMessageType, transactionID []byte, body []byte) []byte {
	mustFitLength(body)
	msg := make([]byte, StunHeaderSize+len(body))
	binary.BigEndian.PutUint16(msg, uint16(t))
	binary.BigEndian.PutUint16(msg[packetLengthOffset:], uint16(len(body)))
	binary.BigEndian.PutUint32(msg[stunMagicCookieOffset:], StunMagicCookie)
	copy(msg[stunMagicCookieOffset+4:StunHeaderSize], transactionID)
	copy(msg[StunHeaderSize:], body)
	return msg
}

// NewChannelDataMessage builds an unpadded TURN channel data message.
// channel must be at least TurnChannelNumberMinimum.
// It panics with ErrPacketTooLarge if data is longer than 0xffff bytes.
func NewChannelDataMessage(channel uint16, data []byte) []byte {
	mustFitLength(data)
	msg := make([]byte, TurnChannelDataHeaderSize+len(data))
	binary.BigEndian.PutUint16(msg, channel)
	binary.BigEndian.PutUint16(msg[packetLengthOffset:], uint16(len(data)))
	copy(msg[TurnChannelDataHeaderSize:], data)
	return msg
}

func mustFitLength(body []byte) {
	if len(body) > 0xffff {
		panic(ErrPacketTooLarge)
	}
}
