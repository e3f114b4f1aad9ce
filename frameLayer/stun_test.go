package frameLayer

import (
	"encoding/binary"
	"testing"
)

func TestGetStunPacketType(t *testing.T) {
	msg := NewStunMessage(StunBindingRequest, nil, []byte{0, 0, 0, 0})
	typ, ok := GetStunPacketType(msg)
	if !ok || typ != StunBindingRequest || !IsRequestOrResponse(typ) {
		t.FailNow()
	}

	data := NewStunMessage(StunDataIndication, nil, nil)
	typ, ok = GetStunPacketType(data)
	if !ok || typ != StunDataIndication || IsRequestOrResponse(typ) {
		t.FailNow()
	}
}

func TestGetStunPacketTypeRejects(t *testing.T) {
	msg := NewStunMessage(StunBindingResponse, nil, make([]byte, 4))

	if _, ok := GetStunPacketType(msg[:StunHeaderSize-1]); ok {
		t.Log("too short")
		t.FailNow()
	}

	bad := append([]byte(nil), msg...)
	binary.BigEndian.PutUint32(bad[4:], 0xdeadbeef)
	if _, ok := GetStunPacketType(bad); ok {
		t.Log("cookie")
		t.FailNow()
	}

	if _, ok := GetStunPacketType(append(msg, 0)); ok {
		t.Log("length")
		t.FailNow()
	}

	unknown := NewStunMessage(StunMessageType(0x0009), nil, nil)
	if _, ok := GetStunPacketType(unknown); ok {
		t.Log("type")
		t.FailNow()
	}

	if _, ok := GetStunPacketType(NewChannelDataMessage(0x4000, make([]byte, 20))); ok {
		t.Log("channel data is not stun")
		t.FailNow()
	}
}

func TestBuildersRejectOversizeBody(t *testing.T) {
	for name, build := range map[string]func(){
		"stun":         func() { NewStunMessage(StunBindingRequest, nil, make([]byte, 0x10000)) },
		"channel data": func() { NewChannelDataMessage(TurnChannelNumberMinimum, make([]byte, 0x10000)) },
	} {
		func() {
			defer func() {
				if r := recover(); r != ErrPacketTooLarge {
					t.Log(name, r)
					t.FailNow()
				}
			}()
			build()
		}()
	}

	if len(NewChannelDataMessage(TurnChannelNumberMinimum, make([]byte, 0xffff))) != TurnChannelDataHeaderSize+0xffff {
		t.FailNow()
	}
}
