package frameLayer

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

// decodeAll feeds the stream to c in chunks cut at the given points, the way a
// read loop would: append, extract until nothing more comes out, compact.
func decodeAll(c Codec, stream []byte, cuts []int) (packets [][]byte) {
	var buf []byte
	last := 0
	cuts = append(cuts, len(stream))
	for _, cut := range cuts {
		buf = append(buf, stream[last:cut]...)
		last = cut
		for {
			p, n := c.ProcessInput(buf)
			if n == 0 {
				break
			}
			packets = append(packets, append([]byte(nil), p...))
			buf = buf[n:]
		}
	}
	return
}

func samePackets(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func TestLengthPrefixedSplitPacket(t *testing.T) {
	var c LengthPrefixed
	payload := []byte("hello stun world")
	wire, err := c.Encode(payload, PacketOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(wire) != len(payload)+2 || wire[0] != 0 || wire[1] != byte(len(payload)) {
		t.FailNow()
	}

	//header alone
	if p, n := c.ProcessInput(wire[:2]); n != 0 || p != nil {
		t.FailNow()
	}
	//one byte of header
	if _, n := c.ProcessInput(wire[:1]); n != 0 {
		t.FailNow()
	}

	whole := decodeAll(c, wire, nil)
	split := decodeAll(c, wire, []int{2})
	if !samePackets(whole, split) || len(whole) != 1 || !bytes.Equal(whole[0], payload) {
		t.Log(whole, split)
		t.FailNow()
	}
}

func TestLengthPrefixedEmptyAndTooLarge(t *testing.T) {
	var c LengthPrefixed
	wire, _ := c.Encode(nil, PacketOptions{})
	p, n := c.ProcessInput(wire)
	if n != 2 || len(p) != 0 {
		t.FailNow()
	}

	if _, err := c.Encode(make([]byte, 65536), PacketOptions{}); !errors.Is(err, ErrPacketTooLarge) {
		t.FailNow()
	}
	if _, err := c.Encode(make([]byte, 65535), PacketOptions{}); err != nil {
		t.FailNow()
	}
}

func TestChannelDataClassification(t *testing.T) {
	stunHeader := []byte{0x00, 0x01, 0x00, 0x08}
	size, pad := ExpectedPacketSize(stunHeader)
	if size != 8+StunHeaderSize || pad != 0 {
		t.Log(size, pad)
		t.FailNow()
	}

	turnHeader := []byte{0x40, 0x00, 0x00, 0x05}
	size, pad = ExpectedPacketSize(turnHeader)
	if size != 5+TurnChannelDataHeaderSize || pad != 3 {
		t.Log(size, pad)
		t.FailNow()
	}

	turnAligned := []byte{0x7f, 0xff, 0x00, 0x04}
	size, pad = ExpectedPacketSize(turnAligned)
	if size != 8 || pad != 0 {
		t.FailNow()
	}
}

func TestChannelDataPadding(t *testing.T) {
	var c ChannelData
	for l := 0; l < 64; l++ {
		msg := NewChannelDataMessage(0x4001, bytes.Repeat([]byte{0xab}, l))
		wire, err := c.Encode(msg, PacketOptions{})
		if err != nil {
			t.Fatal(err)
		}
		pad := len(wire) - len(msg)
		if pad < 0 || pad > 3 || len(wire)%4 != 0 {
			t.Fatalf("len %d: pad %d wire %d", l, pad, len(wire))
		}
		for _, b := range wire[len(msg):] {
			if b != 0 {
				t.FailNow()
			}
		}

		p, n := c.ProcessInput(wire)
		if n != len(wire) || !bytes.Equal(p, msg) {
			t.Fatalf("len %d round trip failed", l)
		}

		//everything but the last pad byte is not enough
		if pad > 0 {
			if _, n := c.ProcessInput(wire[:len(wire)-1]); n != 0 {
				t.Fatalf("len %d decoded without its padding", l)
			}
		}
	}
}

func TestChannelDataStunRoundTrip(t *testing.T) {
	var c ChannelData
	msg := NewStunMessage(StunBindingRequest, bytes.Repeat([]byte{7}, 12), []byte{1, 2, 3})
	wire, err := c.Encode(msg, PacketOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(wire, msg) {
		t.Log("stun messages are never padded")
		t.FailNow()
	}
	p, n := c.ProcessInput(wire)
	if n != len(msg) || !bytes.Equal(p, msg) {
		t.FailNow()
	}
}

func TestChannelDataEncodeRejects(t *testing.T) {
	var c ChannelData
	msg := NewChannelDataMessage(0x4001, []byte{1, 2, 3})
	if _, err := c.Encode(append(msg, 9), PacketOptions{}); !errors.Is(err, ErrLengthMismatch) {
		t.FailNow()
	}
	if _, err := c.Encode(msg[:3], PacketOptions{}); !errors.Is(err, ErrPacketTooShort) {
		t.FailNow()
	}
	stun := NewStunMessage(StunBindingResponse, nil, make([]byte, 8))
	if _, err := c.Encode(stun[:len(stun)-1], PacketOptions{}); !errors.Is(err, ErrLengthMismatch) {
		t.FailNow()
	}
}

func TestChannelDataNeedsFourBytes(t *testing.T) {
	var c ChannelData
	for i := 0; i < 4; i++ {
		if _, n := c.ProcessInput(make([]byte, i)); n != 0 {
			t.FailNow()
		}
	}
}

// Cutting a stream anywhere must not change what comes out of it.
func TestPartialDecodeIsIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	var lp LengthPrefixed
	var cd ChannelData

	var lpStream, cdStream []byte
	for i := 0; i < 20; i++ {
		payload := make([]byte, r.Intn(40))
		r.Read(payload)

		w, _ := lp.Encode(payload, PacketOptions{})
		lpStream = append(lpStream, w...)

		var msg []byte
		if i%2 == 0 {
			msg = NewStunMessage(StunSendRequest, nil, payload)
		} else {
			msg = NewChannelDataMessage(uint16(0x4000+i), payload)
		}
		w, err := cd.Encode(msg, PacketOptions{})
		if err != nil {
			t.Fatal(err)
		}
		cdStream = append(cdStream, w...)
	}

	for _, tc := range []struct {
		c      Codec
		stream []byte
	}{{lp, lpStream}, {cd, cdStream}} {
		whole := decodeAll(tc.c, tc.stream, nil)
		if len(whole) != 20 {
			t.Fatalf("%s: got %d packets", tc.c.Name(), len(whole))
		}
		for cut := 0; cut <= len(tc.stream); cut++ {
			if got := decodeAll(tc.c, tc.stream, []int{cut}); !samePackets(whole, got) {
				t.Fatalf("%s: cut at %d changed the result", tc.c.Name(), cut)
			}
		}

		//byte by byte
		cuts := make([]int, 0, len(tc.stream))
		for i := 1; i < len(tc.stream); i++ {
			cuts = append(cuts, i)
		}
		if got := decodeAll(tc.c, tc.stream, cuts); !samePackets(whole, got) {
			t.Fatalf("%s: byte by byte changed the result", tc.c.Name())
		}
	}
}

func TestProcessInputDoesNotMutate(t *testing.T) {
	var cd ChannelData
	msg, _ := cd.Encode(NewChannelDataMessage(0x4000, []byte{1, 2, 3, 4, 5}), PacketOptions{})
	partial := append([]byte(nil), msg[:6]...)
	before := append([]byte(nil), partial...)
	if _, n := cd.ProcessInput(partial); n != 0 || !bytes.Equal(before, partial) {
		t.FailNow()
	}
}
