package websockets

import (
	"bytes"
	"testing"
)

func TestDecodeEncodeRoundTripMasked(t *testing.T) {
	for _, f := range []Frame{
		NewTextFrame("Hello, World"),
		NewBinaryFrame(bytes.Repeat([]byte{0xab}, 200)),
		NewBinaryFrame(bytes.Repeat([]byte{0xcd}, 70000)),
		NewFrame(OpBinary, true, nil),
	} {
		bts, err := Encode(f)
		if err != nil {
			t.Fatal(err)
		}
		res, err := Decode(bts)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Complete {
			t.Fatal("expected Complete = true")
		}
		if res.Consumed != len(bts) {
			t.Fatalf("Consumed = %d; want %d", res.Consumed, len(bts))
		}
		if res.Frame.Header.Fin != f.Header.Fin || res.Frame.Header.OpCode != f.Header.OpCode {
			t.Fatalf("header mismatch: got %+v, want fin=%v op=%v", res.Frame.Header, f.Header.Fin, f.Header.OpCode)
		}
		if !bytes.Equal(res.Frame.Payload, f.Payload) {
			t.Fatalf("payload mismatch: got %v, want %v", res.Frame.Payload, f.Payload)
		}
		if !res.Frame.Header.Masked {
			t.Fatal("client-emitted frame must be masked")
		}
	}
}

func TestDecodeRoundTripUnmasked(t *testing.T) {
	f := NewTextFrame("server says hi")
	bts := encodeUnmasked(f)

	res, err := Decode(bts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete || res.Consumed != len(bts) {
		t.Fatalf("got Complete=%v Consumed=%d; want true, %d", res.Complete, res.Consumed, len(bts))
	}
	if res.Frame.Header.Masked {
		t.Fatal("expected unmasked frame")
	}
	if string(res.Frame.Payload) != string(f.Payload) {
		t.Fatalf("payload = %q; want %q", res.Frame.Payload, f.Payload)
	}
}

func TestLengthEncodingSizes(t *testing.T) {
	cases := []struct {
		payloadLen  int
		wantHdrSize int // header bytes before mask key, i.e. 2, 4 or 10
	}{
		{0, 2},
		{125, 2},
		{126, 4},
		{65535, 4},
		{65536, 10},
	}
	for _, c := range cases {
		f := NewBinaryFrame(make([]byte, c.payloadLen))
		mask := [4]byte{9, 9, 9, 9}
		bts := EncodeWithMask(f, mask)
		gotHdrSize := len(bts) - 4 - c.payloadLen
		if gotHdrSize != c.wantHdrSize {
			t.Errorf("len=%d: header size = %d; want %d", c.payloadLen, gotHdrSize, c.wantHdrSize)
		}
	}
}

func TestDecodePartialInputIsIncomplete(t *testing.T) {
	f := NewBinaryFrame(bytes.Repeat([]byte{0x42}, 300))
	bts, err := Encode(f)
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < len(bts); k++ {
		res, err := Decode(bts[:k])
		if err != nil {
			t.Fatalf("k=%d: unexpected error %v", k, err)
		}
		if res.Complete {
			t.Fatalf("k=%d: got Complete = true before full frame was fed", k)
		}
		if res.Frame.Payload != nil {
			t.Fatalf("k=%d: payload allocated on incomplete input", k)
		}
	}
}

func TestIngressLikeConcatenationConsumesAllFrames(t *testing.T) {
	const n = 5
	var buf []byte
	for i := 0; i < n; i++ {
		bts, err := Encode(NewTextFrame("frame"))
		if err != nil {
			t.Fatal(err)
		}
		buf = append(buf, bts...)
	}

	count := 0
	for len(buf) > 0 {
		res, err := Decode(buf)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Complete {
			t.Fatal("expected Complete = true while bytes remain")
		}
		buf = buf[res.Consumed:]
		count++
	}
	if count != n {
		t.Fatalf("dispatched %d frames; want %d", count, n)
	}
}

func TestDecodeRejects64BitLengthWithMSBSet(t *testing.T) {
	buf := []byte{
		0x82, 0x7f, // fin|binary, mask=0, len=127
		0x80, 0, 0, 0, 0, 0, 0, 0, // MSB set
	}
	_, err := Decode(buf)
	if err == nil {
		t.Fatal("expected error for 64-bit length with MSB set")
	}
}

// encodeUnmasked builds frame bytes the way a (non-client) peer would, with
// the mask bit left unset, for tests that exercise Decode's ability to
// accept server-originated, unmasked frames per spec.md §3/§6.
func encodeUnmasked(f Frame) []byte {
	bts, _ := Encode(f)
	// Encode always masks; strip the mask to simulate an unmasked peer by
	// unmasking the payload and rewriting the header byte.
	masked := bts[1]&maskBit != 0
	if !masked {
		return bts
	}
	lenField := bts[1] &^ maskBit
	pos := 2
	switch lenField {
	case 126:
		pos += 2
	case 127:
		pos += 8
	}
	var mask [4]byte
	copy(mask[:], bts[pos:pos+4])
	out := make([]byte, 0, len(bts)-4)
	out = append(out, bts[0], lenField)
	out = append(out, bts[2:pos]...)
	payload := append([]byte(nil), bts[pos+4:]...)
	Cipher(payload, mask, 0)
	out = append(out, payload...)
	return out
}
