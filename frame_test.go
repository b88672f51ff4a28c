package websockets

import (
	"fmt"
	"testing"
)

func TestOpCodeIsControl(t *testing.T) {
	for _, test := range []struct {
		code OpCode
		exp  bool
	}{
		{OpClose, true},
		{OpPing, true},
		{OpPong, true},
		{OpBinary, false},
		{OpText, false},
		{OpContinuation, false},
	} {
		t.Run(fmt.Sprintf("0x%02x", byte(test.code)), func(t *testing.T) {
			if act := test.code.IsControl(); act != test.exp {
				t.Errorf("IsControl = %v; want %v", act, test.exp)
			}
		})
	}
}

func TestOpCodeIsValid(t *testing.T) {
	for _, test := range []struct {
		code OpCode
		exp  bool
	}{
		{OpContinuation, true},
		{OpText, true},
		{OpBinary, true},
		{OpClose, true},
		{OpPing, true},
		{OpPong, true},
		{OpCode(0x3), false},
		{OpCode(0xb), false},
		{OpCode(0xf), false},
	} {
		if act := test.code.IsValid(); act != test.exp {
			t.Errorf("OpCode(0x%x).IsValid() = %v; want %v", byte(test.code), act, test.exp)
		}
	}
}

func TestEncodeCloseData(t *testing.T) {
	p := EncodeCloseData(StatusNormalClosure, "bye")
	code, reason := DecodeCloseData(p)
	if code != StatusNormalClosure {
		t.Fatalf("code = %v; want %v", code, StatusNormalClosure)
	}
	if reason != "bye" {
		t.Fatalf("reason = %q; want %q", reason, "bye")
	}
}

func TestEncodeCloseDataCropsReason(t *testing.T) {
	reason := make([]byte, 200)
	for i := range reason {
		reason[i] = 'a'
	}
	p := EncodeCloseData(StatusNormalClosure, string(reason))
	if len(p) != MaxControlFramePayloadSize {
		t.Fatalf("len(p) = %d; want %d", len(p), MaxControlFramePayloadSize)
	}
}

func TestDecodeCloseDataEmpty(t *testing.T) {
	code, reason := DecodeCloseData(nil)
	if code != 0 || reason != "" {
		t.Fatalf("got (%v, %q); want (0, \"\")", code, reason)
	}
}

func TestMaskFrameWithIsInvolution(t *testing.T) {
	f := NewTextFrame("hello, world")
	orig := append([]byte(nil), f.Payload...)

	masked := MaskFrameWith(f, [4]byte{1, 2, 3, 4})
	if !masked.Header.Masked {
		t.Fatal("expected Masked to be true")
	}

	unmasked := make([]byte, len(masked.Payload))
	copy(unmasked, masked.Payload)
	Cipher(unmasked, masked.Header.Mask, 0)

	if string(unmasked) != string(orig) {
		t.Fatalf("unmasked = %q; want %q", unmasked, orig)
	}
}
