package websockets

import "encoding/binary"

const (
	finBit  = 0x80
	maskBit = 0x80
	len16   = 1<<16 - 1
)

// Encode serializes f as a client-to-server frame: the header's mask bit is
// always set and a freshly generated random 32-bit key is used to mask the
// payload, regardless of f.Header.Masked/Mask (spec.md §4.3 — "the codec
// overrides [mask] to true for client emission"). f itself is not mutated;
// the returned bytes hold a masked copy of the payload.
//
// Encode fails with a CryptoError if the mask key's random source fails.
func Encode(f Frame) ([]byte, error) {
	mask, err := NewMask()
	if err != nil {
		return nil, err
	}
	return EncodeWithMask(f, mask), nil
}

// EncodeWithMask is like Encode but uses the given mask instead of
// generating one, which is useful for deterministic tests.
func EncodeWithMask(f Frame, mask [4]byte) []byte {
	payload := f.Payload
	n := len(payload)

	size := 2
	var lenByte byte
	switch {
	case n < 126:
		lenByte = byte(n)
	case n <= len16:
		lenByte = 126
		size += 2
	default:
		lenByte = 127
		size += 8
	}
	lenByte |= maskBit
	size += 4 + n

	out := make([]byte, size)

	if f.Header.Fin {
		out[0] = finBit
	}
	out[0] |= byte(f.Header.OpCode)
	out[1] = lenByte

	pos := 2
	switch lenByte &^ maskBit {
	case 126:
		binary.BigEndian.PutUint16(out[pos:], uint16(n))
		pos += 2
	case 127:
		binary.BigEndian.PutUint64(out[pos:], uint64(n))
		pos += 8
	}

	copy(out[pos:], mask[:])
	pos += 4

	copy(out[pos:], payload)
	Cipher(out[pos:pos+n], mask, 0)

	return out
}

// DecodeResult is the outcome of a single Decode call.
type DecodeResult struct {
	// Frame is populated only when Complete is true.
	Frame Frame
	// Consumed is the number of leading bytes of the input that made up
	// Frame, valid only when Complete is true.
	Consumed int
	// Complete reports whether buf held one full frame. If false (and err
	// is nil) the caller should wait for more bytes and retry — this is
	// spec.md's INCOMPLETE outcome.
	Complete bool
}

// Decode parses a single frame out of the front of buf. It is a pure
// function: it never blocks and never mutates buf.
//
// Three outcomes, matching spec.md §4.3:
//   - INCOMPLETE: err is nil, result.Complete is false. buf did not contain
//     a whole frame; no payload was allocated.
//   - ERROR: err is non-nil (a ProtocolError). buf contains malformed
//     framing that cannot be recovered from.
//   - COMPLETE: err is nil, result.Complete is true, result.Consumed bytes
//     were used and result.Frame is populated, with its payload unmasked
//     if the frame had the mask bit set.
func Decode(buf []byte) (DecodeResult, error) {
	if len(buf) < 2 {
		return DecodeResult{}, nil
	}

	var h Header
	h.Fin = buf[0]&finBit != 0
	h.OpCode = OpCode(buf[0] & 0x0f)

	masked := buf[1]&maskBit != 0
	lenField := buf[1] &^ maskBit

	extra := 0
	if masked {
		extra += 4
	}

	switch {
	case lenField < 126:
		h.Length = int64(lenField)
	case lenField == 126:
		extra += 2
	case lenField == 127:
		extra += 8
	}

	required := 2 + extra
	if len(buf) < required {
		return DecodeResult{}, nil
	}

	pos := 2
	switch lenField {
	case 126:
		h.Length = int64(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
	case 127:
		v := binary.BigEndian.Uint64(buf[pos:])
		if v&0x8000000000000000 != 0 {
			return DecodeResult{}, &Error{Op: "decode", Kind: ProtocolError, Err: errString("most significant bit of 64-bit length must be 0")}
		}
		h.Length = int64(v)
		pos += 8
	}

	if h.Length > MaxPayloadSize {
		return DecodeResult{}, ErrPayloadTooLarge
	}

	var mask [4]byte
	if masked {
		copy(mask[:], buf[pos:pos+4])
		pos += 4
	}

	required = pos + int(h.Length)
	if len(buf) < required {
		return DecodeResult{}, nil
	}

	payload := make([]byte, h.Length)
	copy(payload, buf[pos:required])
	if masked {
		Cipher(payload, mask, 0)
	}

	h.Masked = masked
	h.Mask = mask

	return DecodeResult{
		Frame:    Frame{Header: h, Payload: payload},
		Consumed: required,
		Complete: true,
	}, nil
}
