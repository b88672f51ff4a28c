package websockets

import "encoding/binary"

// remain[k] is the number of leading bytes of payload that must be XORed
// one at a time before the mask cycle realigns with an 8-byte boundary,
// given that k bytes of a previous chunk have already consumed the mask.
var remain = [4]int{0, 3, 2, 1}

// Cipher applies the RFC 6455 XOR cipher to payload in place using mask.
// offset lets callers cipher a payload in chunks (e.g. streaming a frame's
// body across several Read calls) by indicating how many prior bytes of
// the same payload have already been ciphered.
//
// The same algorithm masks and unmasks: applying Cipher twice with the
// same mask and offset restores the original bytes.
// See https://tools.ietf.org/html/rfc6455#section-5.3
func Cipher(payload []byte, mask [4]byte, offset int) {
	n := len(payload)
	if n < 8 {
		for i := 0; i < n; i++ {
			payload[i] ^= mask[(offset+i)%4]
		}
		return
	}

	// mpos is the mask's rotation at payload[0]; ln is how many leading
	// bytes must be done byte-by-byte to bring the mask back to index 0,
	// so the remainder can be XORed 8 bytes at a time.
	mpos := offset % 4
	ln := remain[mpos]
	rn := (n - ln) % 8

	for i := 0; i < ln; i++ {
		payload[i] ^= mask[(mpos+i)%4]
	}
	for i := n - rn; i < n; i++ {
		payload[i] ^= mask[(mpos+i)%4]
	}

	var m [8]byte
	copy(m[:4], mask[:])
	copy(m[4:], mask[:])
	m64 := binary.LittleEndian.Uint64(m[:])

	mid := payload[ln : n-rn]
	for i := 0; i+8 <= len(mid); i += 8 {
		v := binary.LittleEndian.Uint64(mid[i : i+8])
		binary.LittleEndian.PutUint64(mid[i:i+8], v^m64)
	}
}
