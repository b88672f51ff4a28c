package websockets

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"hash"
	"sync"
)

const (
	// RFC6455: The value of this header field MUST be a nonce consisting of a
	// randomly selected 16-byte value that has been base64-encoded (see
	// Section 4 of [RFC4648]). The nonce MUST be selected randomly for each
	// connection.
	nonceKeySize = 16

	// acceptSize is base64.StdEncoding.EncodedLen(sha1.Size).
	acceptSize = 28
)

var webSocketMagic = []byte("258EAFA5-E914-47DA-95CA-C5AB0DC85B11")

var sha1Pool = sync.Pool{New: func() any { return sha1.New() }}

func acquireSha1() hash.Hash { return sha1Pool.Get().(hash.Hash) }

func releaseSha1(h hash.Hash) {
	h.Reset()
	sha1Pool.Put(h)
}

// NewNonce generates the 16-byte, base64-encoded client nonce sent as the
// Sec-WebSocket-Key header during the handshake. Failure of the underlying
// CSPRNG is a CryptoError, per spec.md §7/§9.
func NewNonce() (string, error) {
	raw := make([]byte, nonceKeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", &Error{Kind: CryptoError, Op: "nonce", Err: err}
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Accept computes the expected Sec-WebSocket-Accept value for a given
// client nonce: base64(SHA1(nonce + the RFC 6455 magic GUID)).
// See https://tools.ietf.org/html/rfc6455#section-1.3
func Accept(nonce string) string {
	sha := acquireSha1()
	defer releaseSha1(sha)

	sha.Write([]byte(nonce))
	sha.Write(webSocketMagic)

	var sum [sha1.Size]byte
	return base64.StdEncoding.EncodeToString(sha.Sum(sum[:0]))
}

// CheckAccept reports whether accept is the correct Sec-WebSocket-Accept
// value for the given client nonce, comparing byte-for-byte as spec.md §4.2
// requires.
func CheckAccept(accept, nonce string) bool {
	if len(accept) != acceptSize {
		return false
	}
	return Accept(nonce) == accept
}
