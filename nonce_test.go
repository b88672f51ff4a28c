package websockets

import "testing"

// TestAcceptCanonicalExample checks the RFC 6455 worked example directly:
// https://tools.ietf.org/html/rfc6455#section-1.3
func TestAcceptCanonicalExample(t *testing.T) {
	const (
		nonce = "dGhlIHNhbXBsZSBub25jZQ=="
		want  = "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	)
	if got := Accept(nonce); got != want {
		t.Fatalf("Accept(%q) = %q; want %q", nonce, got, want)
	}
	if !CheckAccept(want, nonce) {
		t.Fatalf("CheckAccept(%q, %q) = false; want true", want, nonce)
	}
}

func TestCheckAcceptRejectsMismatch(t *testing.T) {
	const nonce = "dGhlIHNhbXBsZSBub25jZQ=="
	if CheckAccept("bm90IHRoZSByaWdodCB2YWx1ZQ==", nonce) {
		t.Fatal("CheckAccept accepted a wrong value")
	}
}

func TestNewNonceLength(t *testing.T) {
	n, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	if len(n) != 24 {
		t.Fatalf("len(NewNonce()) = %d; want 24 (base64 of 16 bytes)", len(n))
	}
	n2, err := NewNonce()
	if err != nil {
		t.Fatal(err)
	}
	if n == n2 {
		t.Fatal("two calls to NewNonce produced the same value")
	}
}

func BenchmarkAccept(b *testing.B) {
	const nonce = "dGhlIHNhbXBsZSBub25jZQ=="
	for i := 0; i < b.N; i++ {
		Accept(nonce)
	}
}
