package client

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/httphead"

	"github.com/Hostle/websockets"
	"github.com/Hostle/websockets/transport"
)

// ErrMissingAcceptHeader is returned when the server's response has no
// Sec-WebSocket-Accept header at all.
var ErrMissingAcceptHeader = &websockets.Error{
	Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("missing Sec-WebSocket-Accept header"),
}

// ErrAcceptMismatch is returned when Sec-WebSocket-Accept does not match
// the value derived from the request's Sec-WebSocket-Key.
var ErrAcceptMismatch = &websockets.Error{
	Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("Sec-WebSocket-Accept mismatch"),
}

// ErrBadStatus is returned when the server's status line is not "101".
var ErrBadStatus = &websockets.Error{
	Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("unexpected HTTP status"),
}

// ErrNotUpgrade is returned when the Upgrade or Connection response
// headers do not name a websocket upgrade.
var ErrNotUpgrade = &websockets.Error{
	Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("response did not upgrade to websocket"),
}

type errStr string

func (e errStr) Error() string { return string(e) }

// response holds the parsed fields of the server's handshake reply.
type response struct {
	status  int
	headers map[string]string
}

func (r response) header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

// buildRequest renders the upgrade request as the 8 CRLF-terminated lines
// an RFC 6455 client handshake is made of, then one line per extraHeader
// entry, followed by the blank line that terminates an HTTP request.
func buildRequest(u *url.URL, key string, extraHeader map[string]string) []byte {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "GET %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&buf, "Host: %s\r\n", u.Host)
	buf.WriteString("Cache-Control: no-cache\r\n")
	fmt.Fprintf(&buf, "Origin: %s\r\n", originOf(u))
	buf.WriteString("Upgrade: websocket\r\n")
	buf.WriteString("Connection: Upgrade\r\n")
	fmt.Fprintf(&buf, "Sec-WebSocket-Key: %s\r\n", key)
	buf.WriteString("Sec-WebSocket-Version: 13\r\n")
	for k, v := range extraHeader {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}

func originOf(u *url.URL) string {
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// writeAll loops Transport.Write until every byte of p has been sent.
func writeAll(tr *transport.Transport, p []byte) error {
	for len(p) > 0 {
		n, err := tr.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// handshake drives the client side of the RFC 6455 opening handshake over
// tr. On success it returns any bytes the server wrote immediately after
// the handshake response (frames pipelined ahead of the caller's first
// read), which the caller must seed its own receive buffer with.
func handshake(u *url.URL, tr *transport.Transport, extraHeader map[string]string) ([]byte, error) {
	key, err := websockets.NewNonce()
	if err != nil {
		return nil, err
	}

	req := buildRequest(u, key, extraHeader)
	if err := writeAll(tr, req); err != nil {
		return nil, err
	}

	var buf []byte
	for {
		idx := bytes.Index(buf, []byte("\r\n\r\n"))
		if idx >= 0 {
			head, rest := buf[:idx], buf[idx+4:]
			resp, err := parseResponse(head)
			if err != nil {
				return nil, err
			}
			if err := validateResponse(resp, key); err != nil {
				return nil, err
			}
			return rest, nil
		}

		chunk, err := tr.Read()
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return nil, &websockets.Error{Op: "handshake", Kind: websockets.NetError, Err: errStr("connection closed during handshake")}
		}
		buf = append(buf, chunk...)
	}
}

func parseResponse(head []byte) (response, error) {
	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 {
		return response{}, &websockets.Error{Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("empty response")}
	}

	status, err := parseStatusLine(lines[0])
	if err != nil {
		return response{}, err
	}

	headers := make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return response{}, &websockets.Error{Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("malformed header line")}
		}
		k := strings.ToLower(strings.TrimSpace(line[:colon]))
		v := strings.TrimSpace(line[colon+1:])
		headers[k] = v
	}

	return response{status: status, headers: headers}, nil
}

func parseStatusLine(line string) (int, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return 0, &websockets.Error{Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("malformed status line")}
	}
	status := 0
	for _, c := range parts[1] {
		if c < '0' || c > '9' {
			return 0, &websockets.Error{Op: "handshake", Kind: websockets.HandshakeError, Err: errStr("malformed status code")}
		}
		status = status*10 + int(c-'0')
	}
	return status, nil
}

func validateResponse(resp response, key string) error {
	if resp.status != 101 {
		return ErrBadStatus
	}

	upgrade, ok := resp.header("Upgrade")
	if !ok || !strings.EqualFold(upgrade, "websocket") {
		return ErrNotUpgrade
	}

	conn, ok := resp.header("Connection")
	if !ok || !hasUpgradeToken([]byte(conn)) {
		return ErrNotUpgrade
	}

	accept, ok := resp.header("Sec-WebSocket-Accept")
	if !ok {
		return ErrMissingAcceptHeader
	}
	if !websockets.CheckAccept(accept, key) {
		return ErrAcceptMismatch
	}

	return nil
}

// hasUpgradeToken reports whether the comma-separated Connection header
// value contains the "upgrade" token, scanning it the same way the
// dependency tokenizes any comma-separated header list (Connection, TE,
// Accept-Encoding, ...).
func hasUpgradeToken(v []byte) bool {
	found := false
	httphead.ScanTokens(v, func(tok []byte) bool {
		if bytes.EqualFold(tok, []byte("upgrade")) {
			found = true
			return false
		}
		return true
	})
	return found
}
