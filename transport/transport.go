// Package transport provides the non-blocking, poll-driven byte pipe that
// the client package drives the handshake and connection engine over. It
// knows nothing about WebSocket framing; it only connects, reads, writes,
// and closes, optionally through TLS.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Hostle/websockets"
)

// DefaultTimeout is the timeout every Transport returned by Connect starts
// with, until SetTimeout replaces it; it mirrors original_source's default of 10s.
const DefaultTimeout = 10 * time.Second

// readChunk bounds a single non-blocking read, matching original_source's
// vws_socket_read, which reads into a fixed 1024-byte stack buffer per
// poll-wakeup rather than trying to drain the socket in one call.
const readChunk = 1024

// Transport is a non-blocking TCP (optionally TLS) byte pipe. Read and
// Write each wait for readiness via poll, for at most the configured
// timeout, before attempting exactly one I/O operation. That operation
// itself has no deadline: a TLS read that needs more of a record than has
// arrived, or a raw read or write that gets EAGAIN after poll reported
// readiness, waits until the socket is ready again.
type Transport struct {
	mu      sync.Mutex
	tcp     *net.TCPConn
	tls     *tls.Conn
	raw     syscall.RawConn
	timeout time.Duration
	closed  bool
}

// Connect resolves host:port, opens a TCP connection, and — if useTLS is
// set — performs a TLS handshake over it using cfg (a nil cfg uses TLS
// defaults with host as the server name). The returned Transport's file
// descriptor is already switched to non-blocking mode.
func Connect(ctx context.Context, host string, port int, useTLS bool, cfg *tls.Config) (*Transport, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &websockets.Error{Op: "connect", Kind: websockets.NetError, Err: err}
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		conn.Close()
		return nil, &websockets.Error{Op: "connect", Kind: websockets.NetError, Err: errNotTCP}
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		tcpConn.Close()
		return nil, &websockets.Error{Op: "connect", Kind: websockets.NetError, Err: err}
	}

	if err := setNonblock(raw); err != nil {
		tcpConn.Close()
		return nil, &websockets.Error{Op: "connect", Kind: websockets.NetError, Err: err}
	}

	t := &Transport{
		tcp:     tcpConn,
		raw:     raw,
		timeout: DefaultTimeout,
	}

	if useTLS {
		tlsCfg := cfg
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: host}
		} else if tlsCfg.ServerName == "" {
			clone := tlsCfg.Clone()
			clone.ServerName = host
			tlsCfg = clone
		}

		tc := tls.Client(tcpConn, tlsCfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			tcpConn.Close()
			return nil, &websockets.Error{Op: "connect", Kind: websockets.TlsError, Err: err}
		}
		t.tls = tc
	}

	return t, nil
}

// SetTimeout updates the deadline used by the poll primitive in Read and
// Write. It takes effect on the next call to either.
func (t *Transport) SetTimeout(d time.Duration) {
	t.mu.Lock()
	t.timeout = d
	t.mu.Unlock()
}

// Read waits for the socket to become readable and performs one read,
// returning up to readChunk bytes. A zero-length, nil-error result means
// the peer closed the connection in an orderly way (EOF).
func (t *Transport) Read() ([]byte, error) {
	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	ready, err := t.poll(unix.POLLIN, timeout)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, &websockets.Error{Op: "read", Kind: websockets.Timeout, Err: errTimeout}
	}

	if t.tls != nil {
		buf := make([]byte, readChunk)
		n, err := t.tls.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf[:n], nil
			}
			return nil, &websockets.Error{Op: "read", Kind: websockets.TlsError, Err: err}
		}
		return buf[:n], nil
	}

	var (
		buf = make([]byte, readChunk)
		n   int
		rd  error
	)
	cerr := t.raw.Read(func(fd uintptr) bool {
		n, rd = syscall.Read(int(fd), buf)
		if rd == syscall.EAGAIN {
			return false
		}
		return true
	})
	if cerr != nil {
		return nil, &websockets.Error{Op: "read", Kind: websockets.NetError, Err: cerr}
	}
	if rd != nil {
		return nil, &websockets.Error{Op: "read", Kind: websockets.NetError, Err: rd}
	}
	if n == 0 {
		return nil, nil
	}
	return buf[:n], nil
}

// Write waits for the socket to become writable and performs one write of
// up to len(p) bytes, returning the number of bytes actually written.
// Callers loop on short writes themselves.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	timeout := t.timeout
	t.mu.Unlock()

	ready, err := t.poll(unix.POLLOUT, timeout)
	if err != nil {
		return 0, err
	}
	if !ready {
		return 0, &websockets.Error{Op: "write", Kind: websockets.Timeout, Err: errTimeout}
	}

	if t.tls != nil {
		n, err := t.tls.Write(p)
		if err != nil {
			return n, &websockets.Error{Op: "write", Kind: websockets.TlsError, Err: err}
		}
		return n, nil
	}

	var (
		n  int
		wr error
	)
	cerr := t.raw.Write(func(fd uintptr) bool {
		n, wr = syscall.Write(int(fd), p)
		if wr == syscall.EAGAIN {
			return false
		}
		return true
	})
	if cerr != nil {
		return 0, &websockets.Error{Op: "write", Kind: websockets.NetError, Err: cerr}
	}
	if wr != nil {
		return n, &websockets.Error{Op: "write", Kind: websockets.NetError, Err: wr}
	}
	return n, nil
}

// Close shuts down the TLS session (if any) and the underlying socket. It
// is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	if t.tls != nil {
		if err := t.tls.Close(); err != nil {
			t.tcp.Close()
			return &websockets.Error{Op: "close", Kind: websockets.TlsError, Err: err}
		}
		return nil
	}

	if err := t.tcp.Close(); err != nil {
		return &websockets.Error{Op: "close", Kind: websockets.NetError, Err: err}
	}
	return nil
}

// poll waits up to timeout for the connection's raw fd to become ready for
// the given events, reporting false (not an error) when the deadline
// elapses with no readiness.
func (t *Transport) poll(events int16, timeout time.Duration) (bool, error) {
	var (
		ready bool
		perr  error
	)
	ms := int(timeout / time.Millisecond)
	cerr := t.raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		n, err := unix.Poll(fds, ms)
		if err != nil {
			if err == unix.EINTR {
				return
			}
			perr = err
			return
		}
		ready = n > 0
	})
	if cerr != nil {
		return false, &websockets.Error{Op: "poll", Kind: websockets.NetError, Err: cerr}
	}
	if perr != nil {
		return false, &websockets.Error{Op: "poll", Kind: websockets.NetError, Err: perr}
	}
	return ready, nil
}

func setNonblock(raw syscall.RawConn) error {
	var serr error
	cerr := raw.Control(func(fd uintptr) {
		serr = syscall.SetNonblock(int(fd), true)
	})
	if cerr != nil {
		return cerr
	}
	return serr
}

var errNotTCP = simpleErr("connection is not a *net.TCPConn")
var errTimeout = simpleErr("poll timed out before readiness")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
