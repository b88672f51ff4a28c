package client

import (
	"context"
	"crypto/tls"
	"net/url"
	"strconv"
	"time"

	"github.com/Hostle/websockets"
	"github.com/Hostle/websockets/transport"
)

// Option configures a Dial call.
type Option func(*dialOptions)

type dialOptions struct {
	timeout           time.Duration
	tlsConfig         *tls.Config
	handshakeHeader   map[string]string
	disconnectHandler func()
}

// WithTimeout sets the per-connection read/write/handshake deadline.
// Defaults to transport.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *dialOptions) { o.timeout = d }
}

// WithTLSConfig supplies the *tls.Config used for "wss" URLs.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *dialOptions) { o.tlsConfig = cfg }
}

// WithHandshakeHeader adds extra header lines to the upgrade request.
func WithHandshakeHeader(h map[string]string) Option {
	return func(o *dialOptions) { o.handshakeHeader = h }
}

// WithDisconnectHandler registers a callback invoked once, synchronously,
// at the start of Disconnect.
func WithDisconnectHandler(fn func()) Option {
	return func(o *dialOptions) { o.disconnectHandler = fn }
}

// Dial parses rawurl, connects a Transport, runs the opening handshake,
// and returns a Conn in StateConnected. It is the one-shot convenience
// entry point spec.md's Transport/Handshake/Connection split otherwise
// requires three separate calls to reach.
func Dial(ctx context.Context, rawurl string, opts ...Option) (*Conn, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, &websockets.Error{Op: "dial", Kind: websockets.HandshakeError, Err: err}
	}

	var o dialOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout == 0 {
		o.timeout = transport.DefaultTimeout
	}

	useTLS := u.Scheme == "wss"
	host, port, err := hostPort(u, useTLS)
	if err != nil {
		return nil, &websockets.Error{Op: "dial", Kind: websockets.HandshakeError, Err: err}
	}

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	tr, err := transport.Connect(dialCtx, host, port, useTLS, o.tlsConfig)
	if err != nil {
		return nil, err
	}
	tr.SetTimeout(o.timeout)

	leftover, err := handshake(u, tr, o.handshakeHeader)
	if err != nil {
		tr.Close()
		return nil, err
	}

	conn := newConn(tr, o.disconnectHandler)
	if err := conn.feed(leftover); err != nil {
		conn.Disconnect()
		return nil, err
	}
	if _, err := conn.Ingress(); err != nil {
		conn.Disconnect()
		return nil, err
	}

	return conn, nil
}

func hostPort(u *url.URL, useTLS bool) (string, int, error) {
	host := u.Hostname()
	portStr := u.Port()
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, err
		}
		return host, p, nil
	}
	if useTLS {
		return host, 443, nil
	}
	return host, 80, nil
}
