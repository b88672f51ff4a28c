// Package client drives a websockets.Frame codec over a transport.Transport
// to produce a working RFC 6455 client connection: the opening handshake,
// the ingress/dispatch loop, message assembly, and the send path.
//
// Dial is the entry point: it is the only way to obtain a Conn. The
// handshake, the Conn constructor and the frame queue are unexported, so
// a caller cannot run them over a Transport of its own.
package client
