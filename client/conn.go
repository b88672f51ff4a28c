package client

import (
	"github.com/gobwas/pool/pbytes"

	"github.com/Hostle/websockets"
	"github.com/Hostle/websockets/transport"
)

// State is one of the three connection lifecycle states.
type State int

const (
	// StateClosed is the initial state and the state after Disconnect.
	StateClosed State = iota
	// StateConnected is entered after a successful handshake.
	StateConnected
	// StateClosing is entered after a CLOSE frame is received; the engine
	// has reflected its own CLOSE and is waiting for the caller to
	// disconnect.
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Conn is the connection engine: it owns a Transport, a receive buffer,
// and the FIFO of frames that have been decoded but not yet claimed by
// ReceiveFrame/ReceiveMessage. Conn is not goroutine-safe; callers that
// need concurrent send and receive must serialize externally.
type Conn struct {
	tr      *transport.Transport
	recv    []byte
	queue   *frameQueue
	state   State
	lastErr error

	onDisconnect func()
}

func newConn(tr *transport.Transport, onDisconnect func()) *Conn {
	return &Conn{
		tr:           tr,
		queue:        newFrameQueue(),
		state:        StateConnected,
		onDisconnect: onDisconnect,
	}
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State { return c.state }

// Err returns the most recently observed error, mirroring the "error
// slot" the connection keeps for inspection after a receive returns
// nothing.
func (c *Conn) Err() error { return c.lastErr }

func (c *Conn) setErr(err error) error {
	c.lastErr = err
	return err
}

// maxRecvBuffer bounds the unparsed receive buffer, not any single
// frame's payload (websockets.Decode enforces websockets.MaxPayloadSize
// per frame already). It exists for a peer that floods bytes without
// ever completing one frame header.
const maxRecvBuffer = websockets.MaxPayloadSize + 1<<16

// ErrRecvBufferTooLarge is returned by feed when accepting chunk would
// grow the receive buffer past maxRecvBuffer before a single frame has
// been decoded out of it.
var ErrRecvBufferTooLarge = &websockets.Error{
	Op: "ingress", Kind: websockets.MemError, Err: errStr("receive buffer exceeded sanity ceiling"),
}

// feed appends newly read bytes onto the receive buffer, compacting it
// through a pooled scratch buffer rather than growing the slice in place
// indefinitely.
func (c *Conn) feed(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	need := len(c.recv) + len(chunk)
	if need > maxRecvBuffer {
		return c.setErr(ErrRecvBufferTooLarge)
	}
	merged := pbytes.GetLen(need)
	n := copy(merged, c.recv)
	copy(merged[n:], chunk)
	if c.recv != nil {
		pbytes.Put(c.recv)
	}
	c.recv = merged
	return nil
}

func (c *Conn) drain(n int) {
	if n <= 0 {
		return
	}
	remaining := len(c.recv) - n
	if remaining <= 0 {
		pbytes.Put(c.recv)
		c.recv = nil
		return
	}
	tail := pbytes.GetLen(remaining)
	copy(tail, c.recv[n:])
	pbytes.Put(c.recv)
	c.recv = tail
}

// Ingress drains the receive buffer, dispatching every complete frame it
// contains, and returns the total number of bytes consumed. It stops at
// the first INCOMPLETE result (not an error) and returns immediately on
// the first ERROR result.
func (c *Conn) Ingress() (int, error) {
	total := 0
	for len(c.recv) > 0 {
		res, err := websockets.Decode(c.recv)
		if err != nil {
			return total, c.setErr(err)
		}
		if !res.Complete {
			return total, nil
		}
		if err := websockets.CheckHeader(res.Frame.Header); err != nil {
			return total, c.setErr(err)
		}

		c.dispatch(res.Frame)
		c.drain(res.Consumed)
		total += res.Consumed
	}
	return total, nil
}

// dispatch routes one decoded frame per spec: data frames are queued,
// PING is echoed with a PONG, CLOSE triggers a reflected CLOSE and a
// transition to StateClosing, PONG and unrecognized opcodes are
// discarded. Control-frame replies are best-effort: a write failure
// here does not fail the caller's current operation.
func (c *Conn) dispatch(f websockets.Frame) {
	switch f.Header.OpCode {
	case websockets.OpText, websockets.OpBinary, websockets.OpContinuation:
		c.queue.Push(f)

	case websockets.OpClose:
		c.state = StateClosing
		status := websockets.StatusNormalClosure
		code, reason := websockets.DecodeCloseData(f.Payload)
		if err := websockets.CheckCloseFrameData(code, reason); err != nil {
			status = websockets.StatusProtocolError
		}
		reply := websockets.NewCloseFrame(status, "")
		c.sendFrameBestEffort(reply)

	case websockets.OpPing:
		reply := websockets.NewPongFrame(f.Payload)
		c.sendFrameBestEffort(reply)

	case websockets.OpPong:
		// discarded

	default:
		// discarded
	}
}

func (c *Conn) sendFrameBestEffort(f websockets.Frame) {
	_ = c.SendFrame(f)
}

// ReceiveFrame returns the oldest queued frame, reading and running
// Ingress as needed until one is available or the transport reports
// nothing (timeout, orderly close, or error — in all three cases this
// returns ok=false, with Err() set on failure).
func (c *Conn) ReceiveFrame() (websockets.Frame, bool) {
	for {
		if f, ok := c.queue.Pop(); ok {
			return f, true
		}
		if !c.readMore() {
			return websockets.Frame{}, false
		}
	}
}

// ReceiveMessage returns the oldest assembled message, reading and
// running Ingress as needed.
func (c *Conn) ReceiveMessage() (Message, bool) {
	for {
		msg, ok, err := tryAssemble(c.queue)
		if err != nil {
			c.setErr(err)
			return Message{}, false
		}
		if ok {
			return msg, true
		}
		if !c.readMore() {
			return Message{}, false
		}
	}
}

// readMore performs one Transport.Read and runs Ingress over whatever
// came back, reporting whether the caller should keep looping.
func (c *Conn) readMore() bool {
	chunk, err := c.tr.Read()
	if err != nil {
		c.setErr(err)
		return false
	}
	if len(chunk) == 0 {
		return false
	}
	if err := c.feed(chunk); err != nil {
		return false
	}
	if _, err := c.Ingress(); err != nil {
		return false
	}
	return true
}

// SendFrame serializes f (masking it, as all client-emitted frames must
// be) and writes the result to the transport, looping through short
// writes until the whole frame is on the wire.
func (c *Conn) SendFrame(f websockets.Frame) error {
	bts, err := websockets.Encode(f)
	if err != nil {
		return c.setErr(err)
	}
	if err := writeAll(c.tr, bts); err != nil {
		return c.setErr(err)
	}
	return nil
}

// SendText sends data as a single, final TEXT frame.
func (c *Conn) SendText(data string) error {
	return c.SendFrame(websockets.NewTextFrame(data))
}

// SendBinary sends data as a single, final BINARY frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.SendFrame(websockets.NewBinaryFrame(data))
}

// Disconnect invokes the optional disconnect callback, best-effort sends
// a normal-closure CLOSE frame if still connected, and closes the
// transport. It is idempotent.
func (c *Conn) Disconnect() error {
	if c.state == StateClosed {
		return nil
	}

	if c.onDisconnect != nil {
		c.onDisconnect()
	}

	if c.state == StateConnected {
		c.sendFrameBestEffort(websockets.NewCloseFrame(websockets.StatusNormalClosure, ""))
	}

	c.state = StateClosed

	if c.recv != nil {
		pbytes.Put(c.recv)
		c.recv = nil
	}

	return c.tr.Close()
}
