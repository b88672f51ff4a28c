package client

import (
	"github.com/Hostle/websockets"
)

// ErrUnexpectedContinuation is returned when the oldest frame in the
// received queue is a CONTINUATION frame with no preceding TEXT/BINARY
// frame to continue.
var ErrUnexpectedContinuation = &websockets.Error{
	Op: "assemble", Kind: websockets.ProtocolError, Err: errStr("continuation frame with no preceding data frame"),
}

// Message is an assembled, defragmented application message: one or more
// data frames grouped under the FIN of the last one.
type Message struct {
	OpCode  websockets.OpCode
	Payload []byte
}

// tryAssemble inspects fq without mutating it unless a complete message
// is present, in which case it dequeues exactly the frames that make up
// that message. The one other case that mutates fq is a CONTINUATION frame
// at the front: that frame is dequeued and dropped, and
// ErrUnexpectedContinuation is returned. It implements the contiguous-prefix grouping rule: the
// oldest frame must be TEXT or BINARY, any frames after it up to (and
// including) the first fin=true frame are concatenated in order.
func tryAssemble(fq *frameQueue) (Message, bool, error) {
	if fq.Len() == 0 {
		return Message{}, false, nil
	}

	first, _ := fq.Front()
	if first.Header.OpCode == websockets.OpContinuation {
		fq.Pop()
		return Message{}, false, ErrUnexpectedContinuation
	}

	finIdx := -1
	for i := 0; i < fq.Len(); i++ {
		f, _ := fq.PeekAt(i)
		if f.Header.Fin {
			finIdx = i
			break
		}
	}
	if finIdx == -1 {
		return Message{}, false, nil
	}

	opcode := first.Header.OpCode
	var payload []byte
	for i := 0; i <= finIdx; i++ {
		f, _ := fq.Pop()
		payload = append(payload, f.Payload...)
	}

	return Message{OpCode: opcode, Payload: payload}, true, nil
}
