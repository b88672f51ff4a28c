package client

import (
	"github.com/eapache/queue"

	"github.com/Hostle/websockets"
)

// frameQueue is a FIFO of received frames: Push appends at the back,
// Pop/Front operate on the oldest entry. It owns no transport state.
type frameQueue struct {
	q *queue.Queue
}

func newFrameQueue() *frameQueue {
	return &frameQueue{q: queue.New()}
}

func (fq *frameQueue) Push(f websockets.Frame) {
	fq.q.Add(f)
}

func (fq *frameQueue) Front() (websockets.Frame, bool) {
	if fq.q.Length() == 0 {
		return websockets.Frame{}, false
	}
	return fq.q.Peek().(websockets.Frame), true
}

func (fq *frameQueue) Pop() (websockets.Frame, bool) {
	if fq.q.Length() == 0 {
		return websockets.Frame{}, false
	}
	f := fq.q.Peek().(websockets.Frame)
	fq.q.Remove()
	return f, true
}

func (fq *frameQueue) Len() int {
	return fq.q.Length()
}

// PeekAt returns the frame at position i from the front (0 = oldest)
// without removing it, for the assembler's look-ahead scan.
func (fq *frameQueue) PeekAt(i int) (websockets.Frame, bool) {
	if i < 0 || i >= fq.q.Length() {
		return websockets.Frame{}, false
	}
	return fq.q.Get(i).(websockets.Frame), true
}
