package buffered

import (
	"sync/atomic"

	"github.com/i5heu/GoSPSC/pkg/spsc"
)

// pipe is the state shared by a channel-backed Sender/Receiver pair.
type pipe[T any] struct {
	ch           chan T
	producerGone atomic.Bool
	consumerGone atomic.Bool
}

// Sender is the write half of a buffered Go channel, exposing the same
// non-blocking API as spsc.Sender.
type Sender[T any] struct {
	p      *pipe[T]
	closed bool
}

// Receiver is the read half of a buffered Go channel.
type Receiver[T any] struct {
	p      *pipe[T]
	closed bool
}

func New[T any](bufferSize uint64) (*Sender[T], *Receiver[T]) {
	// Enforce minimum capacity of 1 to ensure proper bounded buffer semantics.
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not a zero-capacity buffer, which would cause unexpected behavior.
	if bufferSize < 1 {
		bufferSize = 1
	}
	p := &pipe[T]{ch: make(chan T, bufferSize)}
	return &Sender[T]{p: p}, &Receiver[T]{p: p}
}

func (s *Sender[T]) TrySend(val T) (T, bool) {
	if s.closed {
		panic(spsc.ErrClosed)
	}
	select {
	case s.p.ch <- val:
		var zero T
		return zero, true
	default:
		return val, false
	}
}

func (s *Sender[T]) PeerClosed() bool {
	return s.p.consumerGone.Load()
}

func (s *Sender[T]) Cap() uint64 {
	return uint64(cap(s.p.ch))
}

func (s *Sender[T]) FreeSlots() uint64 {
	return uint64(cap(s.p.ch) - len(s.p.ch))
}

func (s *Sender[T]) UsedSlots() uint64 {
	return uint64(len(s.p.ch))
}

// Close closes the channel; buffered values stay receivable.
func (s *Sender[T]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.p.producerGone.Store(true)
	close(s.p.ch)
}

func (r *Receiver[T]) TryRecv() (val T, ok bool) {
	if r.closed {
		panic(spsc.ErrClosed)
	}
	select {
	case val, ok = <-r.p.ch:
		return val, ok
	default:
		return val, false
	}
}

func (r *Receiver[T]) PeerClosed() bool {
	return r.p.producerGone.Load()
}

func (r *Receiver[T]) Cap() uint64 {
	return uint64(cap(r.p.ch))
}

func (r *Receiver[T]) FreeSlots() uint64 {
	return uint64(cap(r.p.ch) - len(r.p.ch))
}

func (r *Receiver[T]) UsedSlots() uint64 {
	return uint64(len(r.p.ch))
}

// Close marks the receiver gone. Buffered values are left to the garbage
// collector; the baseline has no dispose step.
func (r *Receiver[T]) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.p.consumerGone.Store(true)
}
