package spsc

import "runtime"

// Sender is the write side of the queue. Exactly one Sender exists per region
// and it must only be used from one goroutine at a time.
type Sender[T any] struct {
	noCopy noCopy
	r      *region[T]
	closed bool
}

func newSender[T any](r *region[T]) *Sender[T] {
	s := &Sender[T]{r: r}
	// A Sender dropped without Close still leaves the region.
	runtime.SetFinalizer(s, (*Sender[T]).Close)
	return s
}

// TrySend enqueues v without blocking. On success it returns the zero value
// and true. When the queue is full v is handed back unchanged with false and
// nothing else happens.
func (s *Sender[T]) TrySend(v T) (T, bool) {
	if s.closed {
		panic(ErrClosed)
	}
	r := s.r

	head := r.head.Load() // only we write head
	tail := r.tail.Load() // pairs with the Receiver's store of tail
	if head-tail == r.capacity {
		return v, false
	}

	r.slots[r.index(head)] = v
	// Publishing head makes the slot write visible to the Receiver.
	r.head.Store(head + 1)
	// The finalizer must not close s while the slot is being written.
	runtime.KeepAlive(s)

	var zero T
	return zero, true
}

// Cap returns the fixed number of slots.
func (s *Sender[T]) Cap() uint64 {
	return s.r.capacity
}

// UsedSlots returns how many values are queued. The Receiver may be draining
// concurrently, so the count can only shrink until the next TrySend.
func (s *Sender[T]) UsedSlots() uint64 {
	return s.r.used()
}

// FreeSlots returns how many TrySend calls would succeed right now at least.
func (s *Sender[T]) FreeSlots() uint64 {
	return s.r.capacity - s.r.used()
}

// PeerClosed reports whether the Receiver has been closed. Once it returns
// true nothing sent will ever be received.
func (s *Sender[T]) PeerClosed() bool {
	return s.r.consumerGone.Load()
}

// Close leaves the region. If the Receiver is already closed, the values
// still queued are disposed and the region is released. Close is idempotent.
func (s *Sender[T]) Close() {
	if s.closed {
		return
	}
	s.closed = true
	runtime.SetFinalizer(s, nil)

	s.r.producerGone.Store(true)
	s.r.leave()
}
