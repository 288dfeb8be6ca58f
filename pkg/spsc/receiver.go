package spsc

import "runtime"

// Receiver is the read side of the queue. Exactly one Receiver exists per
// region and it must only be used from one goroutine at a time.
type Receiver[T any] struct {
	noCopy noCopy
	r      *region[T]
	closed bool
}

func newReceiver[T any](r *region[T]) *Receiver[T] {
	rx := &Receiver[T]{r: r}
	runtime.SetFinalizer(rx, (*Receiver[T]).Close)
	return rx
}

// TryRecv dequeues the oldest value without blocking. It returns the zero
// value and false when the queue is empty.
func (rx *Receiver[T]) TryRecv() (T, bool) {
	if rx.closed {
		panic(ErrClosed)
	}
	r := rx.r

	var zero T
	tail := r.tail.Load() // only we write tail
	head := r.head.Load() // pairs with the Sender's store of head
	if tail == head {
		return zero, false
	}

	slot := &r.slots[r.index(tail)]
	v := *slot
	*slot = zero // drop the reference, the slot is empty again
	// Publishing tail hands the slot back to the Sender.
	r.tail.Store(tail + 1)
	runtime.KeepAlive(rx)
	return v, true
}

// Cap returns the fixed number of slots.
func (rx *Receiver[T]) Cap() uint64 {
	return rx.r.capacity
}

// UsedSlots returns how many values are ready to be received at least.
func (rx *Receiver[T]) UsedSlots() uint64 {
	return rx.r.used()
}

// FreeSlots returns how many slots are currently free.
func (rx *Receiver[T]) FreeSlots() uint64 {
	return rx.r.capacity - rx.r.used()
}

// PeerClosed reports whether the Sender has been closed. Values sent before
// the Sender closed are still received; once PeerClosed is true and TryRecv
// reports empty, the queue stays empty.
func (rx *Receiver[T]) PeerClosed() bool {
	return rx.r.producerGone.Load()
}

// Close leaves the region. If the Sender is already closed, the values still
// queued are disposed and the region is released. Close is idempotent.
func (rx *Receiver[T]) Close() {
	if rx.closed {
		return
	}
	rx.closed = true
	runtime.SetFinalizer(rx, nil)

	rx.r.consumerGone.Store(true)
	rx.r.leave()
}
