package queue

// SenderInterface is what every write half in this repo provides. It is used
// as a type constraint by the testbench and as a plain interface by the
// benchmark command.
type SenderInterface[T any] interface {
	// TrySend enqueues without blocking. When the queue is full the value is
	// returned unchanged together with false.
	TrySend(T) (T, bool)

	// PeerClosed reports whether the receiving side has been closed.
	PeerClosed() bool

	// FreeSlots returns how many more elements can be enqueued before the queue is full.
	FreeSlots() uint64

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64

	// Close releases the write half.
	Close()
}

// ReceiverInterface is what every read half in this repo provides.
type ReceiverInterface[T any] interface {
	// TryRecv removes and returns the oldest element.
	// If the queue is empty it returns an empty T and false.
	TryRecv() (T, bool)

	// PeerClosed reports whether the sending side has been closed.
	PeerClosed() bool

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64

	// Close releases the read half.
	Close()
}
