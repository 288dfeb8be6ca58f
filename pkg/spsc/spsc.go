// Package spsc implements a bounded, lock-free, single-producer/single-consumer
// ring buffer split into two handles: a Sender owning the write cursor and a
// Receiver owning the read cursor.
//
// Both TrySend and TryRecv are poll-only. They never block, never retry and
// never take a lock. Callers that want to wait for room or for data poll from
// outside (see package poll).
//
// The shared region is released exactly once, by whichever handle is closed
// second. Values still buffered at that point are disposed before the slots
// are dropped.
package spsc

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

var (
	// ErrClosed is the panic value for TrySend/TryRecv on a closed handle.
	ErrClosed = errors.New("spsc: use of closed handle")

	// ErrCapacity is wrapped by the panic value of New when the slot array
	// cannot be addressed or exceeds what the runtime can allocate.
	ErrCapacity = errors.New("spsc: capacity overflows address space")
)

// Disposer is implemented by elements that own resources. Values still queued
// when the region is released get Dispose called exactly once.
type Disposer interface {
	Dispose()
}

// ReleaseInfo is passed to the release hook once the region is torn down.
type ReleaseInfo struct {
	Capacity uint64 // slot count of the released region
	Disposed int    // values that were still queued and got disposed
}

// teardown states of the shared region.
const (
	bothAlive int32 = iota
	oneGone
	released
)

// ctrl is the control block. head and tail sit on separate cache lines since
// they are written from different goroutines.
type ctrl struct {
	_    cpu.CacheLinePad
	head atomic.Uint64 // next write cursor, written by the Sender only
	_    cpu.CacheLinePad
	tail atomic.Uint64 // next read cursor, written by the Receiver only
	_    cpu.CacheLinePad

	state        atomic.Int32
	producerGone atomic.Bool
	consumerGone atomic.Bool
}

// region is the allocation both handles point to: control block first, then
// the slot array. A slot at cursor i holds a live value iff tail <= i < head.
type region[T any] struct {
	ctrl

	capacity uint64
	mask     uint64 // capacity-1 when capacity is a power of two, else 0
	slots    []T

	dispose   func(T)
	onRelease func(ReleaseInfo)
}

type options struct {
	dispose   any
	onAlloc   func(capacity uint64)
	onRelease func(ReleaseInfo)
}

// Option configures New.
type Option func(*options)

// WithDisposeFunc sets the function run on every value still queued when the
// region is released. It takes precedence over the Disposer interface. The
// type parameter must match the element type passed to New.
func WithDisposeFunc[T any](fn func(T)) Option {
	return func(o *options) {
		o.dispose = fn
	}
}

// WithAllocHook registers a function called once New has allocated a region.
func WithAllocHook(fn func(capacity uint64)) Option {
	return func(o *options) {
		o.onAlloc = fn
	}
}

// WithReleaseHook registers a function called exactly once, by the goroutine
// that closes the second handle, after the region has been released.
func WithReleaseHook(fn func(ReleaseInfo)) Option {
	return func(o *options) {
		o.onRelease = fn
	}
}

// New allocates a region with room for capacity values and returns the only
// Sender and the only Receiver for it.
//
// A capacity of 0 yields a queue that is both full and empty forever: every
// TrySend is rejected and every TryRecv reports empty. New panics when the
// slot array would not fit in the address space.
func New[T any](capacity uint64, opts ...Option) (*Sender[T], *Receiver[T]) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	elemSize := uint64(unsafe.Sizeof(zero))
	if capacity > math.MaxInt || (elemSize != 0 && capacity > math.MaxInt/elemSize) {
		panic(fmt.Errorf("spsc: %d slots of %d bytes: %w", capacity, elemSize, ErrCapacity))
	}

	r := &region[T]{
		capacity:  capacity,
		slots:     makeSlots[T](capacity),
		onRelease: o.onRelease,
	}
	if capacity != 0 && capacity&(capacity-1) == 0 {
		r.mask = capacity - 1
	}
	if o.dispose != nil {
		fn, ok := o.dispose.(func(T))
		if !ok {
			panic(fmt.Sprintf("spsc: dispose func %T does not match element type %T", o.dispose, zero))
		}
		r.dispose = fn
	}
	r.state.Store(bothAlive)

	if o.onAlloc != nil {
		o.onAlloc(capacity)
	}
	return newSender(r), newReceiver(r)
}

// makeSlots allocates the slot array. A length the runtime refuses to
// allocate is reported as ErrCapacity like the size overflow above.
func makeSlots[T any](capacity uint64) []T {
	defer func() {
		if v := recover(); v != nil {
			if err, ok := v.(runtime.Error); ok {
				panic(fmt.Errorf("spsc: %d slots: %w: %v", capacity, ErrCapacity, err))
			}
			panic(v)
		}
	}()
	return make([]T, capacity)
}

// index maps an unwrapped cursor to its slot.
func (r *region[T]) index(cursor uint64) uint64 {
	if r.mask != 0 {
		return cursor & r.mask
	}
	return cursor % r.capacity
}

// used returns the number of queued values. tail is loaded first so that the
// later head load can never be behind it.
func (r *region[T]) used() uint64 {
	tail := r.tail.Load()
	head := r.head.Load()
	return head - tail
}

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
