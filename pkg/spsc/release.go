package spsc

// leave is run once per handle. The state word only ever moves forward:
// bothAlive -> oneGone -> released. The first handle to leave takes the first
// step and returns; the second one takes the second step and releases. The
// CAS makes the two steps mutually exclusive even when both handles close at
// the same time on different goroutines.
func (r *region[T]) leave() {
	if r.state.CompareAndSwap(bothAlive, oneGone) {
		return
	}
	if !r.state.CompareAndSwap(oneGone, released) {
		panic("spsc: region released twice")
	}
	r.release()
}

// release disposes every value still in [tail, head) and drops the slots.
// Both handles are closed by now, so nothing else touches the cursors.
func (r *region[T]) release() {
	var zero T
	head := r.head.Load()
	tail := r.tail.Load()

	disposed := 0
	for i := tail; i != head; i++ {
		slot := &r.slots[r.index(i)]
		r.disposeValue(*slot)
		*slot = zero
		disposed++
	}
	r.tail.Store(head)
	r.slots = nil

	if r.onRelease != nil {
		r.onRelease(ReleaseInfo{Capacity: r.capacity, Disposed: disposed})
	}
}

func (r *region[T]) disposeValue(v T) {
	if r.dispose != nil {
		r.dispose(v)
		return
	}
	if d, ok := any(v).(Disposer); ok {
		d.Dispose()
	}
}
