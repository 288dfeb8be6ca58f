// Package poll turns the non-blocking TrySend/TryRecv pair into waiting calls
// by polling with a backoff. It sits outside the queue on purpose: the queue
// itself never parks a goroutine.
package poll

import (
	"context"
	"errors"
	"runtime"
	"time"
)

// ErrPeerClosed is returned once the other side has closed and the call can
// never complete.
var ErrPeerClosed = errors.New("poll: peer closed")

// Sender is the write half polled by Send.
type Sender[T any] interface {
	TrySend(v T) (T, bool)
	PeerClosed() bool
}

// Receiver is the read half polled by Recv.
type Receiver[T any] interface {
	TryRecv() (T, bool)
	PeerClosed() bool
}

// Backoff controls how a caller waits between attempts: SpinLimit attempts
// separated by runtime.Gosched, then sleeps doubling from MinSleep up to
// MaxSleep.
type Backoff struct {
	SpinLimit int
	MinSleep  time.Duration
	MaxSleep  time.Duration
}

// DefaultBackoff favours latency: it spins for a while before sleeping.
var DefaultBackoff = Backoff{
	SpinLimit: 128,
	MinSleep:  time.Microsecond,
	MaxSleep:  time.Millisecond,
}

// Option configures Send and Recv.
type Option func(*Backoff)

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(dst *Backoff) {
		*dst = b
	}
}

// Send retries s.TrySend(v) until it is accepted, ctx is done or the receiver
// has closed.
func Send[T any](ctx context.Context, s Sender[T], v T, opts ...Option) error {
	w := newWaiter(opts)
	for {
		if s.PeerClosed() {
			return ErrPeerClosed
		}
		var ok bool
		if v, ok = s.TrySend(v); ok {
			return nil
		}
		if err := w.wait(ctx); err != nil {
			return err
		}
	}
}

// Recv retries r.TryRecv() until a value arrives, ctx is done or the sender
// has closed and everything it sent has been received.
func Recv[T any](ctx context.Context, r Receiver[T], opts ...Option) (T, error) {
	w := newWaiter(opts)
	for {
		if v, ok := r.TryRecv(); ok {
			return v, nil
		}
		if r.PeerClosed() {
			// Everything sent before the close is visible now.
			if v, ok := r.TryRecv(); ok {
				return v, nil
			}
			var zero T
			return zero, ErrPeerClosed
		}
		if err := w.wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
}

type waiter struct {
	b     Backoff
	spins int
	sleep time.Duration
	timer *time.Timer
}

func newWaiter(opts []Option) *waiter {
	b := DefaultBackoff
	for _, opt := range opts {
		opt(&b)
	}
	if b.MinSleep <= 0 {
		b.MinSleep = time.Microsecond
	}
	if b.MaxSleep < b.MinSleep {
		b.MaxSleep = b.MinSleep
	}
	return &waiter{b: b}
}

func (w *waiter) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.spins < w.b.SpinLimit {
		w.spins++
		runtime.Gosched()
		return nil
	}

	switch {
	case w.sleep == 0:
		w.sleep = w.b.MinSleep
	case w.sleep < w.b.MaxSleep:
		w.sleep = min(w.sleep*2, w.b.MaxSleep)
	}
	if w.timer == nil {
		w.timer = time.NewTimer(w.sleep)
	} else {
		w.timer.Reset(w.sleep)
	}
	select {
	case <-w.timer.C:
		return nil
	case <-ctx.Done():
		w.timer.Stop()
		return ctx.Err()
	}
}
