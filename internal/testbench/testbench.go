package testbench

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/valyala/fastrand"

	"github.com/i5heu/GoSPSC/internal/queue"
	"github.com/i5heu/GoSPSC/pkg/spsc/poll"
)

// Config describes one benchmark scenario. There is always exactly one
// producer and one consumer, so only the queue shape and the load vary.
type Config struct {
	Name     string        `yaml:"name" json:"name"`
	Capacity uint64        `yaml:"capacity" json:"capacity"`
	Duration time.Duration `yaml:"duration" json:"duration"`
	// MaxBurst is the upper bound of values the producer pushes before it
	// yields; each burst length is drawn uniformly from [1, MaxBurst].
	MaxBurst int `yaml:"max_burst" json:"max_burst"`
}

// ErrInvalidConfig is wrapped by Validate.
var ErrInvalidConfig = errors.New("testbench: invalid config")

// Validate reports the first problem with cfg.
func (cfg Config) Validate() error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: scenario %q: duration must be positive", ErrInvalidConfig, cfg.Name)
	}
	if cfg.MaxBurst < 1 {
		return fmt.Errorf("%w: scenario %q: max_burst must be at least 1", ErrInvalidConfig, cfg.Name)
	}
	return nil
}

// Result is what one timed run measured.
type Result struct {
	Produced int64 // values accepted by TrySend
	Consumed int64 // values returned by the receiver
	Rejected int64 // TrySend calls that found the queue full
	Empty    int64 // TryRecv calls that found the queue empty
	Elapsed  time.Duration
}

// RunTimedTest runs one producer and one consumer goroutine over the pair for
// cfg.Duration. When the deadline passes the producer closes its Sender and
// the consumer drains everything still queued before closing its Receiver,
// so Produced and Consumed match on a correct queue.
func RunTimedTest[T any, S queue.SenderInterface[T], R queue.ReceiverInterface[T]](
	s S,
	r R,
	cfg Config,
	valueGenerator func(int) T,
) Result {
	maxBurst := uint32(max(cfg.MaxBurst, 1))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	start := time.Now()

	var produced, rejected int64
	prodDone := make(chan struct{})
	go func() {
		defer close(prodDone)
		defer s.Close()

		idx := 0
		for ctx.Err() == nil {
			burst := 1 + fastrand.Uint32n(maxBurst)
			for i := uint32(0); i < burst; i++ {
				if _, ok := s.TrySend(valueGenerator(idx)); !ok {
					rejected++
					break
				}
				idx++
			}
			runtime.Gosched()
		}
		produced = int64(idx)
	}()

	var consumed, empty int64
	consDone := make(chan struct{})
	go func() {
		defer close(consDone)
		defer r.Close()

		// The consumer stops on the producer's close, not on the deadline.
		for !r.PeerClosed() {
			if _, ok := r.TryRecv(); ok {
				consumed++
				continue
			}
			empty++
			runtime.Gosched()
		}
		// Drain whatever was queued before the Sender closed.
		for {
			if _, err := poll.Recv[T](context.Background(), r); err != nil {
				return
			}
			consumed++
		}
	}()

	<-prodDone
	<-consDone

	return Result{
		Produced: produced,
		Consumed: consumed,
		Rejected: rejected,
		Empty:    empty,
		Elapsed:  time.Since(start),
	}
}
