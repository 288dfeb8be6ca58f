package poll

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoSPSC/pkg/spsc"
)

var fastBackoff = Backoff{SpinLimit: 4, MinSleep: 10 * time.Microsecond, MaxSleep: 200 * time.Microsecond}

func TestSendRecvSequence(t *testing.T) {
	const n = 50_000
	s, r := spsc.New[int](8)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.Close()
		for i := 0; i < n; i++ {
			if err := Send[int](ctx, s, i, WithBackoff(fastBackoff)); err != nil {
				t.Errorf("send %d: %v", i, err)
				return
			}
		}
	}()

	for i := 0; i < n; i++ {
		v, err := Recv[int](ctx, r, WithBackoff(fastBackoff))
		require.NoError(t, err)
		require.Equal(t, i, v)
	}

	_, err := Recv[int](ctx, r)
	assert.ErrorIs(t, err, ErrPeerClosed)
	wg.Wait()
	r.Close()
}

func TestRecvDrainsAfterSenderClose(t *testing.T) {
	s, r := spsc.New[string](4)
	defer r.Close()

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, Send[string](context.Background(), s, v))
	}
	s.Close()

	for _, want := range []string{"a", "b", "c"} {
		got, err := Recv[string](context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := Recv[string](context.Background(), r)
	assert.ErrorIs(t, err, ErrPeerClosed)
}

func TestSendFailsWhenReceiverClosed(t *testing.T) {
	s, r := spsc.New[int](1)
	defer s.Close()
	r.Close()

	err := Send[int](context.Background(), s, 1)
	assert.ErrorIs(t, err, ErrPeerClosed)
}

func TestSendHonoursContextWhenFull(t *testing.T) {
	s, r := spsc.New[int](1)
	defer s.Close()
	defer r.Close()

	require.NoError(t, Send[int](context.Background(), s, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Send[int](ctx, s, 2, WithBackoff(fastBackoff))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, uint64(1), s.UsedSlots(), "a rejected send must not enqueue")
}

func TestRecvHonoursContextWhenEmpty(t *testing.T) {
	s, r := spsc.New[int](1)
	defer s.Close()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Recv[int](ctx, r, WithBackoff(fastBackoff))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZeroCapacityNeverCompletes(t *testing.T) {
	s, r := spsc.New[int](0)
	defer s.Close()
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, Send[int](ctx, s, 1, WithBackoff(fastBackoff)), context.DeadlineExceeded)
	_, err := Recv[int](ctx, r, WithBackoff(fastBackoff))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaiterBackoffGrowsToMax(t *testing.T) {
	w := newWaiter([]Option{WithBackoff(Backoff{SpinLimit: 2, MinSleep: time.Microsecond, MaxSleep: 4 * time.Microsecond})})
	ctx := context.Background()

	var sleeps []time.Duration
	for i := 0; i < 6; i++ {
		require.NoError(t, w.wait(ctx))
		sleeps = append(sleeps, w.sleep)
	}
	assert.Equal(t, []time.Duration{
		0, 0, // spinning
		time.Microsecond, 2 * time.Microsecond, 4 * time.Microsecond, 4 * time.Microsecond,
	}, sleeps)
}

func TestWaiterNormalisesBackoff(t *testing.T) {
	w := newWaiter([]Option{WithBackoff(Backoff{MinSleep: -1, MaxSleep: 0})})
	assert.Equal(t, time.Microsecond, w.b.MinSleep)
	assert.Equal(t, time.Microsecond, w.b.MaxSleep)
}
