package testbench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoSPSC/pkg/buffered"
	"github.com/i5heu/GoSPSC/pkg/spsc"
)

func intGen(i int) int { return i }

func TestRunTimedTestSPSC(t *testing.T) {
	for _, capacity := range []uint64{1, 7, 1024} {
		s, r := spsc.New[int](capacity)
		res := RunTimedTest[int](s, r, Config{Capacity: capacity, Duration: 50 * time.Millisecond, MaxBurst: 16}, intGen)

		assert.Positive(t, res.Produced, "capacity %d", capacity)
		assert.Equal(t, res.Produced, res.Consumed, "capacity %d: every produced value must be consumed", capacity)
		assert.GreaterOrEqual(t, res.Elapsed, 50*time.Millisecond)
		assert.Panics(t, func() { s.TrySend(0) }, "producer must have closed its sender")
	}
}

func TestRunTimedTestZeroCapacity(t *testing.T) {
	s, r := spsc.New[int](0)
	res := RunTimedTest[int](s, r, Config{Duration: 20 * time.Millisecond, MaxBurst: 1}, intGen)

	assert.Zero(t, res.Produced)
	assert.Zero(t, res.Consumed)
	assert.Positive(t, res.Rejected)
	assert.Positive(t, res.Empty, "every receive on a zero-capacity queue finds it empty")
}

func TestRunTimedTestBuffered(t *testing.T) {
	s, r := buffered.New[int](64)
	res := RunTimedTest[int](s, r, Config{Duration: 30 * time.Millisecond, MaxBurst: 8}, intGen)
	assert.Equal(t, res.Produced, res.Consumed)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Config{Duration: time.Second, MaxBurst: 1}.Validate())
	assert.ErrorIs(t, Config{MaxBurst: 1}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{Duration: time.Second}.Validate(), ErrInvalidConfig)
}
