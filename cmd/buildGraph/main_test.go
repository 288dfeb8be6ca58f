package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByCPU(t *testing.T) {
	sessions := []FullReport{
		{
			SystemInfo: SystemInfo{NumCPU: 8, SimulatedCPUCount: 2},
			Benchmarks: []BenchmarkResult{
				{Implementation: "SPSC Ring", Capacity: 16, NumMessagesConsumed: 1000, ActualElapsed: "1ms"},
				{Implementation: "SPSC Ring", Capacity: 16, NumMessagesConsumed: 500, ActualElapsed: "1ms"},
				{Implementation: "SPSC Ring", Capacity: 0, NumMessagesConsumed: 0, ActualElapsed: "1ms"},
				{Implementation: "SPSC Ring", Capacity: 1, NumMessagesConsumed: 10, ActualElapsed: "garbage"},
			},
		},
		{
			SystemInfo: SystemInfo{NumCPU: 4},
			Benchmarks: []BenchmarkResult{
				{Implementation: "Golang Buffered Channel", Capacity: 1, NumMessagesConsumed: 100, ActualElapsed: "1µs"},
			},
		},
	}

	got := groupByCPU(sessions)
	require.Len(t, got, 2)
	assert.Equal(t, []float64{1000, 2000}, got[2]["SPSC Ring"][16])
	assert.Len(t, got[2]["SPSC Ring"], 1, "zero-consumption and unparsable runs are skipped")
	assert.Equal(t, []float64{10}, got[4]["Golang Buffered Channel"][1])
}

func TestBuildStats(t *testing.T) {
	stats := buildStats(map[float64][]float64{
		16: {5, 1, 3},
		0:  {},
	})
	require.Len(t, stats, 1)
	assert.Equal(t, capacityStats{x: 16, capacity: 16, min: 3, median: 3, max: 5}, stats[0])
}

func TestAverageOfRange(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i)
	}
	assert.Equal(t, 12.0, averageOfRange(vals, 0, 0.25))
	assert.Equal(t, 87.0, averageOfRange(vals, 0.75, 1))
	assert.Equal(t, 0.0, averageOfRange(nil, 0, 1))
}

func TestMedianAndFormat(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))

	assert.Equal(t, "12ns", formatNs(12))
	assert.Equal(t, "1.5µs", formatNs(1500))
	assert.Equal(t, "2.0ms", formatNs(2e6))
	assert.Equal(t, "3.00s", formatNs(3e9))
}

func TestNewPlotDoesNotPanic(t *testing.T) {
	p := newPlot(2, samples{
		"SPSC Ring":               {1: {40, 50}, 16: {10, 12}},
		"Golang Buffered Channel": {1: {90}, 16: {70}},
	})
	assert.NotNil(t, p)
}
