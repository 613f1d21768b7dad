package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandShortFlowYieldsSinglePoint(t *testing.T) {
	points := expand(100.2, 100.9, 128, 3)
	require.Len(t, points, 1)
	assert.Equal(t, int64(100), points[0].Seconds)
	assert.Equal(t, 128.0, points[0].Bytes)
	assert.Equal(t, 3.0, points[0].Packets)
	assert.Equal(t, 1.0, points[0].Flows)
}

func TestExpandInstantFlowYieldsSinglePoint(t *testing.T) {
	points := expand(100.0, 100.0, 64, 1)
	require.Len(t, points, 1)
	assert.Equal(t, int64(100), points[0].Seconds)
	assert.Equal(t, 64.0, points[0].Bytes)
}

func TestExpandLongFlowDividesCountersUniformly(t *testing.T) {
	points := expand(100.2, 103.7, 400, 8)
	// floor(100.2)=100, ceil(103.7)=104 -> 4 points
	require.Len(t, points, 4)

	var bytesSum, packetsSum float64
	for i, pt := range points {
		assert.Equal(t, int64(100+i), pt.Seconds)
		assert.Equal(t, 100.0, pt.Bytes)
		assert.Equal(t, 2.0, pt.Packets)
		assert.Equal(t, 1.0, pt.Flows)
		bytesSum += pt.Bytes
		packetsSum += pt.Packets
	}
	assert.InDelta(t, 400, bytesSum, 1e-9)
	assert.InDelta(t, 8, packetsSum, 1e-9)
}

func TestExpandByteSumConservation(t *testing.T) {
	cases := []struct {
		start, end     float64
		bytes, packets int64
		expectedLen    int
	}{
		{100, 101, 10, 1, 1},
		{100, 107, 7000, 70, 7},
		{99.9, 100.1, 5, 1, 2},
		{50.5, 59.5, 333, 9, 10},
	}
	for _, tc := range cases {
		points := expand(tc.start, tc.end, tc.bytes, tc.packets)
		require.Len(t, points, tc.expectedLen)
		var sum float64
		for _, pt := range points {
			sum += pt.Bytes
		}
		assert.InDelta(t, float64(tc.bytes), sum, 1e-6)
	}
}
